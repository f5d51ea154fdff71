// Package ids generates the identifiers used for audit entries.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewLogID returns a ULID. IDs minted within the same millisecond still sort
// in creation order, so a subject's history can be ordered by id alone.
func NewLogID() string {
	return newAt(time.Now())
}

func newAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
