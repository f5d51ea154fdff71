package domain

// Status represents the soft lifecycle state of a record. Records whose status
// falls outside an entity's visible set are hidden from list queries but are
// never physically removed.
type Status string

const (
	StatusOK         Status = "ok"
	StatusUnverified Status = "unverified"
	StatusSuspended  Status = "suspended"
	StatusRevoked    Status = "revoked"
	StatusRetired    Status = "retired"

	StatusGood   Status = "good"
	StatusBroken Status = "broken"

	StatusPending  Status = "pending"
	StatusBorrowed Status = "borrowed"
	StatusReturned Status = "returned"

	StatusFlagged Status = "flagged"

	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusUnpaid    Status = "unpaid"
	StatusArrived   Status = "arrived"
	StatusOnHold    Status = "onhold"

	StatusClosed   Status = "closed"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// StatusSet is a closed set of statuses.
type StatusSet []Status

// Contains reports whether s is a member of the set.
func (set StatusSet) Contains(s Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

// Strings returns the wire values of the set, in declaration order.
func (set StatusSet) Strings() []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = string(s)
	}
	return out
}
