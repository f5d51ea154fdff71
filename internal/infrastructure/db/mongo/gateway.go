package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

// Gateway implements ports.Gateway on MongoDB. Each entity lives in its own
// collection, with a <table>_logs sibling holding its audit entries.
type Gateway struct {
	client *mongo.Client
	db     *mongo.Database
	// transactions wraps mutation + log in a session transaction. Requires a
	// replica set; a standalone mongod must run with it disabled.
	transactions bool
}

func NewGateway(client *mongo.Client, db *mongo.Database, transactions bool) *Gateway {
	return &Gateway{client: client, db: db, transactions: transactions}
}

func (g *Gateway) FindByID(ctx context.Context, e *domain.Entity, id string) (domain.Record, error) {
	return g.FindOne(ctx, e, domain.FieldID, id)
}

func (g *Gateway) FindOne(ctx context.Context, e *domain.Entity, field string, value any) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc bson.M
	err := g.db.Collection(e.Table).FindOne(ctx, bson.M{docKey(field): value}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find %s: %w", e.Name, err)
	}
	return fromDocument(e, doc), nil
}

func (g *Gateway) Find(ctx context.Context, e *domain.Entity, q domain.Query) ([]domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := g.db.Collection(e.Table).Find(ctx, buildFilter(q), options.Find().SetSort(listSort()))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", e.Name, err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Name, err)
	}

	out := make([]domain.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(e, doc))
	}
	return out, nil
}

type logDocument struct {
	ID         string    `bson:"_id"`
	Datetime   time.Time `bson:"datetime"`
	Type       string    `bson:"type"`
	SubjectID  string    `bson:"subjectId"`
	OperatorID string    `bson:"operatorId"`
	Content    bson.M    `bson:"content"`
}

func (g *Gateway) History(ctx context.Context, e *domain.Entity, subjectID string) ([]domain.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(historySort())
	cursor, err := g.db.Collection(e.LogTable()).Find(ctx, bson.M{"subjectId": subjectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s logs: %w", e.Name, err)
	}

	var docs []logDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s logs: %w", e.Name, err)
	}

	out := make([]domain.LogEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.LogEntry{
			ID:         d.ID,
			Datetime:   d.Datetime.UTC(),
			Type:       domain.LogType(d.Type),
			SubjectID:  d.SubjectID,
			OperatorID: d.OperatorID,
			Content:    e.Hydrate(plain(d.Content)),
		})
	}
	return out, nil
}

// Transact runs fn inside a session transaction. With transactions disabled,
// fn runs directly and a failed log append leaves the mutation in place.
func (g *Gateway) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.RecordWriter) error) error {
	w := &writer{db: g.db}
	if !g.transactions {
		return fn(ctx, w)
	}

	session, err := g.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, w)
	})
	return err
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the lookup and audit indexes for every catalog entity.
func (g *Gateway) EnsureIndexes(ctx context.Context, entities []*domain.Entity) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, e := range entities {
		indexes := []mongo.IndexModel{
			{Keys: bson.D{{Key: domain.FieldStatus, Value: 1}}},
			{Keys: listSort()},
		}
		for _, f := range e.Fields {
			if f.Unique {
				indexes = append(indexes, mongo.IndexModel{
					Keys:    bson.D{{Key: f.Name, Value: 1}},
					Options: options.Index().SetUnique(true),
				})
			}
		}
		for _, k := range e.SearchKeys {
			if f, _ := e.Field(k); !f.Unique {
				indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: k, Value: 1}}})
			}
		}

		if _, err := g.db.Collection(e.Table).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("indexes %s: %w", e.Table, err)
		}

		logIndex := mongo.IndexModel{Keys: bson.D{{Key: "subjectId", Value: 1}, {Key: "datetime", Value: 1}}}
		if _, err := g.db.Collection(e.LogTable()).Indexes().CreateOne(ctx, logIndex); err != nil {
			return fmt.Errorf("indexes %s: %w", e.LogTable(), err)
		}
	}
	return nil
}

// writer performs mutations; inside a transaction ctx is the session context.
type writer struct {
	db *mongo.Database
}

func (w *writer) Insert(ctx context.Context, e *domain.Entity, rec domain.Record) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := w.db.Collection(e.Table).InsertOne(ctx, insertDocument(rec, time.Now())); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", domain.ErrDuplicate, err)
		}
		return err
	}
	return nil
}

func (w *writer) Update(ctx context.Context, e *domain.Entity, id string, patch domain.Record) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	col := w.db.Collection(e.Table)
	set := toDocument(patch)
	delete(set, "_id")

	if len(set) == 0 {
		n, err := col.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	}

	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", domain.ErrDuplicate, err)
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (w *writer) AppendLog(ctx context.Context, e *domain.Entity, entry domain.LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := w.db.Collection(e.LogTable()).InsertOne(ctx, entry)
	return err
}

// buildFilter translates a domain query: status in the listed set AND (key
// equality on any key field OR timestamp within any range).
func buildFilter(q domain.Query) bson.M {
	filter := bson.M{domain.FieldStatus: bson.M{"$in": q.Statuses.Strings()}}
	if !q.HasPredicate() {
		return filter
	}

	or := bson.A{}
	if q.Key != "" {
		for _, f := range q.KeyFields {
			or = append(or, bson.M{docKey(f): q.Key})
		}
	}

	fields := make([]string, 0, len(q.Ranges))
	for f := range q.Ranges {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		r := q.Ranges[f]
		cond := bson.M{}
		if !r.Start.IsZero() {
			cond["$gte"] = r.Start
		}
		if !r.End.IsZero() {
			cond["$lte"] = r.End
		}
		if len(cond) == 0 {
			cond["$exists"] = true
		}
		or = append(or, bson.M{f: cond})
	}

	filter["$or"] = or
	return filter
}

// insertedAtKey holds the insertion time that orders list results. It is
// stripped again on read.
const insertedAtKey = "_createdAt"

// listSort orders records by insertion time, tie-broken by id.
func listSort() bson.D {
	return bson.D{{Key: insertedAtKey, Value: 1}, {Key: "_id", Value: 1}}
}

// historySort orders log entries by datetime, tie-broken by their ULID.
func historySort() bson.D {
	return bson.D{{Key: "datetime", Value: 1}, {Key: "_id", Value: 1}}
}

func docKey(field string) string {
	if field == domain.FieldID {
		return "_id"
	}
	return field
}

func toDocument(rec domain.Record) bson.M {
	doc := make(bson.M, len(rec))
	for k, v := range rec {
		doc[docKey(k)] = v
	}
	return doc
}

func insertDocument(rec domain.Record, now time.Time) bson.M {
	doc := toDocument(rec)
	doc[insertedAtKey] = now.UTC()
	return doc
}

func fromDocument(e *domain.Entity, doc bson.M) domain.Record {
	m := plain(doc)
	delete(m, insertedAtKey)
	if id, ok := m["_id"]; ok {
		m[domain.FieldID] = id
		delete(m, "_id")
	}
	return e.Hydrate(m)
}

// plain converts driver-specific BSON values into plain Go values.
func plain(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	case bson.M:
		return plain(t)
	case primitive.D:
		return plain(t.Map())
	}
	return v
}
