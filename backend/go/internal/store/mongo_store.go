package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const fieldArchived = "archived"

// MongoStore is a RecordStore backed by MongoDB. Each task type maps to one collection.
type MongoStore struct {
	db      *mongo.Database
	urlBase string
}

// NewMongoStore creates a new MongoStore.
func NewMongoStore(db *mongo.Database, urlBase string) *MongoStore {
	return &MongoStore{db: db, urlBase: urlBase}
}

// Create inserts a new record and returns its id.
func (s *MongoStore) Create(ctx context.Context, collection string, attrs Record) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)

	doc := bson.M{"_id": id, FieldCreated: now, FieldEdited: now, fieldArchived: false}
	for k, v := range attrs {
		if isSystemField(k) {
			continue
		}
		doc[k] = v
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

// Query finds non-archived records matching q.
func (s *MongoStore) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	filter := bson.M{fieldArchived: bson.M{"$ne": true}}
	if q.Filter != nil {
		filter = bson.M{"$and": bson.A{filter, ToBSON(q.Filter)}}
	}

	opts := options.Find()
	if len(q.Sorts) > 0 {
		opts.SetSort(SortBSON(q.Sorts))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}

	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, s.toRecord(doc))
	}
	return records, nil
}

// Update sets the given attributes on an existing record.
func (s *MongoStore) Update(ctx context.Context, collection, id string, attrs Record) error {
	set := bson.M{FieldEdited: time.Now().UTC().Format(time.RFC3339)}
	for k, v := range attrs {
		if isSystemField(k) {
			continue
		}
		set[k] = v
	}
	return s.updateOne(ctx, collection, id, set)
}

// Archive marks a record as archived.
func (s *MongoStore) Archive(ctx context.Context, collection, id string) error {
	return s.updateOne(ctx, collection, id, bson.M{
		fieldArchived: true,
		FieldEdited:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *MongoStore) updateOne(ctx context.Context, collection, id string, set bson.M) error {
	filter := bson.M{"_id": id, fieldArchived: bson.M{"$ne": true}}
	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) toRecord(doc bson.M) Record {
	rec := make(Record, len(doc))
	for k, v := range doc {
		switch k {
		case "_id":
			rec[FieldID] = fmt.Sprint(v)
		case fieldArchived:
		default:
			rec[k] = v
		}
	}
	if s.urlBase != "" {
		rec[FieldURL] = s.urlBase + rec.ID()
	}
	return rec
}

// ToBSON translates a predicate tree into a MongoDB query document.
func ToBSON(f *Filter) bson.M {
	if f == nil {
		return bson.M{}
	}
	if f.Op == OpAnd {
		parts := make(bson.A, 0, len(f.And))
		for _, sub := range f.And {
			parts = append(parts, ToBSON(sub))
		}
		return bson.M{"$and": parts}
	}

	field := f.Property
	if field == FieldID {
		field = "_id"
	}
	switch f.Op {
	case OpEquals:
		return bson.M{field: f.Value}
	case OpNotEquals:
		return bson.M{field: bson.M{"$ne": f.Value}}
	case OpBefore:
		return bson.M{field: bson.M{"$lt": f.Value}}
	case OpAfter:
		return bson.M{field: bson.M{"$gt": f.Value}}
	case OpOnOrBefore:
		return bson.M{field: bson.M{"$lte": f.Value}}
	case OpOnOrAfter:
		return bson.M{field: bson.M{"$gte": f.Value}}
	}
	return bson.M{}
}

// SortBSON translates sort keys into an ordered bson document.
func SortBSON(sorts []Sort) bson.D {
	d := make(bson.D, 0, len(sorts))
	for _, s := range sorts {
		dir := 1
		if s.Descending {
			dir = -1
		}
		d = append(d, bson.E{Key: s.Property, Value: dir})
	}
	return d
}

func isSystemField(k string) bool {
	return k == FieldID || k == "_id" || k == FieldCreated || k == FieldEdited || k == FieldURL || k == fieldArchived
}
