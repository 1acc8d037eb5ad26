package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
)

// MongoRepository backs the queue with a MongoDB collection for gateway
// deployments. Entries are stored one document per entry, keyed by the "id"
// field; created_at is kept as Unix nanoseconds because BSON datetimes only
// carry millisecond precision, which would collapse the manager's monotonic
// ordering.
type MongoRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewMongoRepository(client *mongo.Client, database, collection string) *MongoRepository {
	return &MongoRepository{
		client:     client,
		database:   database,
		collection: collection,
	}
}

type mongoQueueDoc struct {
	ID         string `bson:"id"`
	Operation  string `bson:"operation"`
	Endpoint   string `bson:"endpoint"`
	Method     string `bson:"method"`
	Payload    []byte `bson:"payload"`
	CreatedAt  int64  `bson:"created_at"`
	Status     string `bson:"status"`
	RetryCount int    `bson:"retry_count"`
	LastError  string `bson:"last_error"`
}

func toMongoDoc(entry *QueueEntry) mongoQueueDoc {
	return mongoQueueDoc{
		ID:         entry.ID,
		Operation:  string(entry.Operation),
		Endpoint:   entry.Endpoint,
		Method:     entry.Method,
		Payload:    entry.Payload,
		CreatedAt:  entry.CreatedAt.UnixNano(),
		Status:     string(entry.Status),
		RetryCount: entry.RetryCount,
		LastError:  entry.LastError,
	}
}

func (d mongoQueueDoc) toEntry() QueueEntry {
	return QueueEntry{
		ID:         d.ID,
		Operation:  Operation(d.Operation),
		Endpoint:   d.Endpoint,
		Method:     d.Method,
		Payload:    d.Payload,
		CreatedAt:  time.Unix(0, d.CreatedAt).UTC(),
		Status:     Status(d.Status),
		RetryCount: d.RetryCount,
		LastError:  d.LastError,
	}
}

func (m *MongoRepository) coll() *mongo.Collection {
	return m.client.Database(m.database).Collection(m.collection)
}

func (m *MongoRepository) Put(ctx context.Context, entry *QueueEntry) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Put")
	defer span.End()

	startTime := time.Now()
	filter := bson.M{"id": entry.ID}
	update := bson.M{"$set": toMongoDoc(entry)}
	_, err := m.coll().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, "Put", "mongodb", 1, time.Since(startTime))
	return nil
}

func (m *MongoRepository) Get(ctx context.Context, id string) (*QueueEntry, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()

	var doc mongoQueueDoc
	err := m.coll().FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	entry := doc.toEntry()
	return &entry, nil
}

func (m *MongoRepository) All(ctx context.Context) ([]QueueEntry, error) {
	return m.find(ctx, "All", bson.M{}, bson.D{{Key: "created_at", Value: -1}})
}

func (m *MongoRepository) AllByStatus(ctx context.Context, status Status) ([]QueueEntry, error) {
	return m.find(ctx, "AllByStatus", bson.M{"status": string(status)}, bson.D{{Key: "created_at", Value: 1}})
}

func (m *MongoRepository) Delete(ctx context.Context, id string) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	_, err := m.coll().DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (m *MongoRepository) DeleteByStatus(ctx context.Context, status Status) (int64, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "DeleteByStatus")
	defer span.End()

	startTime := time.Now()
	res, err := m.coll().DeleteMany(ctx, bson.M{"status": string(status)})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	addDBStatsToSpan(span, "DeleteByStatus", "mongodb", int(res.DeletedCount), time.Since(startTime))
	return res.DeletedCount, nil
}

func (m *MongoRepository) Clear(ctx context.Context) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Clear")
	defer span.End()

	_, err := m.coll().DeleteMany(ctx, bson.M{})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (m *MongoRepository) Stats(ctx context.Context) (*Stats, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Stats")
	defer span.End()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := m.coll().Aggregate(ctx, pipeline)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := &Stats{}
	for cursor.Next(ctx) {
		var group struct {
			Status string `bson:"_id"`
			Count  int    `bson:"count"`
		}
		if err := cursor.Decode(&group); err != nil {
			span.RecordError(err)
			return nil, err
		}
		stats.apply(Status(group.Status), group.Count)
	}
	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return stats, nil
}

func (m *MongoRepository) Close() error {
	return m.client.Disconnect(context.Background())
}

func (m *MongoRepository) find(ctx context.Context, spanName string, filter bson.M, sort bson.D) ([]QueueEntry, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	startTime := time.Now()
	cursor, err := m.coll().Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []QueueEntry
	for cursor.Next(ctx) {
		var doc mongoQueueDoc
		if err := cursor.Decode(&doc); err != nil {
			span.RecordError(err)
			return nil, err
		}
		entries = append(entries, doc.toEntry())
	}
	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, spanName, "mongodb", len(entries), time.Since(startTime))
	return entries, nil
}
