package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Flopsa/digital-doc/common/metrics"
	"github.com/Flopsa/digital-doc/common/pagination"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const textIndexName = "search_text"

// MongoIndex stores one collection per table with a text index over the searchable fields.
type MongoIndex struct {
	client  *mongo.Client
	db      *mongo.Database
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger, m *metrics.Metrics) (*MongoIndex, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info("connected to search index", "database", database)

	return NewMongoIndex(client, database, logger, m), nil
}

func NewMongoIndex(client *mongo.Client, database string, logger *slog.Logger, m *metrics.Metrics) *MongoIndex {
	return &MongoIndex{
		client:  client,
		db:      client.Database(database),
		logger:  logger,
		metrics: m,
	}
}

// EnsureTextIndex creates the text index for table over fields if it does not exist yet.
// An existing index with the same name but other fields is dropped and rebuilt over fields.
func (mi *MongoIndex) EnsureTextIndex(ctx context.Context, table string, fields []string) error {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: "text"})
	}
	model := mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(textIndexName),
	}

	indexes := mi.db.Collection(table).Indexes()
	_, err := indexes.CreateOne(ctx, model)
	if isIndexConflict(err) {
		mi.logger.Warn("text index definition changed, rebuilding", "table", table, "fields", fields)
		if _, err = indexes.DropOne(ctx, textIndexName); err != nil {
			return fmt.Errorf("failed to drop stale text index on %s: %w", table, err)
		}
		_, err = indexes.CreateOne(ctx, model)
	}
	if err != nil {
		return fmt.Errorf("failed to create text index on %s: %w", table, err)
	}
	return nil
}

const (
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

func isIndexConflict(err error) bool {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return cmdErr.Code == codeIndexOptionsConflict || cmdErr.Code == codeIndexKeySpecsConflict
}

func (mi *MongoIndex) Add(ctx context.Context, table string, entity Searchable) error {
	start := time.Now()

	doc := bson.M{"_id": entity.SearchID()}
	for field, value := range entity.SearchFields() {
		doc[field] = value
	}

	_, err := mi.db.Collection(table).ReplaceOne(ctx,
		bson.M{"_id": entity.SearchID()},
		doc,
		options.Replace().SetUpsert(true),
	)
	mi.metrics.Search.RecordIndexOperation(ctx, "add", table, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to index %s %d: %w", table, entity.SearchID(), err)
	}
	return nil
}

func (mi *MongoIndex) Remove(ctx context.Context, table string, id int64) error {
	start := time.Now()

	_, err := mi.db.Collection(table).DeleteOne(ctx, bson.M{"_id": id})
	mi.metrics.Search.RecordIndexOperation(ctx, "remove", table, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to remove %s %d from index: %w", table, id, err)
	}
	return nil
}

type hit struct {
	ID int64 `bson:"_id"`
}

func (mi *MongoIndex) Query(ctx context.Context, table, expression string, page, perPage int) ([]int64, int, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, 0, nil
	}
	p := pagination.New(page, perPage)

	start := time.Now()
	coll := mi.db.Collection(table)
	filter := bson.M{"$text": bson.M{"$search": expression}}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		mi.metrics.Search.RecordQuery(ctx, table, time.Since(start), err)
		return nil, 0, fmt.Errorf("failed to count %s matches: %w", table, err)
	}
	if total == 0 {
		mi.metrics.Search.RecordQuery(ctx, table, time.Since(start), nil)
		return nil, 0, nil
	}

	score := bson.M{"$meta": "textScore"}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "score": score}).
		SetSort(bson.D{{Key: "score", Value: score}, {Key: "_id", Value: 1}}).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.PerPage))

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		mi.metrics.Search.RecordQuery(ctx, table, time.Since(start), err)
		return nil, 0, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer cursor.Close(ctx)

	var hits []hit
	err = cursor.All(ctx, &hits)
	mi.metrics.Search.RecordQuery(ctx, table, time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s hits: %w", table, err)
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids, int(total), nil
}

func (mi *MongoIndex) Ping(ctx context.Context) error {
	return mi.client.Ping(ctx, readpref.Primary())
}

// DropTable deletes the collection backing table, index included.
func (mi *MongoIndex) DropTable(ctx context.Context, table string) error {
	return mi.db.Collection(table).Drop(ctx)
}

func (mi *MongoIndex) Close(ctx context.Context) error {
	return mi.client.Disconnect(ctx)
}
