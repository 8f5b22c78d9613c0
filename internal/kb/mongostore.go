package kb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

// Collection names within the knowledge-base database.
const (
	colTypes         = "code_types"
	colMappings      = "collection_mappings"
	colOperations    = "query_operations"
	colRelationships = "data_relationships"
	colSchemas       = "observed_schemas"
	colEntries       = "knowledge_base_entries"
	colGraphNodes    = "graph_nodes"
	colGraphEdges    = "graph_edges"
	colTypeRevisions = "code_type_revisions"
	colScanHistory   = "scan_history"
)

// MongoStore persists the knowledge base in MongoDB. Every write is an
// upsert keyed by the entity's deterministic _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

// MongoConfig holds the connection settings for the knowledge base.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// NewMongoStore connects to the knowledge-base database and verifies the
// connection with a ping before returning.
func NewMongoStore(ctx context.Context, cfg MongoConfig, log *zap.Logger) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("knowledge base URI is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("knowledge base database name is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to knowledge base: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging knowledge base: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(cfg.Database),
		log:    log,
	}, nil
}

// Close releases the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// upsertBatch replaces each document by _id, inserting when absent. Batches
// go through BulkWrite so a large repository does not turn into thousands of
// round trips.
func upsertBatch[T any](ctx context.Context, col *mongo.Collection, docs []T, idOf func(T) string) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": idOf(doc)}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("bulk upsert into %s: %w", col.Name(), err)
	}
	return nil
}

func (s *MongoStore) UpsertTypes(ctx context.Context, types []knowledge.CodeType) error {
	return upsertBatch(ctx, s.db.Collection(colTypes), types,
		func(t knowledge.CodeType) string { return t.ID })
}

func (s *MongoStore) UpsertMappings(ctx context.Context, mappings []knowledge.CollectionMapping) error {
	return upsertBatch(ctx, s.db.Collection(colMappings), mappings,
		func(m knowledge.CollectionMapping) string { return m.ID })
}

func (s *MongoStore) UpsertOperations(ctx context.Context, ops []knowledge.QueryOperation) error {
	return upsertBatch(ctx, s.db.Collection(colOperations), ops,
		func(o knowledge.QueryOperation) string { return o.ID })
}

func (s *MongoStore) UpsertRelationships(ctx context.Context, rels []knowledge.DataRelationship) error {
	return upsertBatch(ctx, s.db.Collection(colRelationships), rels,
		func(r knowledge.DataRelationship) string { return r.ID })
}

func (s *MongoStore) UpsertSchemas(ctx context.Context, schemas []knowledge.ObservedSchema) error {
	return upsertBatch(ctx, s.db.Collection(colSchemas), schemas,
		func(o knowledge.ObservedSchema) string { return o.ID })
}

func (s *MongoStore) UpsertEntries(ctx context.Context, entries []knowledge.KnowledgeBaseEntry) error {
	return upsertBatch(ctx, s.db.Collection(colEntries), entries,
		func(e knowledge.KnowledgeBaseEntry) string { return e.ID })
}

// ReplaceGraph swaps the graph projection of one repository: stale nodes and
// edges are removed before the fresh projection is upserted, so the graph
// never accumulates vertices for deleted source.
func (s *MongoStore) ReplaceGraph(ctx context.Context, repository string, nodes []knowledge.GraphNode, edges []knowledge.GraphEdge) error {
	repoFilter := bson.M{"provenance.repository": repository}
	if _, err := s.db.Collection(colGraphEdges).DeleteMany(ctx, repoFilter); err != nil {
		return fmt.Errorf("clearing graph edges for %s: %w", repository, err)
	}
	if _, err := s.db.Collection(colGraphNodes).DeleteMany(ctx, repoFilter); err != nil {
		return fmt.Errorf("clearing graph nodes for %s: %w", repository, err)
	}
	if err := upsertBatch(ctx, s.db.Collection(colGraphNodes), nodes,
		func(n knowledge.GraphNode) string { return n.ID }); err != nil {
		return err
	}
	return upsertBatch(ctx, s.db.Collection(colGraphEdges), edges,
		func(e knowledge.GraphEdge) string { return e.ID })
}

func (s *MongoStore) ActiveEntries(ctx context.Context, repository string) ([]knowledge.KnowledgeBaseEntry, error) {
	filter := bson.M{"provenance.repository": repository, "is_active": true}
	cursor, err := s.db.Collection(colEntries).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("loading active entries for %s: %w", repository, err)
	}
	var entries []knowledge.KnowledgeBaseEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding active entries for %s: %w", repository, err)
	}
	return entries, nil
}

func (s *MongoStore) DeactivateEntries(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	update := bson.M{"$set": bson.M{"is_active": false, "last_updated": time.Now().UTC()}}
	res, err := s.db.Collection(colEntries).UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, update)
	if err != nil {
		return fmt.Errorf("deactivating %d entries: %w", len(ids), err)
	}
	s.log.Debug("deactivated entries",
		zap.Int("requested", len(ids)),
		zap.Int64("modified", res.ModifiedCount))
	return nil
}

func (s *MongoStore) Types(ctx context.Context, repository string) ([]knowledge.CodeType, error) {
	cursor, err := s.db.Collection(colTypes).Find(ctx, bson.M{"provenance.repository": repository})
	if err != nil {
		return nil, fmt.Errorf("loading types for %s: %w", repository, err)
	}
	var types []knowledge.CodeType
	if err := cursor.All(ctx, &types); err != nil {
		return nil, fmt.Errorf("decoding types for %s: %w", repository, err)
	}
	return types, nil
}

func (s *MongoStore) Mappings(ctx context.Context, repository string) ([]knowledge.CollectionMapping, error) {
	cursor, err := s.db.Collection(colMappings).Find(ctx, bson.M{"provenance.repository": repository})
	if err != nil {
		return nil, fmt.Errorf("loading mappings for %s: %w", repository, err)
	}
	var mappings []knowledge.CollectionMapping
	if err := cursor.All(ctx, &mappings); err != nil {
		return nil, fmt.Errorf("decoding mappings for %s: %w", repository, err)
	}
	return mappings, nil
}

func (s *MongoStore) SaveTypeRevisions(ctx context.Context, revs []TypeRevision) error {
	return upsertBatch(ctx, s.db.Collection(colTypeRevisions), revs,
		func(r TypeRevision) string { return r.ID })
}

func (s *MongoStore) TypeAtCommit(ctx context.Context, fullName, commitSHA string) (*knowledge.CodeType, error) {
	var rev TypeRevision
	err := s.db.Collection(colTypeRevisions).
		FindOne(ctx, bson.M{"_id": RevisionID(fullName, commitSHA)}).
		Decode(&rev)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading revision of %s at %s: %w", fullName, commitSHA, err)
	}
	return &rev.Type, nil
}

func (s *MongoStore) RecordScan(ctx context.Context, summary ScanSummary) error {
	_, err := s.db.Collection(colScanHistory).
		ReplaceOne(ctx, bson.M{"_id": summary.ScanID}, summary, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("recording scan %s: %w", summary.ScanID, err)
	}
	return nil
}
