package sampler

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

// Defaults for sampling bounds.
const (
	DefaultMaxDocuments   = 200
	DefaultMaxCollections = 50
	DefaultTimeout        = 10 * time.Second
)

// Options configures a sampling run. URI should carry read-only credentials;
// the sampler never writes to the sampled database.
type Options struct {
	URI            string
	Database       string
	MaxDocuments   int
	MaxCollections int
	Timeout        time.Duration
	PIIDetection   bool
	ExtraDenylist  []string
}

func (o *Options) applyDefaults() {
	if o.MaxDocuments <= 0 {
		o.MaxDocuments = DefaultMaxDocuments
	}
	if o.MaxCollections <= 0 {
		o.MaxCollections = DefaultMaxCollections
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
}

// Sampler draws bounded random samples from a live database.
type Sampler struct {
	opts     Options
	log      *zap.Logger
	redactor *Redactor
}

// New creates a sampler.
func New(opts Options, log *zap.Logger) *Sampler {
	opts.applyDefaults()
	return &Sampler{
		opts:     opts,
		log:      log,
		redactor: NewRedactor(opts.ExtraDenylist...),
	}
}

// Sample connects to the database, samples each requested collection (every
// collection in the database when the list is empty), and returns the
// inferred schemas. A connection or timeout failure returns an error the
// caller degrades to "no observed schema for this run"; per-collection
// failures skip only that collection.
func (s *Sampler) Sample(ctx context.Context, collections []string, repository, commitSHA string) ([]knowledge.ObservedSchema, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(s.opts.URI).
		SetServerSelectionTimeout(s.opts.Timeout).
		SetReadPreference(readpref.SecondaryPreferred()))
	if err != nil {
		return nil, fmt.Errorf("connect for sampling: %w", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping for sampling: %w", err)
	}

	db := client.Database(s.opts.Database)
	if len(collections) == 0 {
		collections, err = db.ListCollectionNames(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
	}
	if len(collections) > s.opts.MaxCollections {
		collections = collections[:s.opts.MaxCollections]
	}

	var schemas []knowledge.ObservedSchema
	for _, coll := range collections {
		schema, err := s.sampleCollection(ctx, db, coll)
		if err != nil {
			if ctx.Err() != nil {
				return schemas, ctx.Err()
			}
			s.log.Warn("sampling collection failed",
				zap.String("collection", coll),
				zap.Error(err))
			continue
		}
		schema.Provenance = knowledge.ProvenanceRecord{
			Repository: repository,
			FilePath:   s.opts.Database + "/" + coll,
			SymbolName: coll,
			CommitSHA:  commitSHA,
			Timestamp:  time.Now().UTC(),
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// sampleCollection draws up to MaxDocuments random documents via $sample and
// infers the collection's observed schema.
func (s *Sampler) sampleCollection(ctx context.Context, db *mongo.Database, collection string) (knowledge.ObservedSchema, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: s.opts.MaxDocuments}}}},
	}
	cursor, err := db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return knowledge.ObservedSchema{}, fmt.Errorf("sample %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return knowledge.ObservedSchema{}, fmt.Errorf("decode sample of %s: %w", collection, err)
	}

	docs := make([]map[string]any, 0, len(raw))
	totalRedacted := 0
	for _, doc := range raw {
		m := map[string]any(doc)
		if s.opts.PIIDetection {
			redacted, n := s.redactor.RedactDocument(m)
			m = redacted
			totalRedacted += n
		}
		docs = append(docs, m)
	}

	s.log.Debug("sampled collection",
		zap.String("collection", collection),
		zap.Int("documents", len(docs)),
		zap.Int("redacted_values", totalRedacted))

	return InferSchema(collection, docs, totalRedacted, s.opts.PIIDetection), nil
}
