// Package operations finds call sites invoking database verbs on a
// collection handle and extracts their filter, projection, sort, and
// pipeline shape. Call sites whose receiver chain cannot be walked back to a
// collection accessor are skipped, never guessed.
package operations

import (
	"time"

	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/knowledge"
	"github.com/doclens-dev/doclens/internal/resolver"
	"github.com/doclens-dev/doclens/internal/source"
)

// operationVerbs maps driver method names to operation kinds.
var operationVerbs = map[string]knowledge.OperationKind{
	"Find":                   knowledge.OpFind,
	"FindOne":                knowledge.OpFindOne,
	"FindOneAndUpdate":       knowledge.OpUpdateOne,
	"FindOneAndReplace":      knowledge.OpReplaceOne,
	"FindOneAndDelete":       knowledge.OpDeleteOne,
	"InsertOne":              knowledge.OpInsertOne,
	"InsertMany":             knowledge.OpInsertMany,
	"UpdateOne":              knowledge.OpUpdateOne,
	"UpdateByID":             knowledge.OpUpdateOne,
	"UpdateMany":             knowledge.OpUpdateMany,
	"ReplaceOne":             knowledge.OpReplaceOne,
	"DeleteOne":              knowledge.OpDeleteOne,
	"DeleteMany":             knowledge.OpDeleteMany,
	"Aggregate":              knowledge.OpAggregate,
	"CountDocuments":         knowledge.OpCount,
	"EstimatedDocumentCount": knowledge.OpCount,
	"Distinct":               knowledge.OpDistinct,
}

// filterVerbs take their filter as the first non-context argument.
var filterVerbs = map[knowledge.OperationKind]bool{
	knowledge.OpFind:       true,
	knowledge.OpFindOne:    true,
	knowledge.OpUpdateOne:  true,
	knowledge.OpUpdateMany: true,
	knowledge.OpReplaceOne: true,
	knowledge.OpDeleteOne:  true,
	knowledge.OpDeleteMany: true,
	knowledge.OpCount:      true,
}

// Extractor extracts query operations from parsed files.
type Extractor struct {
	log *zap.Logger
}

// New creates an operation extractor.
func New(log *zap.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract returns the query operations found in the given files.
func (e *Extractor) Extract(files []*source.File, repository, commitSHA string) []knowledge.QueryOperation {
	var out []knowledge.QueryOperation
	for _, f := range files {
		for i := range f.Calls {
			call := &f.Calls[i]
			op, ok := e.extractCall(f, call, repository, commitSHA)
			if ok {
				out = append(out, op)
			}
		}
	}
	return out
}

// extractCall converts one call site into a QueryOperation when it is a
// recognized verb whose chain resolves to a collection accessor.
func (e *Extractor) extractCall(f *source.File, call *source.CallSite, repository, commitSHA string) (knowledge.QueryOperation, bool) {
	kind, isVerb := operationVerbs[call.Method]
	if !isVerb {
		return knowledge.QueryOperation{}, false
	}

	acc := call.RootAccessor("Collection", "GetCollection", "NamedCollection")
	if acc == nil || acc == call {
		// Chain does not originate at a collection accessor; skip rather
		// than synthesize an operation with a guessed collection.
		return knowledge.QueryOperation{}, false
	}
	collection, _, ok := resolver.CollectionNameFromAccessor(acc)
	if !ok {
		return knowledge.QueryOperation{}, false
	}

	op := knowledge.QueryOperation{
		ID:             knowledge.OperationID(f.Path, call.Line, kind, collection),
		CollectionName: collection,
		Kind:           kind,
		Provenance: knowledge.ProvenanceRecord{
			Repository: repository,
			FilePath:   f.Path,
			SymbolName: call.EnclosingFunc,
			StartLine:  call.Line,
			EndLine:    call.Line,
			CommitSHA:  commitSHA,
			Timestamp:  time.Now().UTC(),
		},
	}

	args := nonContextArgs(call.Args)

	switch {
	case kind == knowledge.OpAggregate:
		if len(args) > 0 {
			op.Pipeline = DecomposePipeline(args[0])
		}
	case filterVerbs[kind]:
		if len(args) > 0 {
			op.Filters = DecomposeFilter(args[0])
		}
		if isUpdateKind(kind) && len(args) > 1 {
			op.Updates = DecomposeUpdate(args[1])
		}
	case kind == knowledge.OpDistinct:
		// Distinct(ctx, fieldName, filter)
		if len(args) > 0 && args[0].Kind == source.ExprStringLit {
			op.Projections = []string{args[0].StringValue}
		}
		if len(args) > 1 {
			op.Filters = DecomposeFilter(args[1])
		}
	}

	e.extractOptions(&op, call.Args)
	return op, true
}

// extractOptions walks options chains passed as arguments
// (options.Find().SetProjection(...).SetSort(...).SetLimit(n)) and lifts
// projection, sort, limit, and skip when they are literal.
func (e *Extractor) extractOptions(op *knowledge.QueryOperation, args []source.Expr) {
	for _, arg := range args {
		if arg.Kind != source.ExprCall {
			continue
		}
		for cur := arg.Call; cur != nil; {
			switch cur.Method {
			case "SetProjection":
				if len(cur.Args) > 0 && cur.Args[0].Kind == source.ExprDocument {
					for _, key := range cur.Args[0].Doc.Keys() {
						op.Projections = append(op.Projections, key)
					}
				}
			case "SetSort":
				if len(cur.Args) > 0 && cur.Args[0].Kind == source.ExprDocument {
					doc := cur.Args[0].Doc
					for _, key := range doc.Keys() {
						v, _ := doc.Get(key)
						op.Sort = append(op.Sort, knowledge.SortField{
							FieldPath:  key,
							Descending: v.Kind == source.ValueNumber && v.Num < 0,
						})
					}
				}
			case "SetLimit":
				if len(cur.Args) > 0 && cur.Args[0].Kind == source.ExprNumber {
					n := cur.Args[0].Number
					op.Limit = &n
				}
			case "SetSkip":
				if len(cur.Args) > 0 && cur.Args[0].Kind == source.ExprNumber {
					n := cur.Args[0].Number
					op.Skip = &n
				}
			}
			if cur.Receiver == nil || cur.Receiver.Call == nil {
				break
			}
			cur = cur.Receiver.Call
		}
	}
}

// nonContextArgs drops the leading context argument conventionally passed to
// every driver call, whether it arrives as an identifier or as an inline
// constructor like context.Background().
func nonContextArgs(args []source.Expr) []source.Expr {
	if len(args) == 0 {
		return args
	}
	switch first := args[0]; first.Kind {
	case source.ExprIdent:
		switch first.Name {
		case "ctx", "context", "c":
			return args[1:]
		}
	case source.ExprCall:
		if isContextConstructor(first.Call) {
			return args[1:]
		}
	}
	return args
}

// isContextConstructor reports whether a call chain bottoms out in the context
// package, covering context.Background(), context.TODO(), and wrappers such as
// context.WithTimeout(...).
func isContextConstructor(call *source.CallSite) bool {
	for cur := call; cur != nil; {
		if cur.Receiver == nil {
			return false
		}
		if cur.Receiver.Call != nil {
			cur = cur.Receiver.Call
			continue
		}
		return cur.Receiver.Kind == source.ExprIdent && cur.Receiver.Name == "context"
	}
	return false
}

func isUpdateKind(kind knowledge.OperationKind) bool {
	return kind == knowledge.OpUpdateOne || kind == knowledge.OpUpdateMany || kind == knowledge.OpReplaceOne
}
