// Package resolver determines which named collection(s) each document-store
// type is persisted to, with the resolution technique used and a confidence
// score per candidate.
package resolver

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/knowledge"
	"github.com/doclens-dev/doclens/internal/source"
)

// accessorNames are the collection-accessor methods recognized on a database
// handle expression.
var accessorNames = []string{"Collection", "GetCollection", "NamedCollection"}

// repositorySuffixes link an enclosing repository type to the entity it
// manages ("UserRepository" → "User").
var repositorySuffixes = []string{"Repository", "Repo", "Store", "DAO", "Collection"}

// Confidence by resolution technique, in priority order.
const (
	confidenceLiteral     = 1.0
	confidenceConstant    = 0.9
	confidenceConfig      = 0.7
	confidenceEnvironment = 0.7
	confidenceInferred    = 0.5
)

// Resolver resolves collection names for extracted types.
type Resolver struct {
	log *zap.Logger
}

// New creates a collection resolver.
func New(log *zap.Logger) *Resolver {
	return &Resolver{log: log}
}

// candidate is one resolved (name, method, confidence) triple for a type.
type candidate struct {
	name       string
	method     knowledge.ResolutionMethod
	confidence float64
	line       int
}

// Resolve determines collection mappings for the given types using the call
// sites of the given files. One mapping is emitted per distinct collection
// name per type; the highest-confidence mapping is primary and carries the
// rest as alternatives.
func (r *Resolver) Resolve(files []*source.File, types []knowledge.CodeType, repository, commitSHA string) []knowledge.CollectionMapping {
	byName := make(map[string]*knowledge.CodeType, len(types))
	for i := range types {
		byName[types[i].Name] = &types[i]
	}

	// typeName → ordered candidates, best first.
	candidates := make(map[string][]candidate)
	// typeName → file the association was observed in.
	seenIn := make(map[string]*source.File)

	for _, f := range files {
		for i := range f.Calls {
			call := &f.Calls[i]
			acc := call.RootAccessor(accessorNames...)
			if acc == nil || len(acc.Args) == 0 {
				continue
			}
			cand, ok := resolveAccessorArg(acc)
			if !ok {
				continue
			}
			for _, typeName := range associatedTypes(call, acc, byName) {
				candidates[typeName] = append(candidates[typeName], cand)
				if seenIn[typeName] == nil {
					seenIn[typeName] = f
				}
			}
		}
	}

	var mappings []knowledge.CollectionMapping
	for i := range types {
		ct := &types[i]
		cands := candidates[ct.Name]

		// Naming-convention inference always contributes a fallback candidate.
		cands = append(cands, candidate{
			name:       InferCollectionName(ct.Name),
			method:     knowledge.ResolutionInferred,
			confidence: confidenceInferred,
		})

		mappings = append(mappings, r.buildMappings(ct, cands, repository, commitSHA)...)
	}
	return mappings
}

// buildMappings collapses candidates to one mapping per distinct collection
// name, marks the best one primary, and attaches the others as alternatives.
func (r *Resolver) buildMappings(ct *knowledge.CodeType, cands []candidate, repository, commitSHA string) []knowledge.CollectionMapping {
	best := make(map[string]candidate)
	var order []string
	for _, c := range cands {
		if c.name == "" {
			continue
		}
		cur, seen := best[c.name]
		if !seen {
			order = append(order, c.name)
		}
		if !seen || c.confidence > cur.confidence {
			best[c.name] = c
		}
	}
	if len(order) == 0 {
		return nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := best[order[i]], best[order[j]]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		return order[i] < order[j]
	})

	var alternatives []knowledge.CollectionAlternative
	for _, name := range order[1:] {
		c := best[name]
		alternatives = append(alternatives, knowledge.CollectionAlternative{
			CollectionName:   c.name,
			ResolutionMethod: c.method,
			Confidence:       c.confidence,
		})
	}

	var out []knowledge.CollectionMapping
	for rank, name := range order {
		c := best[name]
		m := knowledge.CollectionMapping{
			ID:               knowledge.MappingID(ct.ID, c.name),
			TypeID:           ct.ID,
			TypeName:         ct.Name,
			CollectionName:   c.name,
			ResolutionMethod: c.method,
			Confidence:       c.confidence,
			IsPrimary:        rank == 0,
			Provenance:       mappingProvenance(ct, c),
		}
		if rank == 0 {
			m.Alternatives = alternatives
		}
		out = append(out, m)
	}
	return out
}

func mappingProvenance(ct *knowledge.CodeType, c candidate) knowledge.ProvenanceRecord {
	p := ct.Provenance
	p.Timestamp = time.Now().UTC()
	if c.line > 0 {
		p.StartLine = c.line
		p.EndLine = c.line
	}
	return p
}

// CollectionNameFromAccessor resolves the collection name referenced by an
// accessor call site, for consumers that only need the name (the operation
// extractor resolves chains against this).
func CollectionNameFromAccessor(acc *source.CallSite) (string, knowledge.ResolutionMethod, bool) {
	if len(acc.Args) == 0 {
		return "", knowledge.ResolutionUnknown, false
	}
	c, ok := resolveAccessorArg(acc)
	if !ok || c.name == "" {
		return "", knowledge.ResolutionUnknown, false
	}
	return c.name, c.method, true
}

// resolveAccessorArg classifies the accessor's first argument into a
// (name, method, confidence) candidate, in the documented priority order.
func resolveAccessorArg(acc *source.CallSite) (candidate, bool) {
	arg := acc.Args[0]
	switch arg.Kind {
	case source.ExprStringLit:
		return candidate{name: arg.StringValue, method: knowledge.ResolutionLiteral, confidence: confidenceLiteral, line: acc.Line}, true
	case source.ExprConstRef:
		// A constant whose initializer was resolvable carries its value;
		// otherwise the reference name is the best available identity.
		name := arg.StringValue
		if name == "" {
			name = arg.Name
		}
		return candidate{name: name, method: knowledge.ResolutionConstant, confidence: confidenceConstant, line: acc.Line}, true
	case source.ExprConfigRef:
		return candidate{name: configKeyHint(arg.Name), method: knowledge.ResolutionConfig, confidence: confidenceConfig, line: acc.Line}, true
	case source.ExprEnvRef:
		return candidate{name: envNameHint(arg.Name), method: knowledge.ResolutionEnvironment, confidence: confidenceEnvironment, line: acc.Line}, true
	}
	return candidate{}, false
}

// associatedTypes links a call chain rooted at an accessor to the type names
// it operates on: decode/insert argument types first, then the enclosing
// repository type's name as a fallback hint.
func associatedTypes(call, acc *source.CallSite, known map[string]*knowledge.CodeType) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(name string) {
		if name != "" && known[name] != nil && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, t := range call.DecodeTargets {
		add(t)
	}
	if len(out) == 0 {
		add(repositoryEntity(call.EnclosingType))
		add(repositoryEntity(acc.EnclosingType))
	}
	return out
}

// repositoryEntity strips a repository-style suffix from a type name.
func repositoryEntity(typeName string) string {
	for _, suffix := range repositorySuffixes {
		if strings.HasSuffix(typeName, suffix) && len(typeName) > len(suffix) {
			return strings.TrimSuffix(typeName, suffix)
		}
	}
	return ""
}

// configKeyHint extracts the trailing path element of a configuration
// reference as the collection identity ("cfg.Collections.Users" → "users").
func configKeyHint(ref string) string {
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		ref = ref[idx+1:]
	}
	return strings.ToLower(ref)
}

// envNameHint normalizes an environment variable name
// ("USERS_COLLECTION" → "users").
func envNameHint(name string) string {
	name = strings.TrimSuffix(name, "_COLLECTION")
	return strings.ToLower(name)
}

// InferCollectionName derives a collection name from a type name by the
// usual convention: snake_case, pluralized ("OrderItem" → "order_items").
func InferCollectionName(typeName string) string {
	snake := toSnake(typeName)
	return Pluralize(snake)
}

// Pluralize applies simple English pluralization rules.
func Pluralize(word string) string {
	switch {
	case word == "":
		return word
	case strings.HasSuffix(word, "s"), strings.HasSuffix(word, "x"),
		strings.HasSuffix(word, "ch"), strings.HasSuffix(word, "sh"):
		return word + "es"
	case strings.HasSuffix(word, "y") && len(word) > 1 && !isVowel(word[len(word)-2]):
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
