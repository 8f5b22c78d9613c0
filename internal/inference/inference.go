// Package inference hypothesizes typed relationships between document-store
// types by combining four independent passes over the extracted corpus:
// filter fields shaped like foreign keys, explicit $lookup joins, naming
// conventions, and field-type containment. Candidates are deduplicated by
// (source, target, kind, fieldPath); the surviving record keeps the maximum
// confidence across passes and the merged evidence of every pass that
// proposed it.
package inference

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

// Filter-pass scoring.
const (
	filterBaseConfidence  = 0.5
	equalityBonus         = 0.2
	idSuffixBonus         = 0.2
	objectIDValueBonus    = 0.1
	lookupConfidence      = 0.9
	namingConfidence      = 0.6
	fieldTypeConfidence   = 0.7
	maxConfidence         = 1.0
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Inferencer runs the relationship-inference passes.
type Inferencer struct {
	log *zap.Logger
}

// New creates a relationship inferencer.
func New(log *zap.Logger) *Inferencer {
	return &Inferencer{log: log}
}

// corpus indexes the extraction results the passes share.
type corpus struct {
	types        []knowledge.CodeType
	byLowerName  map[string]*knowledge.CodeType
	byCollection map[string]*knowledge.CodeType // primary mapping only
	operations   []knowledge.QueryOperation
	repository   string
	commitSHA    string
}

// Infer combines all passes and returns the deduplicated relationship set.
func (inf *Inferencer) Infer(types []knowledge.CodeType, mappings []knowledge.CollectionMapping, ops []knowledge.QueryOperation, repository, commitSHA string) []knowledge.DataRelationship {
	c := &corpus{
		types:        types,
		byLowerName:  make(map[string]*knowledge.CodeType, len(types)),
		byCollection: make(map[string]*knowledge.CodeType),
		operations:   ops,
		repository:   repository,
		commitSHA:    commitSHA,
	}
	for i := range types {
		c.byLowerName[strings.ToLower(types[i].Name)] = &types[i]
	}
	for _, m := range mappings {
		if !m.IsPrimary {
			continue
		}
		for i := range types {
			if types[i].ID == m.TypeID {
				c.byCollection[m.CollectionName] = &types[i]
			}
		}
	}

	merger := newMerger()
	inf.filterPass(c, merger)
	inf.joinPass(c, merger)
	inf.namingPass(c, merger)
	inf.fieldTypePass(c, merger)

	rels := merger.result()
	inf.log.Debug("relationship inference complete",
		zap.Int("types", len(types)),
		zap.Int("operations", len(ops)),
		zap.Int("relationships", len(rels)))
	return rels
}

// filterPass: a foreign-key-shaped filter field on collection A whose
// suffix-stripped name matches a known type B yields REFERS_TO A→B.
func (inf *Inferencer) filterPass(c *corpus, m *merger) {
	for _, op := range c.operations {
		src := c.byCollection[op.CollectionName]
		if src == nil {
			continue
		}
		for _, cond := range op.Filters {
			base, hasIDSuffix := stripIDSuffix(cond.FieldPath)
			if base == "" {
				continue
			}
			target := c.byLowerName[strings.ToLower(base)]
			if target == nil || target.ID == src.ID {
				continue
			}

			confidence := filterBaseConfidence
			if cond.Operator == "$eq" && !cond.IsNegated {
				confidence += equalityBonus
			}
			if hasIDSuffix {
				confidence += idSuffixBonus
			}
			if objectIDPattern.MatchString(cond.Value) {
				confidence += objectIDValueBonus
			}
			if confidence > maxConfidence {
				confidence = maxConfidence
			}

			m.propose(candidate{
				source:      src,
				target:      target,
				kind:        knowledge.RelRefersTo,
				fieldPath:   cond.FieldPath,
				cardinality: knowledge.CardinalityManyToOne,
				confidence:  confidence,
				repository:  c.repository,
				commitSHA:   c.commitSHA,
				evidence: knowledge.Evidence{
					Kind:           knowledge.EvidenceFilterField,
					Description:    fmt.Sprintf("filter on %q in a %s query against %q resembles a foreign key to %s", cond.FieldPath, op.Kind, op.CollectionName, target.Name),
					Confidence:     confidence,
					SourceLocation: fmt.Sprintf("%s:%d", op.Provenance.FilePath, op.Provenance.StartLine),
				},
			})
		}
	}
}

// joinPass: an explicit $lookup stage with resolvable from/localField/
// foreignField yields LOOKUP with fixed high confidence: explicit joins are
// trusted more than filter heuristics.
func (inf *Inferencer) joinPass(c *corpus, m *merger) {
	for _, op := range c.operations {
		if op.Kind != knowledge.OpAggregate {
			continue
		}
		src := c.byCollection[op.CollectionName]
		for _, stage := range op.Pipeline {
			if stage.Operator != "$lookup" {
				continue
			}
			from := stage.Args["from"]
			local := stage.Args["localField"]
			foreign := stage.Args["foreignField"]
			if from == "" || local == "" || foreign == "" || src == nil {
				continue
			}
			target := c.byCollection[from]
			if target == nil {
				target = c.byLowerName[strings.ToLower(singularize(from))]
			}
			if target == nil || target.ID == src.ID {
				continue
			}

			m.propose(candidate{
				source:      src,
				target:      target,
				kind:        knowledge.RelLookup,
				fieldPath:   local,
				cardinality: knowledge.CardinalityOneToMany,
				confidence:  lookupConfidence,
				repository:  c.repository,
				commitSHA:   c.commitSHA,
				evidence: knowledge.Evidence{
					Kind:           knowledge.EvidenceJoinStage,
					Description:    fmt.Sprintf("$lookup from %q joins %s.%s to %s.%s", from, op.CollectionName, local, from, foreign),
					Confidence:     lookupConfidence,
					SourceLocation: fmt.Sprintf("%s:%d", op.Provenance.FilePath, op.Provenance.StartLine),
				},
			})
		}
	}
}

// namingPass: a field literally named {B}Id or {B}_id on type A references B.
// Pairs are visited once (i<j) with both directions checked, so no unordered
// pair is processed twice.
func (inf *Inferencer) namingPass(c *corpus, m *merger) {
	for i := range c.types {
		for j := i + 1; j < len(c.types); j++ {
			inf.checkNaming(c, m, &c.types[i], &c.types[j])
			inf.checkNaming(c, m, &c.types[j], &c.types[i])
		}
	}
}

func (inf *Inferencer) checkNaming(c *corpus, m *merger, a, b *knowledge.CodeType) {
	for _, f := range a.Fields {
		if !strings.EqualFold(f.Name, b.Name+"Id") && !strings.EqualFold(f.Name, b.Name+"_id") {
			continue
		}
		m.propose(candidate{
			source:      a,
			target:      b,
			kind:        knowledge.RelRefersTo,
			fieldPath:   f.Name,
			cardinality: knowledge.CardinalityManyToOne,
			confidence:  namingConfidence,
			repository:  c.repository,
			commitSHA:   c.commitSHA,
			evidence: knowledge.Evidence{
				Kind:           knowledge.EvidenceNamingConvention,
				Description:    fmt.Sprintf("%s.%s follows the %s-reference naming convention", a.Name, f.Name, b.Name),
				Confidence:     namingConfidence,
				SourceLocation: fmt.Sprintf("%s:%d", a.Provenance.FilePath, f.Line),
			},
		})
	}
}

// fieldTypePass: a field whose declared type textually contains another
// type's name, and is not itself a collection type, embeds a direct
// reference.
func (inf *Inferencer) fieldTypePass(c *corpus, m *merger) {
	for i := range c.types {
		a := &c.types[i]
		for _, f := range a.Fields {
			if isCollectionType(f.DeclaredType) || f.IsEmbedded {
				continue
			}
			for j := range c.types {
				b := &c.types[j]
				if b.ID == a.ID || !strings.Contains(f.DeclaredType, b.Name) {
					continue
				}
				m.propose(candidate{
					source:      a,
					target:      b,
					kind:        knowledge.RelRefersTo,
					fieldPath:   f.Name,
					cardinality: knowledge.CardinalityOneToOne,
					confidence:  fieldTypeConfidence,
					required:    !f.Nullable,
					repository:  c.repository,
					commitSHA:   c.commitSHA,
					evidence: knowledge.Evidence{
						Kind:           knowledge.EvidenceFieldType,
						Description:    fmt.Sprintf("%s.%s is declared as %s", a.Name, f.Name, f.DeclaredType),
						Confidence:     fieldTypeConfidence,
						SourceLocation: fmt.Sprintf("%s:%d", a.Provenance.FilePath, f.Line),
					},
				})
			}
		}
	}
}

// stripIDSuffix removes a trailing Id/_id/ID (case-insensitive) from a field
// path's final segment. The second result reports whether the path ended in
// the exact "Id" form, which earns the suffix bonus.
func stripIDSuffix(fieldPath string) (string, bool) {
	seg := fieldPath
	if idx := strings.LastIndex(seg, "."); idx >= 0 {
		seg = seg[idx+1:]
	}
	lower := strings.ToLower(seg)
	switch {
	case strings.HasSuffix(lower, "_id") && len(seg) > 3:
		return seg[:len(seg)-3], strings.HasSuffix(seg, "Id")
	case strings.HasSuffix(lower, "id") && len(seg) > 2:
		return seg[:len(seg)-2], strings.HasSuffix(seg, "Id")
	}
	return "", false
}

// isCollectionType reports whether a declared type is an array/slice/map
// container rather than a scalar reference.
func isCollectionType(typeName string) bool {
	t := strings.TrimPrefix(typeName, "*")
	return strings.HasPrefix(t, "[]") || strings.HasPrefix(t, "map[")
}

// singularize is the inverse of the resolver's pluralization, good enough to
// map a collection name back to a candidate type name.
func singularize(word string) string {
	switch {
	case strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "es") && (strings.HasSuffix(word, "ches") || strings.HasSuffix(word, "shes") || strings.HasSuffix(word, "xes") || strings.HasSuffix(word, "ses")):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s"):
		return word[:len(word)-1]
	}
	return word
}

// candidate is one pass's proposal before deduplication.
type candidate struct {
	source      *knowledge.CodeType
	target      *knowledge.CodeType
	kind        knowledge.RelationshipKind
	fieldPath   string
	cardinality knowledge.Cardinality
	confidence  float64
	required    bool
	repository  string
	commitSHA   string
	evidence    knowledge.Evidence
}

// merger deduplicates candidates by (source, target, kind, fieldPath),
// keeping the highest-confidence candidate and accumulating evidence.
type merger struct {
	records map[string]*knowledge.DataRelationship
	order   []string
}

func newMerger() *merger {
	return &merger{records: make(map[string]*knowledge.DataRelationship)}
}

func (m *merger) propose(c candidate) {
	// Self-relationships are discarded in every pass.
	if c.source.ID == c.target.ID {
		return
	}

	id := knowledge.RelationshipID(c.source.ID, c.target.ID, c.kind, c.fieldPath)
	existing, ok := m.records[id]
	if !ok {
		rel := &knowledge.DataRelationship{
			ID:             id,
			SourceTypeID:   c.source.ID,
			SourceTypeName: c.source.Name,
			TargetTypeID:   c.target.ID,
			TargetTypeName: c.target.Name,
			Kind:           c.kind,
			Confidence:     c.confidence,
			FieldPath:      c.fieldPath,
			Cardinality:    c.cardinality,
			IsRequired:     c.required,
			Evidence:       []knowledge.Evidence{c.evidence},
			Provenance: knowledge.ProvenanceRecord{
				Repository: c.repository,
				FilePath:   c.source.Provenance.FilePath,
				SymbolName: c.source.Name,
				StartLine:  c.source.Provenance.StartLine,
				EndLine:    c.source.Provenance.EndLine,
				CommitSHA:  c.commitSHA,
				Timestamp:  time.Now().UTC(),
			},
		}
		m.records[id] = rel
		m.order = append(m.order, id)
		return
	}

	// Most specific evidence wins: the merged confidence is the maximum
	// across passes, never a blended average.
	if c.confidence > existing.Confidence {
		existing.Confidence = c.confidence
		existing.Cardinality = c.cardinality
	}
	if c.required {
		existing.IsRequired = true
	}
	if !hasEvidence(existing.Evidence, c.evidence) {
		existing.Evidence = append(existing.Evidence, c.evidence)
	}
}

func hasEvidence(list []knowledge.Evidence, e knowledge.Evidence) bool {
	for _, have := range list {
		if have.Kind == e.Kind && have.SourceLocation == e.SourceLocation {
			return true
		}
	}
	return false
}

func (m *merger) result() []knowledge.DataRelationship {
	out := make([]knowledge.DataRelationship, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.records[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	return out
}
