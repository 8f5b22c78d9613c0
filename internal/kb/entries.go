package kb

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

// Entity type labels in knowledge_base_entries.
const (
	entityCodeType     = "code_type"
	entityMapping      = "collection_mapping"
	entityOperation    = "query_operation"
	entityRelationship = "data_relationship"
	entitySchema       = "observed_schema"
)

// BuildEntries projects every entity of an extraction result into its
// denormalized, search-optimized entry.
func BuildEntries(result *knowledge.ExtractionResult, now time.Time) []knowledge.KnowledgeBaseEntry {
	var entries []knowledge.KnowledgeBaseEntry

	for _, t := range result.Types {
		entries = append(entries, knowledge.KnowledgeBaseEntry{
			ID:             knowledge.EntryID(t.ID),
			EntityType:     entityCodeType,
			EntityID:       t.ID,
			Name:           t.Name,
			SearchableText: typeSearchText(t),
			Tags:           []string{"type", t.Namespace},
			Relevance:      1.0,
			LastUpdated:    now,
			IsActive:       true,
			Provenance:     t.Provenance,
		})
	}
	for _, m := range result.Mappings {
		entries = append(entries, knowledge.KnowledgeBaseEntry{
			ID:             knowledge.EntryID(m.ID),
			EntityType:     entityMapping,
			EntityID:       m.ID,
			Name:           m.TypeName + " -> " + m.CollectionName,
			SearchableText: strings.Join([]string{m.TypeName, m.CollectionName, string(m.ResolutionMethod)}, " "),
			Tags:           []string{"mapping", m.CollectionName},
			Relevance:      m.Confidence,
			LastUpdated:    now,
			IsActive:       true,
			Provenance:     m.Provenance,
		})
	}
	for _, op := range result.Operations {
		entries = append(entries, knowledge.KnowledgeBaseEntry{
			ID:             knowledge.EntryID(op.ID),
			EntityType:     entityOperation,
			EntityID:       op.ID,
			Name:           fmt.Sprintf("%s on %s", op.Kind, op.CollectionName),
			SearchableText: operationSearchText(op),
			Tags:           []string{"operation", string(op.Kind), op.CollectionName},
			Relevance:      1.0,
			LastUpdated:    now,
			IsActive:       true,
			Provenance:     op.Provenance,
		})
	}
	for _, rel := range result.Relationships {
		entries = append(entries, knowledge.KnowledgeBaseEntry{
			ID:             knowledge.EntryID(rel.ID),
			EntityType:     entityRelationship,
			EntityID:       rel.ID,
			Name:           fmt.Sprintf("%s %s %s", rel.SourceTypeName, rel.Kind, rel.TargetTypeName),
			SearchableText: relationshipSearchText(rel),
			Tags:           []string{"relationship", string(rel.Kind)},
			Relevance:      rel.Confidence,
			LastUpdated:    now,
			IsActive:       true,
			Provenance:     rel.Provenance,
		})
	}
	for _, schema := range result.Schemas {
		entries = append(entries, knowledge.KnowledgeBaseEntry{
			ID:             knowledge.EntryID(schema.ID),
			EntityType:     entitySchema,
			EntityID:       schema.ID,
			Name:           "schema of " + schema.CollectionName,
			SearchableText: schemaSearchText(schema),
			Tags:           []string{"schema", schema.CollectionName},
			Relevance:      1.0,
			LastUpdated:    now,
			IsActive:       true,
			Provenance:     schema.Provenance,
		})
	}
	return entries
}

func typeSearchText(t knowledge.CodeType) string {
	parts := []string{t.Name, t.FullName, t.Documentation}
	for _, f := range t.Fields {
		parts = append(parts, f.Name, f.DeclaredType)
		for _, tag := range f.SerializationTags {
			parts = append(parts, tag.Value)
		}
	}
	return strings.Join(nonEmpty(parts), " ")
}

func operationSearchText(op knowledge.QueryOperation) string {
	parts := []string{string(op.Kind), op.CollectionName, op.Provenance.SymbolName}
	for _, f := range op.Filters {
		parts = append(parts, f.FieldPath)
	}
	for _, stage := range op.Pipeline {
		parts = append(parts, stage.Operator)
	}
	return strings.Join(nonEmpty(parts), " ")
}

func relationshipSearchText(rel knowledge.DataRelationship) string {
	parts := []string{rel.SourceTypeName, rel.TargetTypeName, rel.FieldPath, string(rel.Kind)}
	for _, ev := range rel.Evidence {
		parts = append(parts, string(ev.Kind))
	}
	return strings.Join(nonEmpty(parts), " ")
}

func schemaSearchText(schema knowledge.ObservedSchema) string {
	parts := []string{schema.CollectionName}
	fields := make([]string, 0, len(schema.FieldTypeFrequency))
	for path := range schema.FieldTypeFrequency {
		fields = append(fields, path)
	}
	sort.Strings(fields)
	return strings.Join(nonEmpty(append(parts, fields...)), " ")
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BuildGraph projects types, mappings, and relationships into the node/edge
// form consumed by the graph-query collaborator. Collections become their own
// nodes; mappings become "mapped_to" edges.
func BuildGraph(result *knowledge.ExtractionResult) ([]knowledge.GraphNode, []knowledge.GraphEdge) {
	var nodes []knowledge.GraphNode
	var edges []knowledge.GraphEdge
	nodeSeen := map[string]bool{}
	edgeSeen := map[string]bool{}

	typeNode := map[string]string{} // type ID -> node ID
	for _, t := range result.Types {
		id := knowledge.NodeID("type", t.FullName)
		typeNode[t.ID] = id
		if !nodeSeen[id] {
			nodeSeen[id] = true
			nodes = append(nodes, knowledge.GraphNode{
				ID:         id,
				Kind:       "type",
				Name:       t.Name,
				Namespace:  t.Namespace,
				Provenance: t.Provenance,
			})
		}
	}
	for _, m := range result.Mappings {
		if !m.IsPrimary {
			continue
		}
		colID := knowledge.NodeID("collection", m.CollectionName)
		if !nodeSeen[colID] {
			nodeSeen[colID] = true
			nodes = append(nodes, knowledge.GraphNode{
				ID:         colID,
				Kind:       "collection",
				Name:       m.CollectionName,
				Provenance: m.Provenance,
			})
		}
		src, ok := typeNode[m.TypeID]
		if !ok {
			continue
		}
		edgeID := knowledge.EdgeID(src, colID, "mapped_to")
		if !edgeSeen[edgeID] {
			edgeSeen[edgeID] = true
			edges = append(edges, knowledge.GraphEdge{
				ID:         edgeID,
				Source:     src,
				Target:     colID,
				Kind:       "mapped_to",
				Confidence: m.Confidence,
				Provenance: m.Provenance,
			})
		}
	}
	for _, rel := range result.Relationships {
		src, okSrc := typeNode[rel.SourceTypeID]
		dst, okDst := typeNode[rel.TargetTypeID]
		if !okSrc || !okDst {
			continue
		}
		edgeID := knowledge.EdgeID(src, dst, string(rel.Kind))
		if edgeSeen[edgeID] {
			continue
		}
		edgeSeen[edgeID] = true
		edges = append(edges, knowledge.GraphEdge{
			ID:         edgeID,
			Source:     src,
			Target:     dst,
			Kind:       string(rel.Kind),
			Confidence: rel.Confidence,
			Provenance: rel.Provenance,
		})
	}
	return nodes, edges
}
