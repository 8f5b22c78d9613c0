// Package knowledge defines the entity model for the doclens knowledge base:
// code types, collection mappings, query operations, inferred relationships,
// observed schemas, and the denormalized search entries built from them.
// Everything here is a plain value type; persistence lives in internal/kb.
package knowledge

import "time"

// ResolutionMethod describes how a type's collection name was determined.
type ResolutionMethod string

const (
	ResolutionLiteral             ResolutionMethod = "literal"              // String literal at the accessor call
	ResolutionConstant            ResolutionMethod = "constant"             // const/readonly reference with a literal initializer
	ResolutionConfig              ResolutionMethod = "config"               // Configuration lookup
	ResolutionInferred            ResolutionMethod = "inferred"             // Naming-convention inference from the type name
	ResolutionEnvironment         ResolutionMethod = "environment"          // Environment variable lookup
	ResolutionDependencyInjection ResolutionMethod = "dependency_injection" // Injected collection handle
	ResolutionUnknown             ResolutionMethod = "unknown"
)

// OperationKind is the database verb of an extracted call site.
type OperationKind string

const (
	OpFind       OperationKind = "find"
	OpFindOne    OperationKind = "find_one"
	OpInsertOne  OperationKind = "insert_one"
	OpInsertMany OperationKind = "insert_many"
	OpUpdateOne  OperationKind = "update_one"
	OpUpdateMany OperationKind = "update_many"
	OpReplaceOne OperationKind = "replace_one"
	OpDeleteOne  OperationKind = "delete_one"
	OpDeleteMany OperationKind = "delete_many"
	OpAggregate  OperationKind = "aggregate"
	OpCount      OperationKind = "count"
	OpDistinct   OperationKind = "distinct"
)

// RelationshipKind classifies an inferred relationship between two types.
type RelationshipKind string

const (
	RelRefersTo RelationshipKind = "REFERS_TO" // Foreign-key style reference
	RelLookup   RelationshipKind = "LOOKUP"    // Explicit $lookup join
)

// Cardinality of a relationship, from the referencing side.
type Cardinality string

const (
	CardinalityOneToOne   Cardinality = "one_to_one"
	CardinalityOneToMany  Cardinality = "one_to_many"
	CardinalityManyToOne  Cardinality = "many_to_one"
	CardinalityManyToMany Cardinality = "many_to_many"
)

// EvidenceKind names the inference pass that produced an evidence item.
type EvidenceKind string

const (
	EvidenceFilterField      EvidenceKind = "filter_field"
	EvidenceJoinStage        EvidenceKind = "join_stage"
	EvidenceNamingConvention EvidenceKind = "naming_convention"
	EvidenceFieldType        EvidenceKind = "field_type"
)

// ProvenanceRecord pins an extracted fact to its origin in source control.
// It is mandatory on every persisted entity; the synchronizer treats a zero
// provenance as an integrity violation.
type ProvenanceRecord struct {
	Repository string    `json:"repository" bson:"repository"`
	FilePath   string    `json:"file_path" bson:"file_path"`
	SymbolName string    `json:"symbol_name,omitempty" bson:"symbol_name,omitempty"`
	StartLine  int       `json:"start_line" bson:"start_line"`
	EndLine    int       `json:"end_line" bson:"end_line"`
	CommitSHA  string    `json:"commit_sha" bson:"commit_sha"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// IsZero reports whether the record carries no origin information.
func (p ProvenanceRecord) IsZero() bool {
	return p.Repository == "" && p.FilePath == "" && p.CommitSHA == ""
}

// Field is a single member of a CodeType.
type Field struct {
	Name              string   `json:"name" bson:"name"`
	DeclaredType      string   `json:"declared_type" bson:"declared_type"`
	Nullable          bool     `json:"nullable" bson:"nullable"`
	Required          bool     `json:"required" bson:"required"`
	SerializationTags []Tag    `json:"serialization_tags,omitempty" bson:"serialization_tags,omitempty"`
	Documentation     string   `json:"documentation,omitempty" bson:"documentation,omitempty"`
	Line              int      `json:"line,omitempty" bson:"line,omitempty"`
	IsEmbedded        bool     `json:"is_embedded,omitempty" bson:"is_embedded,omitempty"`
	EnumValues        []string `json:"enum_values,omitempty" bson:"enum_values,omitempty"`
}

// Tag is a normalized serialization attribute attached to a field.
// Name is the short attribute name ("bson", "json"); Value is the first
// argument, or "true" when the attribute is present without one.
type Tag struct {
	Name  string `json:"name" bson:"name"`
	Value string `json:"value" bson:"value"`
}

// CodeType is a declared type exhibiting document-store characteristics.
type CodeType struct {
	ID             string           `json:"id" bson:"_id"`
	Name           string           `json:"name" bson:"name"`
	FullName       string           `json:"full_name" bson:"full_name"` // FQCN: import path + "." + name
	Namespace      string           `json:"namespace" bson:"namespace"`
	Documentation  string           `json:"documentation,omitempty" bson:"documentation,omitempty"`
	Fields         []Field          `json:"fields" bson:"fields"`
	BaseTypes      []string         `json:"base_types,omitempty" bson:"base_types,omitempty"`
	Discriminators []string         `json:"discriminators,omitempty" bson:"discriminators,omitempty"`
	Provenance     ProvenanceRecord `json:"provenance" bson:"provenance"`
}

// FieldByName returns the field with the given name, or nil.
func (ct *CodeType) FieldByName(name string) *Field {
	for i := range ct.Fields {
		if ct.Fields[i].Name == name {
			return &ct.Fields[i]
		}
	}
	return nil
}

// CollectionAlternative is a lower-confidence candidate collection name.
type CollectionAlternative struct {
	CollectionName   string           `json:"collection_name" bson:"collection_name"`
	ResolutionMethod ResolutionMethod `json:"resolution_method" bson:"resolution_method"`
	Confidence       float64          `json:"confidence" bson:"confidence"`
}

// CollectionMapping binds a CodeType to a named collection.
// A type may carry several mappings; exactly one is primary.
type CollectionMapping struct {
	ID               string                  `json:"id" bson:"_id"`
	TypeID           string                  `json:"type_id" bson:"type_id"`
	TypeName         string                  `json:"type_name" bson:"type_name"`
	CollectionName   string                  `json:"collection_name" bson:"collection_name"`
	ResolutionMethod ResolutionMethod        `json:"resolution_method" bson:"resolution_method"`
	Confidence       float64                 `json:"confidence" bson:"confidence"`
	IsPrimary        bool                    `json:"is_primary" bson:"is_primary"`
	Alternatives     []CollectionAlternative `json:"alternatives,omitempty" bson:"alternatives,omitempty"`
	Provenance       ProvenanceRecord        `json:"provenance" bson:"provenance"`
}

// FilterCondition is one decomposed predicate of a query filter.
type FilterCondition struct {
	FieldPath string `json:"field_path" bson:"field_path"`
	Operator  string `json:"operator" bson:"operator"` // "$eq", "$in", ... or "unknown"
	Value     string `json:"value,omitempty" bson:"value,omitempty"`
	IsNegated bool   `json:"is_negated,omitempty" bson:"is_negated,omitempty"`
}

// AggregationStage is one stage of an aggregation pipeline, keyed by its
// operator name. Arguments beyond the recognized $lookup keys stay opaque.
type AggregationStage struct {
	Operator string            `json:"operator" bson:"operator"` // "$match", "$lookup", ...
	Index    int               `json:"index" bson:"index"`
	Args     map[string]string `json:"args,omitempty" bson:"args,omitempty"`
}

// SortField is one component of a sort specification.
type SortField struct {
	FieldPath  string `json:"field_path" bson:"field_path"`
	Descending bool   `json:"descending,omitempty" bson:"descending,omitempty"`
}

// QueryOperation is one extracted database call site. Immutable once
// extracted for a given provenance; a rescan supersedes rather than mutates.
type QueryOperation struct {
	ID             string             `json:"id" bson:"_id"`
	CollectionName string             `json:"collection_name" bson:"collection_name"`
	Kind           OperationKind      `json:"kind" bson:"kind"`
	Filters        []FilterCondition  `json:"filters,omitempty" bson:"filters,omitempty"`
	Updates        []FilterCondition  `json:"updates,omitempty" bson:"updates,omitempty"`
	Projections    []string           `json:"projections,omitempty" bson:"projections,omitempty"`
	Sort           []SortField        `json:"sort,omitempty" bson:"sort,omitempty"`
	Limit          *int64             `json:"limit,omitempty" bson:"limit,omitempty"`
	Skip           *int64             `json:"skip,omitempty" bson:"skip,omitempty"`
	Pipeline       []AggregationStage `json:"pipeline,omitempty" bson:"pipeline,omitempty"`
	Provenance     ProvenanceRecord   `json:"provenance" bson:"provenance"`
}

// Evidence is one concrete observation supporting an inferred relationship.
type Evidence struct {
	Kind           EvidenceKind `json:"kind" bson:"kind"`
	Description    string       `json:"description" bson:"description"`
	Confidence     float64      `json:"confidence" bson:"confidence"`
	SourceLocation string       `json:"source_location,omitempty" bson:"source_location,omitempty"`
}

// DataRelationship is a confidence-scored hypothesis that one type refers to
// another. No two persisted relationships share (source, target, kind,
// fieldPath); later passes merge into the existing record.
type DataRelationship struct {
	ID              string           `json:"id" bson:"_id"`
	SourceTypeID    string           `json:"source_type_id" bson:"source_type_id"`
	SourceTypeName  string           `json:"source_type_name" bson:"source_type_name"`
	TargetTypeID    string           `json:"target_type_id" bson:"target_type_id"`
	TargetTypeName  string           `json:"target_type_name" bson:"target_type_name"`
	Kind            RelationshipKind `json:"kind" bson:"kind"`
	Confidence      float64          `json:"confidence" bson:"confidence"`
	FieldPath       string           `json:"field_path" bson:"field_path"`
	Cardinality     Cardinality      `json:"cardinality" bson:"cardinality"`
	IsBidirectional bool             `json:"is_bidirectional,omitempty" bson:"is_bidirectional,omitempty"`
	IsRequired      bool             `json:"is_required,omitempty" bson:"is_required,omitempty"`
	Evidence        []Evidence       `json:"evidence" bson:"evidence"`
	Provenance      ProvenanceRecord `json:"provenance" bson:"provenance"`
}

// StringFormat is a regex-classified value format observed during sampling.
type StringFormat struct {
	FieldPath string  `json:"field_path" bson:"field_path"`
	Format    string  `json:"format" bson:"format"` // "email", "object_id", "uuid", ...
	Frequency float64 `json:"frequency" bson:"frequency"`
}

// EnumCandidate is a field whose sampled distinct-value count is small
// enough to suggest a closed set of allowed values.
type EnumCandidate struct {
	FieldPath     string   `json:"field_path" bson:"field_path"`
	Values        []string `json:"values" bson:"values"`
	DistinctCount int      `json:"distinct_count" bson:"distinct_count"`
}

// ObservedSchema holds statistics inferred from a bounded runtime sample of
// one collection. It never stores literal sampled values, only statistics
// derived from them after PII redaction.
type ObservedSchema struct {
	ID                  string                    `json:"id" bson:"_id"`
	CollectionName      string                    `json:"collection_name" bson:"collection_name"`
	FieldTypeFrequency  map[string]map[string]int `json:"field_type_frequency" bson:"field_type_frequency"` // fieldPath → bson type → count
	RequiredFields      []string                  `json:"required_fields" bson:"required_fields"`
	StringFormats       []StringFormat            `json:"string_formats,omitempty" bson:"string_formats,omitempty"`
	EnumCandidates      []EnumCandidate           `json:"enum_candidates,omitempty" bson:"enum_candidates,omitempty"`
	SampleSize          int                       `json:"sample_size" bson:"sample_size"`
	PIIRedacted         bool                      `json:"pii_redacted" bson:"pii_redacted"`
	RedactedFieldCount  int                       `json:"redacted_field_count,omitempty" bson:"redacted_field_count,omitempty"`
	SampledAt           time.Time                 `json:"sampled_at" bson:"sampled_at"`
	Provenance          ProvenanceRecord          `json:"provenance" bson:"provenance"`
}

// KnowledgeBaseEntry is the denormalized, search-optimized projection of any
// entity above. Entries are marked inactive rather than deleted when their
// source disappears, preserving history for diffing.
type KnowledgeBaseEntry struct {
	ID             string           `json:"id" bson:"_id"`
	EntityType     string           `json:"entity_type" bson:"entity_type"` // "code_type", "collection_mapping", ...
	EntityID       string           `json:"entity_id" bson:"entity_id"`
	Name           string           `json:"name" bson:"name"`
	SearchableText string           `json:"searchable_text" bson:"searchable_text"`
	Tags           []string         `json:"tags,omitempty" bson:"tags,omitempty"`
	Relevance      float64          `json:"relevance" bson:"relevance"`
	LastUpdated    time.Time        `json:"last_updated" bson:"last_updated"`
	IsActive       bool             `json:"is_active" bson:"is_active"`
	Provenance     ProvenanceRecord `json:"provenance" bson:"provenance"`
}

// GraphNode is the graph-oriented projection of a CodeType or collection,
// consumed by the external graph-query collaborator.
type GraphNode struct {
	ID         string           `json:"id" bson:"_id"`
	Kind       string           `json:"kind" bson:"kind"` // "type" or "collection"
	Name       string           `json:"name" bson:"name"`
	Namespace  string           `json:"namespace,omitempty" bson:"namespace,omitempty"`
	Provenance ProvenanceRecord `json:"provenance" bson:"provenance"`
}

// GraphEdge is the graph-oriented projection of a relationship or mapping.
type GraphEdge struct {
	ID         string           `json:"id" bson:"_id"`
	Source     string           `json:"source" bson:"source"`
	Target     string           `json:"target" bson:"target"`
	Kind       string           `json:"kind" bson:"kind"` // relationship kind or "mapped_to"
	Confidence float64          `json:"confidence" bson:"confidence"`
	Provenance ProvenanceRecord `json:"provenance" bson:"provenance"`
}

// ExtractionResult is the combined, in-memory output of the static passes
// for one repository, keyed by provenance and ready for reconciliation.
type ExtractionResult struct {
	Repository    string
	CommitSHA     string
	Types         []CodeType
	Mappings      []CollectionMapping
	Operations    []QueryOperation
	Relationships []DataRelationship
	Schemas       []ObservedSchema
}
