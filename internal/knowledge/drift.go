package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// DriftSeverity ranks how concerning a drift finding is.
type DriftSeverity string

const (
	DriftInfo    DriftSeverity = "info"
	DriftWarning DriftSeverity = "warning"
	DriftError   DriftSeverity = "error"
)

// DriftFinding is one divergence between declared and observed schema.
type DriftFinding struct {
	FieldPath   string        `json:"field_path"`
	Kind        string        `json:"kind"` // "undeclared_field", "unobserved_field", "optionality_mismatch", "type_mismatch"
	Severity    DriftSeverity `json:"severity"`
	Description string        `json:"description"`
}

// DriftReport summarizes declared-vs-observed divergence for one collection.
type DriftReport struct {
	TypeName       string         `json:"type_name"`
	CollectionName string         `json:"collection_name"`
	SampleSize     int            `json:"sample_size"`
	Findings       []DriftFinding `json:"findings"`
}

// HasDrift reports whether any finding was recorded.
func (r DriftReport) HasDrift() bool { return len(r.Findings) > 0 }

// DetectDrift compares a declared type against the schema observed by
// sampling its collection. Findings cover fields declared but never observed,
// fields observed but never declared, declared-required fields that are
// optional in practice, and scalar type mismatches.
func DetectDrift(ct CodeType, obs ObservedSchema) DriftReport {
	report := DriftReport{
		TypeName:       ct.Name,
		CollectionName: obs.CollectionName,
		SampleSize:     obs.SampleSize,
		Findings:       []DriftFinding{},
	}

	required := make(map[string]bool, len(obs.RequiredFields))
	for _, f := range obs.RequiredFields {
		required[f] = true
	}

	declared := make(map[string]Field, len(ct.Fields))
	for _, f := range ct.Fields {
		declared[documentFieldName(f)] = f
	}

	for name, f := range declared {
		freqs, observed := obs.FieldTypeFrequency[name]
		if !observed {
			report.Findings = append(report.Findings, DriftFinding{
				FieldPath:   name,
				Kind:        "unobserved_field",
				Severity:    DriftInfo,
				Description: fmt.Sprintf("field %q is declared on %s but never appeared in %d sampled documents", name, ct.Name, obs.SampleSize),
			})
			continue
		}
		if f.Required && !required[name] {
			report.Findings = append(report.Findings, DriftFinding{
				FieldPath:   name,
				Kind:        "optionality_mismatch",
				Severity:    DriftWarning,
				Description: fmt.Sprintf("field %q is declared required but missing from some sampled documents", name),
			})
		}
		if mismatch := typeMismatch(f.DeclaredType, freqs); mismatch != "" {
			report.Findings = append(report.Findings, DriftFinding{
				FieldPath:   name,
				Kind:        "type_mismatch",
				Severity:    DriftError,
				Description: mismatch,
			})
		}
	}

	for name := range obs.FieldTypeFrequency {
		if _, ok := declared[name]; !ok && name != "_id" {
			report.Findings = append(report.Findings, DriftFinding{
				FieldPath:   name,
				Kind:        "undeclared_field",
				Severity:    DriftWarning,
				Description: fmt.Sprintf("field %q appears in sampled documents but is not declared on %s", name, ct.Name),
			})
		}
	}

	sort.Slice(report.Findings, func(i, j int) bool {
		if report.Findings[i].FieldPath != report.Findings[j].FieldPath {
			return report.Findings[i].FieldPath < report.Findings[j].FieldPath
		}
		return report.Findings[i].Kind < report.Findings[j].Kind
	})

	return report
}

// documentFieldName resolves the wire name of a field: the bson tag value
// when present, otherwise the lower-cased field name (driver default).
func documentFieldName(f Field) string {
	for _, t := range f.SerializationTags {
		if t.Name == "bson" && t.Value != "" && t.Value != "true" && t.Value != "-" {
			return t.Value
		}
	}
	return strings.ToLower(f.Name)
}

// scalarEquivalents maps declared Go types to acceptable observed bson types.
var scalarEquivalents = map[string][]string{
	"string":             {"string"},
	"int":                {"int", "long", "double"},
	"int32":              {"int", "long"},
	"int64":              {"int", "long"},
	"float32":            {"double", "int", "long"},
	"float64":            {"double", "int", "long"},
	"bool":               {"bool"},
	"time.Time":          {"date", "timestamp", "string"},
	"primitive.ObjectID": {"objectId", "string"},
}

// typeMismatch returns a description when the dominant observed type is
// incompatible with the declared type, or "" when compatible or unknown.
func typeMismatch(declaredType string, freqs map[string]int) string {
	base := strings.TrimLeft(declaredType, "*[]")
	accepted, known := scalarEquivalents[base]
	if !known {
		return "" // composite or unrecognized declared type, nothing to check
	}

	dominant, max := "", 0
	for bsonType, n := range freqs {
		if bsonType == "null" {
			continue
		}
		if n > max {
			dominant, max = bsonType, n
		}
	}
	if dominant == "" {
		return ""
	}
	for _, ok := range accepted {
		if dominant == ok {
			return ""
		}
	}
	return fmt.Sprintf("declared %s but sampled documents are dominantly %s", declaredType, dominant)
}
