package sampler

import (
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

// enumMaxDistinct caps the distinct-value count for enum candidacy; the
// effective threshold is min(enumMaxDistinct, sampleSize/enumSampleDivisor).
const (
	enumMaxDistinct    = 10
	enumSampleDivisor  = 5
	enumMaxValueLength = 64
)

// String format classifiers, checked in order; first match wins.
var formatClassifiers = []struct {
	name string
	re   *regexp.Regexp
}{
	{"object_id", regexp.MustCompile(`^[0-9a-fA-F]{24}$`)},
	{"uuid", regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)},
	{"email", regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)},
	{"url", regexp.MustCompile(`^https?://`)},
	{"iso_date", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2})?`)},
	{"phone", regexp.MustCompile(`^\+?[0-9][0-9\-\s().]{7,14}[0-9]$`)},
	{"hex", regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)},
}

// InferSchema computes the observed schema of one collection from sampled
// documents. Redaction must already have happened; this function only sees
// the post-redaction sample and therefore persists no literal PII.
func InferSchema(collection string, docs []map[string]any, redactedCount int, piiEnabled bool) knowledge.ObservedSchema {
	schema := knowledge.ObservedSchema{
		ID:                 knowledge.SchemaID(collection),
		CollectionName:     collection,
		FieldTypeFrequency: make(map[string]map[string]int),
		SampleSize:         len(docs),
		PIIRedacted:        piiEnabled,
		RedactedFieldCount: redactedCount,
		SampledAt:          time.Now().UTC(),
	}
	if len(docs) == 0 {
		schema.RequiredFields = []string{}
		return schema
	}

	presence := make(map[string]int)
	stringValues := make(map[string][]string)

	for _, doc := range docs {
		walkFields(doc, "", func(path string, val any) {
			presence[path]++
			t := bsonTypeName(val)
			if schema.FieldTypeFrequency[path] == nil {
				schema.FieldTypeFrequency[path] = make(map[string]int)
			}
			schema.FieldTypeFrequency[path][t]++
			if s, ok := val.(string); ok && s != RedactionSentinel {
				stringValues[path] = append(stringValues[path], s)
			}
		})
	}

	// Required fields: present in every sampled document.
	schema.RequiredFields = []string{}
	for path, n := range presence {
		if n == len(docs) {
			schema.RequiredFields = append(schema.RequiredFields, path)
		}
	}
	sort.Strings(schema.RequiredFields)

	schema.StringFormats = classifyFormats(stringValues)
	schema.EnumCandidates = findEnumCandidates(stringValues, len(docs))
	return schema
}

// walkFields visits every field of a document with its dotted path. Arrays
// contribute their element values under the array's own path.
func walkFields(doc map[string]any, prefix string, visit func(path string, val any)) {
	for field, val := range doc {
		path := field
		if prefix != "" {
			path = prefix + "." + field
		}
		visit(path, val)
		switch v := val.(type) {
		case map[string]any:
			walkFields(v, path, visit)
		case primitive.M:
			walkFields(map[string]any(v), path, visit)
		}
	}
}

// classifyFormats assigns each string field its dominant detected format
// with the observed frequency.
func classifyFormats(stringValues map[string][]string) []knowledge.StringFormat {
	var formats []knowledge.StringFormat
	for path, values := range stringValues {
		counts := make(map[string]int)
		for _, v := range values {
			for _, fc := range formatClassifiers {
				if fc.re.MatchString(v) {
					counts[fc.name]++
					break
				}
			}
		}
		for name, n := range counts {
			formats = append(formats, knowledge.StringFormat{
				FieldPath: path,
				Format:    name,
				Frequency: float64(n) / float64(len(values)),
			})
		}
	}
	sort.Slice(formats, func(i, j int) bool {
		if formats[i].FieldPath != formats[j].FieldPath {
			return formats[i].FieldPath < formats[j].FieldPath
		}
		return formats[i].Format < formats[j].Format
	})
	return formats
}

// findEnumCandidates flags string fields whose distinct-value count stays
// below the threshold relative to sample size.
func findEnumCandidates(stringValues map[string][]string, sampleSize int) []knowledge.EnumCandidate {
	threshold := enumMaxDistinct
	if bySample := sampleSize / enumSampleDivisor; bySample < threshold && bySample > 0 {
		threshold = bySample
	}

	var candidates []knowledge.EnumCandidate
	for path, values := range stringValues {
		if len(values) < 2 {
			continue
		}
		distinct := make(map[string]bool)
		ok := true
		for _, v := range values {
			if len(v) > enumMaxValueLength {
				ok = false
				break
			}
			distinct[v] = true
			if len(distinct) > threshold {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		vals := make([]string, 0, len(distinct))
		for v := range distinct {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		candidates = append(candidates, knowledge.EnumCandidate{
			FieldPath:     path,
			Values:        vals,
			DistinctCount: len(vals),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].FieldPath < candidates[j].FieldPath
	})
	return candidates
}

// bsonTypeName maps a decoded value to its bson type name.
func bsonTypeName(val any) string {
	switch val.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32, int:
		return "int"
	case int64:
		return "long"
	case float64, float32:
		return "double"
	case time.Time, primitive.DateTime:
		return "date"
	case primitive.ObjectID:
		return "objectId"
	case primitive.Timestamp:
		return "timestamp"
	case primitive.Decimal128:
		return "decimal"
	case primitive.Binary:
		return "binData"
	case []any, primitive.A:
		return "array"
	case map[string]any, primitive.M, primitive.D:
		return "object"
	default:
		return "unknown"
	}
}
