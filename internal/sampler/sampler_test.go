package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRedactorSensitiveNames(t *testing.T) {
	r := NewRedactor()
	assert.True(t, r.IsSensitiveName("email"))
	assert.True(t, r.IsSensitiveName("BillingAddress"))
	assert.True(t, r.IsSensitiveName("user_phone_number"))
	assert.True(t, r.IsSensitiveName("apiKey"))
	assert.False(t, r.IsSensitiveName("status"))
	assert.False(t, r.IsSensitiveName("created_at"))
}

func TestRedactorExtraDenylist(t *testing.T) {
	r := NewRedactor("InternalNote")
	assert.True(t, r.IsSensitiveName("internal_note"), "extra entries are matched case-insensitively")
	assert.True(t, r.IsSensitiveName("email"), "extras extend the defaults, not replace them")
}

func TestRedactorSensitiveValues(t *testing.T) {
	r := NewRedactor()
	assert.True(t, r.IsSensitiveValue("ada@example.com"))
	assert.True(t, r.IsSensitiveValue("555-123-4567"))
	assert.True(t, r.IsSensitiveValue("123-45-6789"))
	assert.False(t, r.IsSensitiveValue("active"))
	assert.False(t, r.IsSensitiveValue("507f1f77bcf86cd799439011"),
		"24-hex object ids must survive redaction")
}

func TestRedactDocumentRecurses(t *testing.T) {
	r := NewRedactor()
	doc := map[string]any{
		"status": "open",
		"email":  "ada@example.com",
		"phone":  int64(5551234567), // non-string PII is replaced wholesale
		"contact": map[string]any{
			"address": "1 Main St",
			"city":    "Oslo",
		},
		"notes": []any{"ok", "ada+backup@example.com"},
	}

	out, count := r.RedactDocument(doc)
	assert.Equal(t, 4, count)
	assert.Equal(t, "open", out["status"])
	assert.Equal(t, RedactionSentinel, out["email"])
	assert.Equal(t, RedactionSentinel, out["phone"])

	contact := out["contact"].(map[string]any)
	assert.Equal(t, RedactionSentinel, contact["address"])
	assert.Equal(t, "Oslo", contact["city"])

	notes := out["notes"].([]any)
	assert.Equal(t, []any{"ok", RedactionSentinel}, notes)
}

func TestRedactDocumentLeavesOriginalIntact(t *testing.T) {
	r := NewRedactor()
	doc := map[string]any{"email": "ada@example.com"}
	out, _ := r.RedactDocument(doc)
	assert.Equal(t, "ada@example.com", doc["email"])
	assert.Equal(t, RedactionSentinel, out["email"])
}

func TestInferSchemaTypeFrequenciesAndRequired(t *testing.T) {
	docs := []map[string]any{
		{"_id": primitive.NewObjectID(), "status": "open", "total": 10.5},
		{"_id": primitive.NewObjectID(), "status": "closed", "total": int64(3)},
		{"_id": primitive.NewObjectID(), "status": "open"},
	}

	schema := InferSchema("orders", docs, 0, true)
	assert.Equal(t, "orders", schema.CollectionName)
	assert.Equal(t, 3, schema.SampleSize)
	assert.True(t, schema.PIIRedacted)

	assert.Equal(t, []string{"_id", "status"}, schema.RequiredFields,
		"total misses one document and is therefore optional")
	assert.Equal(t, map[string]int{"objectId": 3}, schema.FieldTypeFrequency["_id"])
	assert.Equal(t, map[string]int{"double": 1, "long": 1}, schema.FieldTypeFrequency["total"])
}

func TestInferSchemaNestedPaths(t *testing.T) {
	docs := []map[string]any{
		{"shipping": map[string]any{"country": "NO"}},
		{"shipping": primitive.M{"country": "SE"}},
	}
	schema := InferSchema("orders", docs, 0, false)
	assert.Equal(t, map[string]int{"object": 2}, schema.FieldTypeFrequency["shipping"])
	assert.Equal(t, map[string]int{"string": 2}, schema.FieldTypeFrequency["shipping.country"])
	assert.Contains(t, schema.RequiredFields, "shipping.country")
}

func TestInferSchemaStringFormats(t *testing.T) {
	docs := []map[string]any{
		{"user_id": "507f1f77bcf86cd799439011", "site": "https://example.com"},
		{"user_id": "507f191e810c19729de860ea", "site": "plain text"},
	}
	schema := InferSchema("events", docs, 0, false)

	require.Len(t, schema.StringFormats, 2)
	assert.Equal(t, "site", schema.StringFormats[0].FieldPath)
	assert.Equal(t, "url", schema.StringFormats[0].Format)
	assert.InDelta(t, 0.5, schema.StringFormats[0].Frequency, 1e-9)

	assert.Equal(t, "user_id", schema.StringFormats[1].FieldPath)
	assert.Equal(t, "object_id", schema.StringFormats[1].Format)
	assert.InDelta(t, 1.0, schema.StringFormats[1].Frequency, 1e-9)
}

func TestInferSchemaEnumCandidates(t *testing.T) {
	docs := make([]map[string]any, 0, 20)
	for i := 0; i < 20; i++ {
		status := "open"
		if i%2 == 0 {
			status = "closed"
		}
		docs = append(docs, map[string]any{
			"status": status,
			"note":   "free text that varies per document " + string(rune('a'+i)),
		})
	}

	schema := InferSchema("orders", docs, 0, false)
	require.Len(t, schema.EnumCandidates, 1)
	assert.Equal(t, "status", schema.EnumCandidates[0].FieldPath)
	assert.Equal(t, []string{"closed", "open"}, schema.EnumCandidates[0].Values)
	assert.Equal(t, 2, schema.EnumCandidates[0].DistinctCount)
}

func TestInferSchemaExcludesSentinelFromStats(t *testing.T) {
	docs := []map[string]any{
		{"email": RedactionSentinel},
		{"email": RedactionSentinel},
	}
	schema := InferSchema("users", docs, 2, true)

	assert.Equal(t, map[string]int{"string": 2}, schema.FieldTypeFrequency["email"],
		"a redacted field still counts as present and typed")
	assert.Empty(t, schema.StringFormats, "the sentinel never feeds format classification")
	assert.Empty(t, schema.EnumCandidates, "the sentinel never becomes an enum value")
	assert.Equal(t, 2, schema.RedactedFieldCount)
}

func TestInferSchemaEmptySample(t *testing.T) {
	schema := InferSchema("users", nil, 0, true)
	assert.Equal(t, 0, schema.SampleSize)
	assert.Empty(t, schema.RequiredFields)
	assert.NotEmpty(t, schema.ID)
}
