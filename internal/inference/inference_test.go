package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/knowledge"
)

func makeType(name string, fields ...knowledge.Field) knowledge.CodeType {
	fullName := "example.com/app." + name
	return knowledge.CodeType{
		ID:       knowledge.TypeID(fullName),
		Name:     name,
		FullName: fullName,
		Fields:   fields,
		Provenance: knowledge.ProvenanceRecord{
			Repository: "app",
			FilePath:   "models.go",
			StartLine:  10,
			CommitSHA:  "abc123",
		},
	}
}

func primaryMapping(ct knowledge.CodeType, collection string) knowledge.CollectionMapping {
	return knowledge.CollectionMapping{
		ID:             knowledge.MappingID(ct.ID, collection),
		TypeID:         ct.ID,
		TypeName:       ct.Name,
		CollectionName: collection,
		IsPrimary:      true,
		Confidence:     1.0,
	}
}

func findOp(collection string, filters ...knowledge.FilterCondition) knowledge.QueryOperation {
	return knowledge.QueryOperation{
		ID:             knowledge.OperationID("repo.go", 30, knowledge.OpFind, collection),
		CollectionName: collection,
		Kind:           knowledge.OpFind,
		Filters:        filters,
		Provenance: knowledge.ProvenanceRecord{
			Repository: "app",
			FilePath:   "repo.go",
			StartLine:  30,
			CommitSHA:  "abc123",
		},
	}
}

func relBetween(rels []knowledge.DataRelationship, source, target, fieldPath string) *knowledge.DataRelationship {
	for i := range rels {
		r := &rels[i]
		if r.SourceTypeName == source && r.TargetTypeName == target && r.FieldPath == fieldPath {
			return r
		}
	}
	return nil
}

func TestInferForeignKeyFilter(t *testing.T) {
	user := makeType("User")
	order := makeType("Order")
	inf := New(zap.NewNop())

	// An equality filter on userId with a 24-hex value collects every bonus.
	rels := inf.Infer(
		[]knowledge.CodeType{user, order},
		[]knowledge.CollectionMapping{primaryMapping(user, "users"), primaryMapping(order, "orders")},
		[]knowledge.QueryOperation{findOp("orders", knowledge.FilterCondition{
			FieldPath: "userId",
			Operator:  "$eq",
			Value:     "507f1f77bcf86cd799439011",
		})},
		"app", "abc123",
	)

	rel := relBetween(rels, "Order", "User", "userId")
	require.NotNil(t, rel, "expected Order→User relationship from the userId filter")
	assert.Equal(t, knowledge.RelRefersTo, rel.Kind)
	assert.GreaterOrEqual(t, rel.Confidence, 0.8)
	assert.Equal(t, 1.0, rel.Confidence, "equality + Id suffix + ObjectID value caps out")
	assert.Equal(t, knowledge.CardinalityManyToOne, rel.Cardinality)
	require.Len(t, rel.Evidence, 1)
	assert.Equal(t, knowledge.EvidenceFilterField, rel.Evidence[0].Kind)
	assert.Equal(t, "repo.go:30", rel.Evidence[0].SourceLocation)
}

func TestInferFilterWithoutBonuses(t *testing.T) {
	user := makeType("User")
	order := makeType("Order")
	inf := New(zap.NewNop())

	// $in on snake_case user_id: no equality bonus, no exact-Id-suffix bonus.
	rels := inf.Infer(
		[]knowledge.CodeType{user, order},
		[]knowledge.CollectionMapping{primaryMapping(user, "users"), primaryMapping(order, "orders")},
		[]knowledge.QueryOperation{findOp("orders", knowledge.FilterCondition{
			FieldPath: "user_id",
			Operator:  "$in",
		})},
		"app", "abc123",
	)

	rel := relBetween(rels, "Order", "User", "user_id")
	require.NotNil(t, rel)
	assert.Equal(t, 0.5, rel.Confidence)
}

func TestInferLookupJoin(t *testing.T) {
	user := makeType("User")
	order := makeType("Order")
	inf := New(zap.NewNop())

	op := knowledge.QueryOperation{
		ID:             knowledge.OperationID("repo.go", 44, knowledge.OpAggregate, "orders"),
		CollectionName: "orders",
		Kind:           knowledge.OpAggregate,
		Pipeline: []knowledge.AggregationStage{{
			Operator: "$lookup",
			Index:    0,
			Args: map[string]string{
				"from":         "users",
				"localField":   "user_id",
				"foreignField": "_id",
				"as":           "user",
			},
		}},
		Provenance: knowledge.ProvenanceRecord{Repository: "app", FilePath: "repo.go", StartLine: 44, CommitSHA: "abc123"},
	}

	rels := inf.Infer(
		[]knowledge.CodeType{user, order},
		[]knowledge.CollectionMapping{primaryMapping(user, "users"), primaryMapping(order, "orders")},
		[]knowledge.QueryOperation{op},
		"app", "abc123",
	)

	rel := relBetween(rels, "Order", "User", "user_id")
	require.NotNil(t, rel)
	assert.Equal(t, knowledge.RelLookup, rel.Kind)
	assert.Equal(t, 0.9, rel.Confidence)
	require.Len(t, rel.Evidence, 1)
	assert.Equal(t, knowledge.EvidenceJoinStage, rel.Evidence[0].Kind)
}

func TestInferNamingConvention(t *testing.T) {
	user := makeType("User")
	order := makeType("Order", knowledge.Field{
		Name: "UserID", DeclaredType: "primitive.ObjectID", Line: 12,
	})
	inf := New(zap.NewNop())

	rels := inf.Infer([]knowledge.CodeType{user, order}, nil, nil, "app", "abc123")

	rel := relBetween(rels, "Order", "User", "UserID")
	require.NotNil(t, rel, "UserID matches the {type}Id convention case-insensitively")
	assert.Equal(t, knowledge.RelRefersTo, rel.Kind)
	assert.Equal(t, 0.6, rel.Confidence)
}

func TestInferFieldTypeContainment(t *testing.T) {
	profile := makeType("Profile")
	user := makeType("User",
		knowledge.Field{Name: "Profile", DeclaredType: "Profile", Line: 8},
		knowledge.Field{Name: "Backup", DeclaredType: "*Profile", Nullable: true, Line: 9},
		knowledge.Field{Name: "History", DeclaredType: "[]Profile", Line: 10},
	)
	inf := New(zap.NewNop())

	rels := inf.Infer([]knowledge.CodeType{profile, user}, nil, nil, "app", "abc123")

	direct := relBetween(rels, "User", "Profile", "Profile")
	require.NotNil(t, direct)
	assert.Equal(t, 0.7, direct.Confidence)
	assert.True(t, direct.IsRequired, "non-nullable field implies a required reference")

	pointer := relBetween(rels, "User", "Profile", "Backup")
	require.NotNil(t, pointer)
	assert.False(t, pointer.IsRequired)

	assert.Nil(t, relBetween(rels, "User", "Profile", "History"),
		"slice fields are containers, not direct references")
}

func TestInferMergesDuplicateEvidence(t *testing.T) {
	user := makeType("User")
	order := makeType("Order")
	inf := New(zap.NewNop())

	filter := knowledge.FilterCondition{FieldPath: "userId", Operator: "$eq"}
	// Two identical call sites at the same location: one relationship, one
	// evidence item.
	rels := inf.Infer(
		[]knowledge.CodeType{user, order},
		[]knowledge.CollectionMapping{primaryMapping(user, "users"), primaryMapping(order, "orders")},
		[]knowledge.QueryOperation{findOp("orders", filter), findOp("orders", filter)},
		"app", "abc123",
	)

	rel := relBetween(rels, "Order", "User", "userId")
	require.NotNil(t, rel)
	assert.Len(t, rel.Evidence, 1)
}

func TestInferDiscardsSelfRelationships(t *testing.T) {
	order := makeType("Order")
	inf := New(zap.NewNop())

	rels := inf.Infer(
		[]knowledge.CodeType{order},
		[]knowledge.CollectionMapping{primaryMapping(order, "orders")},
		[]knowledge.QueryOperation{findOp("orders", knowledge.FilterCondition{
			FieldPath: "orderId", Operator: "$eq",
		})},
		"app", "abc123",
	)
	assert.Empty(t, rels)
}

func TestInferConfidenceBoundsAndOrdering(t *testing.T) {
	user := makeType("User")
	order := makeType("Order", knowledge.Field{Name: "UserID", DeclaredType: "primitive.ObjectID", Line: 12})
	item := makeType("Item", knowledge.Field{Name: "OrderID", DeclaredType: "primitive.ObjectID", Line: 6})
	inf := New(zap.NewNop())

	rels := inf.Infer(
		[]knowledge.CodeType{user, order, item},
		[]knowledge.CollectionMapping{primaryMapping(user, "users"), primaryMapping(order, "orders")},
		[]knowledge.QueryOperation{findOp("orders", knowledge.FilterCondition{
			FieldPath: "userId", Operator: "$eq", Value: "507f1f77bcf86cd799439011",
		})},
		"app", "abc123",
	)
	require.NotEmpty(t, rels)

	for _, r := range rels {
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
	for i := 1; i < len(rels); i++ {
		assert.GreaterOrEqual(t, rels[i-1].Confidence, rels[i].Confidence,
			"results are ordered by confidence, best first")
	}
}

func TestStripIDSuffix(t *testing.T) {
	tests := []struct {
		in       string
		base     string
		exactID  bool
	}{
		{"userId", "user", true},
		{"user_id", "user", false},
		{"UserID", "User", false},
		{"customer.accountId", "account", true},
		{"id", "", false},
		{"total", "", false},
	}
	for _, tt := range tests {
		base, exact := stripIDSuffix(tt.in)
		if base != tt.base || exact != tt.exactID {
			t.Errorf("stripIDSuffix(%q) = (%q, %v), want (%q, %v)", tt.in, base, exact, tt.base, tt.exactID)
		}
	}
}
