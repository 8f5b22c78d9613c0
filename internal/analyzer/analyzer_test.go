package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/knowledge"
	"github.com/doclens-dev/doclens/internal/source"
)

func bsonTag(value string, opts ...string) source.Attribute {
	return source.Attribute{Name: "bson", Value: value, Options: opts}
}

func analyze(t *testing.T, files ...*source.File) []knowledge.CodeType {
	t.Helper()
	return New(zap.NewNop()).Analyze(files, "shop", "abc123")
}

func findType(t *testing.T, types []knowledge.CodeType, name string) knowledge.CodeType {
	t.Helper()
	for _, ct := range types {
		if ct.Name == name {
			return ct
		}
	}
	t.Fatalf("type %s not found in %d results", name, len(types))
	return knowledge.CodeType{}
}

func TestAnalyzeTaggedStruct(t *testing.T) {
	f := &source.File{
		Path:    "models/user.go",
		Package: "models",
		Decls: []source.Declaration{
			{
				Name:      "User",
				FullName:  "shop/models.User",
				Namespace: "shop/models",
				StartLine: 10,
				EndLine:   16,
				Members: []source.Member{
					{Name: "ID", TypeName: "primitive.ObjectID", Line: 11, Attributes: []source.Attribute{bsonTag("_id")}},
					{Name: "Email", TypeName: "string", Line: 12, Attributes: []source.Attribute{bsonTag("email")}},
					{Name: "Nickname", TypeName: "string", Line: 13, Attributes: []source.Attribute{bsonTag("nickname", "omitempty")}},
					{Name: "Manager", TypeName: "*string", Line: 14, Nullable: true, Attributes: []source.Attribute{bsonTag("manager")}},
				},
			},
			// Plain struct with no serialization evidence: not a document type.
			{Name: "requestStats", FullName: "shop/models.requestStats", Members: []source.Member{
				{Name: "Count", TypeName: "int"},
			}},
		},
	}

	types := analyze(t, f)
	require.Len(t, types, 1)

	user := types[0]
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, knowledge.TypeID("shop/models.User"), user.ID)
	assert.Equal(t, "shop", user.Provenance.Repository)
	assert.Equal(t, "models/user.go", user.Provenance.FilePath)
	assert.Equal(t, 10, user.Provenance.StartLine)
	assert.Equal(t, "abc123", user.Provenance.CommitSHA)

	require.Len(t, user.Fields, 4)
	assert.True(t, user.Fields[0].Required, "_id has no omitempty and is not nullable")
	assert.True(t, user.Fields[1].Required)
	assert.False(t, user.Fields[2].Required, "omitempty makes the field optional")
	assert.False(t, user.Fields[3].Required, "nullable makes the field optional")

	require.Len(t, user.Fields[1].SerializationTags, 1)
	assert.Equal(t, knowledge.Tag{Name: "bson", Value: "email"}, user.Fields[1].SerializationTags[0])
}

func TestAnalyzeQualifiesThroughDriverTypes(t *testing.T) {
	// No bson tags at all, but a primitive.ObjectID field still marks the
	// struct as document-store related.
	f := &source.File{
		Path: "audit.go",
		Decls: []source.Declaration{
			{Name: "AuditEntry", FullName: "shop.AuditEntry", Members: []source.Member{
				{Name: "ID", TypeName: "primitive.ObjectID"},
				{Name: "Action", TypeName: "string"},
			}},
		},
	}
	types := analyze(t, f)
	require.Len(t, types, 1)
	assert.Equal(t, "AuditEntry", types[0].Name)
}

func TestAnalyzeFixpointAcrossFiles(t *testing.T) {
	// Order qualifies directly; Invoice only through its Order field; Ledger
	// only through its Invoice field, declared in a different file. The
	// closure must reach all three regardless of file order.
	orders := &source.File{
		Path: "order.go",
		Decls: []source.Declaration{
			{Name: "Ledger", FullName: "shop.Ledger", Members: []source.Member{
				{Name: "Invoices", TypeName: "[]Invoice"},
			}},
			{Name: "Order", FullName: "shop.Order", Members: []source.Member{
				{Name: "ID", TypeName: "string", Attributes: []source.Attribute{bsonTag("_id")}},
			}},
		},
	}
	billing := &source.File{
		Path: "billing.go",
		Decls: []source.Declaration{
			{Name: "Invoice", FullName: "shop.Invoice", Members: []source.Member{
				{Name: "Order", TypeName: "*Order"},
			}},
		},
	}

	types := analyze(t, orders, billing)
	require.Len(t, types, 3)
	findType(t, types, "Order")
	findType(t, types, "Invoice")
	findType(t, types, "Ledger")
}

func TestAnalyzeQualifiesThroughBaseType(t *testing.T) {
	f := &source.File{
		Path: "models.go",
		Decls: []source.Declaration{
			{Name: "BaseDocument", FullName: "shop.BaseDocument", Members: []source.Member{
				{Name: "ID", TypeName: "primitive.ObjectID", Attributes: []source.Attribute{bsonTag("_id")}},
			}},
			{Name: "Product", FullName: "shop.Product", BaseTypes: []string{"BaseDocument"}, Members: []source.Member{
				{Name: "SKU", TypeName: "string"},
			}},
		},
	}
	types := analyze(t, f)
	require.Len(t, types, 2)
	product := findType(t, types, "Product")
	assert.Equal(t, []string{"BaseDocument"}, product.BaseTypes)
}

func TestAnalyzeEnumAndDiscriminator(t *testing.T) {
	f := &source.File{
		Path: "event.go",
		EnumTypes: map[string][]string{
			"EventKind": {"created", "updated", "deleted"},
		},
		Decls: []source.Declaration{
			{Name: "Event", FullName: "shop.Event", Members: []source.Member{
				{Name: "ID", TypeName: "primitive.ObjectID", Attributes: []source.Attribute{bsonTag("_id")}},
				{Name: "Kind", TypeName: "EventKind", Attributes: []source.Attribute{bsonTag("type")}},
			}},
		},
	}

	types := analyze(t, f)
	require.Len(t, types, 1)

	event := types[0]
	kind := event.Fields[1]
	assert.Equal(t, []string{"created", "updated", "deleted"}, kind.EnumValues)
	assert.Equal(t, []string{"created", "updated", "deleted"}, event.Discriminators,
		"a field serialized as \"type\" is the polymorphism marker")
}

func TestBaseTypeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"User", "User"},
		{"*User", "User"},
		{"[]User", "User"},
		{"[]*User", "User"},
		{"map[string]User", "User"},
		{"models.User", "User"},
		{"*models.User", "User"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, baseTypeName(tc.in), "input %q", tc.in)
	}
}
