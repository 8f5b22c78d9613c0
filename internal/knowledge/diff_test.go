package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rev(sha string, fields ...Field) CodeType {
	return CodeType{
		Name:       "User",
		FullName:   "shop/models.User",
		Fields:     fields,
		Provenance: ProvenanceRecord{CommitSHA: sha},
	}
}

func TestDiffTypesIdenticalRevisionsAreEmpty(t *testing.T) {
	ct := rev("aaa",
		Field{Name: "ID", DeclaredType: "primitive.ObjectID", Required: true},
		Field{Name: "Email", DeclaredType: "string", Required: true},
	)
	diff := DiffTypes(ct, ct)
	assert.True(t, diff.IsEmpty())
	assert.Equal(t, "User", diff.TypeName)
}

func TestDiffTypesFieldChanges(t *testing.T) {
	from := rev("aaa",
		Field{Name: "ID", DeclaredType: "string", Required: true},
		Field{Name: "Age", DeclaredType: "int", Required: true},
		Field{Name: "Legacy", DeclaredType: "string"},
	)
	to := rev("bbb",
		Field{Name: "ID", DeclaredType: "primitive.ObjectID", Required: true},
		Field{Name: "Age", DeclaredType: "int", Required: false},
		Field{Name: "Email", DeclaredType: "string", Required: true},
	)

	diff := DiffTypes(from, to)
	assert.Equal(t, "aaa", diff.FromCommit)
	assert.Equal(t, "bbb", diff.ToCommit)
	assert.Equal(t, []string{"Email"}, diff.AddedFields)
	assert.Equal(t, []string{"Legacy"}, diff.RemovedFields)

	require.Len(t, diff.ModifiedFields, 2)
	assert.Equal(t, FieldChange{
		Name: "Age", Description: "required→optional", OldType: "int", NewType: "int",
	}, diff.ModifiedFields[0])
	assert.Equal(t, "string→primitive.ObjectID", diff.ModifiedFields[1].Description)
}

func TestDiffTypesTagChanges(t *testing.T) {
	from := rev("aaa", Field{
		Name: "Email", DeclaredType: "string",
		SerializationTags: []Tag{{Name: "bson", Value: "email_address"}},
	})
	to := rev("bbb", Field{
		Name: "Email", DeclaredType: "string",
		SerializationTags: []Tag{{Name: "bson", Value: "email"}, {Name: "json", Value: "email"}},
	})

	diff := DiffTypes(from, to)
	assert.Empty(t, diff.ModifiedFields, "tag changes are not shape changes")
	require.Len(t, diff.AttributeChanges, 2)
	assert.Contains(t, diff.AttributeChanges, AttributeChange{
		Field: "Email", Tag: "bson", OldValue: "email_address", NewValue: "email",
	})
	assert.Contains(t, diff.AttributeChanges, AttributeChange{
		Field: "Email", Tag: "json", NewValue: "email",
	})
}

func TestEntityIDsAreDeterministic(t *testing.T) {
	assert.Equal(t, TypeID("shop/models.User"), TypeID("shop/models.User"))
	assert.NotEqual(t, TypeID("shop/models.User"), TypeID("shop/models.Order"))

	id := TypeID("shop/models.User")
	assert.Regexp(t, `^type::[0-9a-f]{20}$`, id)
	assert.Equal(t, "entry::"+id, EntryID(id))

	assert.NotEqual(t,
		OperationID("a.go", 10, OpFind, "users"),
		OperationID("a.go", 11, OpFind, "users"),
		"call-site line is part of operation identity")
	assert.NotEqual(t,
		RelationshipID("t1", "t2", RelRefersTo, "user_id"),
		RelationshipID("t1", "t2", RelLookup, "user_id"))
}
