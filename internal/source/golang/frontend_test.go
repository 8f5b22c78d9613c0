package golang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens-dev/doclens/internal/source"
)

const repoSrc = `package repo

import (
	"context"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

const ordersCollection = "orders"

// User is a stored account.
type User struct {
	ID    primitive.ObjectID ` + "`bson:\"_id\"`" + `
	Email string             ` + "`bson:\"email\" json:\"email\"`" + `
	Tags  []string           ` + "`bson:\"tags,omitempty\"`" + `
}

type Base struct {
	ID primitive.ObjectID ` + "`bson:\"_id\"`" + `
}

type Audited struct {
	Base  ` + "`bson:\",inline\"`" + `
	Actor string ` + "`bson:\"actor\"`" + `
}

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection("users")}
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	return &u, err
}

func (r *UserRepo) OpenOrders(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ordersCollection)
	_, err := coll.Find(ctx, bson.D{{Key: "status", Value: "open"}})
	return err
}

func auditCollection(db *mongo.Database) *mongo.Collection {
	return db.Collection(os.Getenv("AUDIT_COLLECTION"))
}
`

func parseRepo(t *testing.T) *source.File {
	t.Helper()
	f, err := New().ParseFile("repo.go", []byte(repoSrc))
	require.NoError(t, err)
	return f
}

func findCall(t *testing.T, f *source.File, method, enclosing string) *source.CallSite {
	t.Helper()
	for i := range f.Calls {
		c := &f.Calls[i]
		if c.Method == method && c.EnclosingFunc == enclosing {
			return c
		}
	}
	t.Fatalf("no %s call in %s among %d calls", method, enclosing, len(f.Calls))
	return nil
}

func findDecl(t *testing.T, f *source.File, name string) *source.Declaration {
	t.Helper()
	for i := range f.Decls {
		if f.Decls[i].Name == name {
			return &f.Decls[i]
		}
	}
	t.Fatalf("declaration %s not found", name)
	return nil
}

func TestParseFileStructsAndTags(t *testing.T) {
	f := parseRepo(t)
	assert.Equal(t, "repo", f.Package)

	user := findDecl(t, f, "User")
	assert.Equal(t, "repo.User", user.FullName)
	assert.Equal(t, "User is a stored account.", user.Documentation)
	require.Len(t, user.Members, 3)

	id := user.Members[0]
	require.Len(t, id.Attributes, 1)
	assert.Equal(t, source.Attribute{Name: "bson", Value: "_id"}, id.Attributes[0])
	assert.False(t, id.Nullable)

	email := user.Members[1]
	require.Len(t, email.Attributes, 2)
	assert.Equal(t, "bson", email.Attributes[0].Name)
	assert.Equal(t, "json", email.Attributes[1].Name)

	tags := user.Members[2]
	assert.True(t, tags.Nullable, "slice fields are nullable")
	require.Len(t, tags.Attributes, 1)
	assert.True(t, tags.Attributes[0].HasOption("omitempty"))
}

func TestParseFileEmbeddedBase(t *testing.T) {
	f := parseRepo(t)
	audited := findDecl(t, f, "Audited")
	assert.Equal(t, []string{"Base"}, audited.BaseTypes)

	require.Len(t, audited.Members, 2)
	base := audited.Members[0]
	assert.True(t, base.IsEmbedded)
	assert.Equal(t, "Base", base.Name)
	require.Len(t, base.Attributes, 1)
	assert.Equal(t, "true", base.Attributes[0].Value, "empty tag value defaults to true")
	assert.True(t, base.Attributes[0].HasOption("inline"))
}

func TestParseFileConstsAndEnums(t *testing.T) {
	f := parseRepo(t)
	assert.Equal(t, "orders", f.Consts["ordersCollection"])
	assert.Equal(t, "open", f.Consts["StatusOpen"])
	assert.Equal(t, []string{"open", "closed"}, f.EnumTypes["Status"])
}

func TestParseFileResolvesFieldBoundReceiver(t *testing.T) {
	// r.coll is bound in the constructor literal; FindOne's chain must still
	// reach the Collection("users") accessor.
	f := parseRepo(t)
	find := findCall(t, f, "FindOne", "FindByEmail")
	assert.Equal(t, "UserRepo", find.EnclosingType)

	acc := find.RootAccessor("Collection")
	require.NotNil(t, acc)
	require.Len(t, acc.Args, 1)
	assert.Equal(t, source.ExprStringLit, acc.Args[0].Kind)
	assert.Equal(t, "users", acc.Args[0].StringValue)

	require.Len(t, find.Args, 2)
	assert.Equal(t, source.ExprIdent, find.Args[0].Kind)
	require.Equal(t, source.ExprDocument, find.Args[1].Kind)
	v, ok := find.Args[1].Doc.Get("email")
	require.True(t, ok)
	assert.Equal(t, source.Value{Kind: source.ValueIdent, Str: "email"}, v)
}

func TestParseFileDecodeTargets(t *testing.T) {
	f := parseRepo(t)
	decode := findCall(t, f, "Decode", "FindByEmail")
	assert.Equal(t, []string{"User"}, decode.DecodeTargets)
}

func TestParseFileResolvesLocalBindingAndConst(t *testing.T) {
	f := parseRepo(t)
	find := findCall(t, f, "Find", "OpenOrders")

	acc := find.RootAccessor("Collection")
	require.NotNil(t, acc)
	require.Len(t, acc.Args, 1)
	assert.Equal(t, source.ExprConstRef, acc.Args[0].Kind)
	assert.Equal(t, "orders", acc.Args[0].StringValue)

	require.Len(t, find.Args, 2)
	require.Equal(t, source.ExprDocument, find.Args[1].Kind, "bson.D literals become ordered documents")
	assert.Equal(t, "open", find.Args[1].Doc.GetString("status"))
}

func TestParseFileEnvironmentLookup(t *testing.T) {
	f := parseRepo(t)
	acc := findCall(t, f, "Collection", "auditCollection")
	require.Len(t, acc.Args, 1)
	assert.Equal(t, source.ExprEnvRef, acc.Args[0].Kind)
	assert.Equal(t, "AUDIT_COLLECTION", acc.Args[0].Name)
}

func TestParseFileRejectsInvalidSource(t *testing.T) {
	_, err := New().ParseFile("bad.go", []byte("package repo\nfunc {"))
	assert.Error(t, err)
}
