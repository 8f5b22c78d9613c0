// Package source defines the language-neutral view of parsed code that the
// analyzers operate on. Front ends (internal/source/golang) translate a
// concrete syntax tree into Files, Declarations, and CallSites; everything
// downstream, from type analysis through operation extraction, depends only
// on this package and never on a compiler API.
package source

import "context"

// File is one parsed source file.
type File struct {
	Path       string
	Package    string // package (namespace) short name
	ImportPath string // fully-qualified namespace when known, else ""
	Decls      []Declaration
	Calls      []CallSite
	Consts     map[string]string   // package-level constants with literal initializers
	EnumTypes  map[string][]string // named type → declared constant values
}

// Declaration is one type declaration with capability queries over its
// members and attributes.
type Declaration struct {
	Name          string
	FullName      string // FQCN
	Namespace     string
	Documentation string
	BaseTypes     []string // embedded/base types, by declared name
	Members       []Member
	StartLine     int
	EndLine       int
}

// HasAttribute reports whether any member of the declaration carries the
// named serialization attribute.
func (d *Declaration) HasAttribute(name string) bool {
	for _, m := range d.Members {
		for _, a := range m.Attributes {
			if a.Name == name {
				return true
			}
		}
	}
	return false
}

// Member is one field or property of a declaration.
type Member struct {
	Name          string
	TypeName      string
	Documentation string
	Nullable      bool
	IsEmbedded    bool
	Line          int
	Attributes    []Attribute
}

// Attribute is a serialization attribute normalized to its short name.
// Value is the first argument, or "true" when present without one; Options
// holds any remaining arguments (e.g. "omitempty").
type Attribute struct {
	Name    string
	Value   string
	Options []string
}

// HasOption reports whether the attribute carries the given option.
func (a Attribute) HasOption(opt string) bool {
	for _, o := range a.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// ExprKind classifies an argument or receiver expression just far enough for
// collection resolution and filter decomposition.
type ExprKind string

const (
	ExprStringLit ExprKind = "string_lit" // "users"
	ExprConstRef  ExprKind = "const_ref"  // usersCollection
	ExprConfigRef ExprKind = "config_ref" // cfg.Collections.Users, viper.GetString(...)
	ExprEnvRef    ExprKind = "env_ref"    // os.Getenv("USERS_COLLECTION")
	ExprDocument  ExprKind = "document"   // bson.M / bson.D literal
	ExprList      ExprKind = "list"       // bson.A / pipeline / slice literal
	ExprNumber    ExprKind = "number"
	ExprIdent     ExprKind = "ident"
	ExprCall      ExprKind = "call"
	ExprOther     ExprKind = "other"
)

// Expr is a classified expression envelope. Only the fields relevant to the
// detected Kind are populated.
type Expr struct {
	Kind        ExprKind
	StringValue string    // literal text, or resolved constant value
	Name        string    // identifier / selector text
	Number      int64     // numeric literal
	Doc         *Document // document literal contents
	List        []Expr    // list literal elements
	Call        *CallSite // nested call when Kind == ExprCall
}

// CallSite is one method invocation. Receiver chains are materialized: when
// the receiver is itself a call (directly or through a resolved local
// binding), Receiver.Call points at it, so consumers can walk an expression
// chain back to its originating accessor without language knowledge.
type CallSite struct {
	Method        string // final selector, e.g. "Find", "Collection"
	Receiver      *Expr
	Args          []Expr
	Line          int
	EnclosingFunc string
	EnclosingType string   // receiver type of the enclosing method, or ""
	DecodeTargets []string // type names flowing into Decode/All/cursor targets
}

// RootAccessor walks the receiver chain and returns the first call whose
// method matches one of the given accessor names, or nil when the chain
// cannot be resolved to one.
func (c *CallSite) RootAccessor(names ...string) *CallSite {
	for cur := c; cur != nil; {
		for _, n := range names {
			if cur.Method == n {
				return cur
			}
		}
		if cur.Receiver == nil || cur.Receiver.Call == nil {
			return nil
		}
		cur = cur.Receiver.Call
	}
	return nil
}

// FrontEnd is implemented once per target source language.
type FrontEnd interface {
	// ParseFile parses a single file from src (or from disk when src is nil).
	ParseFile(path string, src []byte) (*File, error)

	// LoadRepository parses every file of the repository rooted at dir.
	LoadRepository(ctx context.Context, dir string) ([]*File, error)
}
