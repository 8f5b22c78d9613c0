package golang

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/doclens-dev/doclens/internal/source"
)

// fileContext carries everything the conversion passes share for one file.
type fileContext struct {
	fset       *token.FileSet
	path       string
	pkgName    string
	importPath string

	consts     map[string]string   // package-level const name → literal value
	constTypes map[string][]string // named type → declared const values
	// fieldBindings maps "TypeName.field" to the expression the field was
	// initialized or assigned from, so `r.coll.Find(...)` inside a method of
	// TypeName can be chased back to `db.Collection("users")`.
	fieldBindings map[string]ast.Expr
}

// convertFile translates one parsed Go file into the language-neutral form.
func convertFile(fset *token.FileSet, f *ast.File, path, importPath string) *source.File {
	fc := &fileContext{
		fset:          fset,
		path:          path,
		pkgName:       f.Name.Name,
		importPath:    importPath,
		consts:        make(map[string]string),
		constTypes:    make(map[string][]string),
		fieldBindings: make(map[string]ast.Expr),
	}

	fc.collectConsts(f)
	fc.collectFieldBindings(f)

	out := &source.File{
		Path:       path,
		Package:    f.Name.Name,
		ImportPath: importPath,
		Consts:     fc.consts,
		EnumTypes:  fc.constTypes,
	}

	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			out.Decls = append(out.Decls, fc.convertStruct(gd, ts, st))
		}
	}

	out.Calls = fc.collectCalls(f)
	return out
}

// collectConsts records package-level constants with literal initializers and
// groups string constants by their declared named type.
func (fc *fileContext) collectConsts(f *ast.File) {
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		var groupType string
		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			if id, ok := vs.Type.(*ast.Ident); ok {
				groupType = id.Name
			}
			for i, name := range vs.Names {
				if i >= len(vs.Values) {
					continue
				}
				lit, ok := vs.Values[i].(*ast.BasicLit)
				if !ok {
					continue
				}
				val := litValue(lit)
				fc.consts[name.Name] = val
				if groupType != "" && lit.Kind == token.STRING {
					fc.constTypes[groupType] = append(fc.constTypes[groupType], val)
				}
			}
		}
	}
}

// collectFieldBindings records struct-field initializations so receiver
// chains through fields can be resolved. Two shapes are tracked: keyed
// composite literals (`&UserRepo{coll: db.Collection("users")}`) and
// assignments inside methods (`r.coll = db.Collection("users")`).
func (fc *fileContext) collectFieldBindings(f *ast.File) {
	ast.Inspect(f, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CompositeLit:
			typeName := baseTypeName(node.Type)
			if typeName == "" {
				return true
			}
			for _, elt := range node.Elts {
				kv, ok := elt.(*ast.KeyValueExpr)
				if !ok {
					continue
				}
				key, ok := kv.Key.(*ast.Ident)
				if !ok {
					continue
				}
				fc.fieldBindings[typeName+"."+key.Name] = kv.Value
			}
		case *ast.FuncDecl:
			if node.Recv == nil || node.Body == nil {
				return true
			}
			recvType := recvTypeName(node)
			if recvType == "" {
				return true
			}
			ast.Inspect(node.Body, func(inner ast.Node) bool {
				assign, ok := inner.(*ast.AssignStmt)
				if !ok {
					return true
				}
				for i, lhs := range assign.Lhs {
					sel, ok := lhs.(*ast.SelectorExpr)
					if !ok || i >= len(assign.Rhs) {
						continue
					}
					if _, ok := sel.X.(*ast.Ident); !ok {
						continue
					}
					fc.fieldBindings[recvType+"."+sel.Sel.Name] = assign.Rhs[i]
				}
				return true
			})
		}
		return true
	})
}

// convertStruct builds a Declaration from a struct type.
func (fc *fileContext) convertStruct(gd *ast.GenDecl, ts *ast.TypeSpec, st *ast.StructType) source.Declaration {
	ns := fc.importPath
	if ns == "" {
		ns = fc.pkgName
	}

	decl := source.Declaration{
		Name:          ts.Name.Name,
		FullName:      ns + "." + ts.Name.Name,
		Namespace:     ns,
		Documentation: docText(gd.Doc, ts.Doc),
		StartLine:     fc.fset.Position(ts.Pos()).Line,
		EndLine:       fc.fset.Position(st.End()).Line,
	}

	for _, field := range st.Fields.List {
		typeName := typeString(field.Type)
		attrs := parseFieldTag(field.Tag)
		doc := docText(field.Doc, nil)
		if doc == "" && field.Comment != nil {
			doc = docText(field.Comment, nil)
		}
		line := fc.fset.Position(field.Pos()).Line

		if len(field.Names) == 0 {
			// Embedded field: both a base type and a member.
			base := baseIdent(typeName)
			decl.BaseTypes = append(decl.BaseTypes, base)
			decl.Members = append(decl.Members, source.Member{
				Name:          base,
				TypeName:      typeName,
				Documentation: doc,
				Nullable:      isNullableType(field.Type),
				IsEmbedded:    true,
				Line:          line,
				Attributes:    attrs,
			})
			continue
		}

		for _, name := range field.Names {
			if !name.IsExported() {
				continue
			}
			decl.Members = append(decl.Members, source.Member{
				Name:          name.Name,
				TypeName:      typeName,
				Documentation: doc,
				Nullable:      isNullableType(field.Type),
				Line:          line,
				Attributes:    attrs,
			})
		}
	}

	return decl
}

// litValue returns the Go value of a basic literal as a string.
func litValue(lit *ast.BasicLit) string {
	if lit.Kind == token.STRING {
		if s, err := strconv.Unquote(lit.Value); err == nil {
			return s
		}
	}
	return lit.Value
}

// parseFieldTag splits a raw struct tag into normalized attributes. The first
// comma-separated element of each tag is its value ("true" when empty, the
// driver's field-name default); the rest become options.
func parseFieldTag(tag *ast.BasicLit) []source.Attribute {
	if tag == nil {
		return nil
	}
	raw, err := strconv.Unquote(tag.Value)
	if err != nil {
		return nil
	}

	var attrs []source.Attribute
	// Standard struct-tag syntax: space-separated `key:"value"` pairs.
	for raw != "" {
		raw = strings.TrimLeft(raw, " ")
		colon := strings.Index(raw, ":")
		if colon <= 0 || colon+1 >= len(raw) || raw[colon+1] != '"' {
			break
		}
		key := raw[:colon]
		rest := raw[colon+1:]
		end := findClosingQuote(rest)
		if end < 0 {
			break
		}
		quoted := rest[:end+1]
		raw = rest[end+1:]

		val, err := strconv.Unquote(quoted)
		if err != nil {
			continue
		}
		parts := strings.Split(val, ",")
		value := parts[0]
		if value == "" {
			value = "true"
		}
		attrs = append(attrs, source.Attribute{
			Name:    key,
			Value:   value,
			Options: parts[1:],
		})
	}
	return attrs
}

func findClosingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] == '"' && s[i-1] != '\\' {
			return i
		}
	}
	return -1
}

// typeString renders a type expression as source text.
func typeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return typeString(t.X) + "." + t.Sel.Name
	case *ast.StarExpr:
		return "*" + typeString(t.X)
	case *ast.ArrayType:
		return "[]" + typeString(t.Elt)
	case *ast.MapType:
		return "map[" + typeString(t.Key) + "]" + typeString(t.Value)
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.ChanType:
		return "chan " + typeString(t.Value)
	case *ast.FuncType:
		return "func"
	case *ast.IndexExpr:
		return typeString(t.X)
	case *ast.Ellipsis:
		return "..." + typeString(t.Elt)
	}
	return ""
}

// isNullableType reports whether the zero value of the type can stand in for
// "absent": pointers, slices, maps, interfaces, and channels.
func isNullableType(expr ast.Expr) bool {
	switch expr.(type) {
	case *ast.StarExpr, *ast.ArrayType, *ast.MapType, *ast.InterfaceType, *ast.ChanType:
		return true
	}
	return false
}

// baseIdent strips pointer/selector decoration down to the final identifier.
func baseIdent(typeName string) string {
	s := strings.TrimLeft(typeName, "*[]")
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		s = s[idx+1:]
	}
	return s
}

// baseTypeName resolves the type name of a composite literal, unwrapping
// pointers and selectors.
func baseTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return baseTypeName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	}
	return ""
}

// recvTypeName returns the receiver type name of a method declaration.
func recvTypeName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	return baseIdent(typeString(fd.Recv.List[0].Type))
}

func docText(groups ...*ast.CommentGroup) string {
	for _, g := range groups {
		if g != nil {
			return strings.TrimSpace(g.Text())
		}
	}
	return ""
}
