package golang

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/doclens-dev/doclens/internal/source"
)

// maxChainDepth bounds receiver-chain resolution so pathological or cyclic
// bindings cannot recurse forever.
const maxChainDepth = 16

// funcScope tracks per-function local state needed to resolve receivers and
// decode targets: variable → defining expression, and variable → type name.
type funcScope struct {
	fc       *fileContext
	bindings map[string]ast.Expr
	varTypes map[string]string
	recvType string
	funcName string
}

// collectCalls walks every function body and extracts call sites with
// materialized receiver chains.
func (fc *fileContext) collectCalls(f *ast.File) []source.CallSite {
	var calls []source.CallSite
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		sc := &funcScope{
			fc:       fc,
			bindings: make(map[string]ast.Expr),
			varTypes: make(map[string]string),
			recvType: recvTypeName(fd),
			funcName: fd.Name.Name,
		}
		sc.seedParams(fd)
		sc.collectLocals(fd.Body)

		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			cs := sc.buildCallSite(call, sel, 0)
			if cs != nil {
				calls = append(calls, *cs)
			}
			// Receiver chains are materialized inside buildCallSite; do not
			// descend into the function arguments' nested calls twice.
			return true
		})
	}
	return calls
}

// seedParams records parameter and receiver variable types.
func (sc *funcScope) seedParams(fd *ast.FuncDecl) {
	if fd.Recv != nil {
		for _, f := range fd.Recv.List {
			for _, n := range f.Names {
				sc.varTypes[n.Name] = baseIdent(typeString(f.Type))
			}
		}
	}
	if fd.Type.Params == nil {
		return
	}
	for _, f := range fd.Type.Params.List {
		t := typeString(f.Type)
		for _, n := range f.Names {
			sc.varTypes[n.Name] = t
		}
	}
}

// collectLocals records `x := expr`, `var x T`, and `var x = expr` so
// identifiers can be chased to their defining expression or type.
func (sc *funcScope) collectLocals(body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.AssignStmt:
			for i, lhs := range node.Lhs {
				id, ok := lhs.(*ast.Ident)
				if !ok || id.Name == "_" || i >= len(node.Rhs) {
					continue
				}
				rhs := node.Rhs[i]
				sc.bindings[id.Name] = rhs
				if cl, ok := unwrapComposite(rhs); ok {
					sc.varTypes[id.Name] = typeString(cl.Type)
				}
			}
		case *ast.DeclStmt:
			gd, ok := node.Decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				return true
			}
			for _, spec := range gd.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for i, name := range vs.Names {
					if vs.Type != nil {
						sc.varTypes[name.Name] = typeString(vs.Type)
					}
					if i < len(vs.Values) {
						sc.bindings[name.Name] = vs.Values[i]
					}
				}
			}
		}
		return true
	})
}

// buildCallSite translates a selector call into a CallSite, resolving the
// receiver chain through local and struct-field bindings.
func (sc *funcScope) buildCallSite(call *ast.CallExpr, sel *ast.SelectorExpr, depth int) *source.CallSite {
	if depth > maxChainDepth {
		return nil
	}

	cs := &source.CallSite{
		Method:        sel.Sel.Name,
		Line:          sc.fc.fset.Position(call.Pos()).Line,
		EnclosingFunc: sc.funcName,
		EnclosingType: sc.recvType,
	}
	recv := sc.classify(sel.X, depth+1)
	cs.Receiver = &recv

	for _, arg := range call.Args {
		cs.Args = append(cs.Args, sc.classify(arg, depth+1))
		if t := sc.argTypeName(arg); t != "" {
			cs.DecodeTargets = append(cs.DecodeTargets, t)
		}
	}
	return cs
}

// classify maps an expression to its language-neutral envelope.
func (sc *funcScope) classify(expr ast.Expr, depth int) source.Expr {
	if depth > maxChainDepth {
		return source.Expr{Kind: source.ExprOther}
	}

	switch e := expr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.STRING:
			return source.Expr{Kind: source.ExprStringLit, StringValue: litValue(e)}
		case token.INT:
			n, _ := strconv.ParseInt(e.Value, 10, 64)
			return source.Expr{Kind: source.ExprNumber, Number: n, StringValue: e.Value}
		case token.FLOAT:
			return source.Expr{Kind: source.ExprNumber, StringValue: e.Value}
		}
		return source.Expr{Kind: source.ExprOther}

	case *ast.Ident:
		if val, ok := sc.fc.consts[e.Name]; ok {
			return source.Expr{Kind: source.ExprConstRef, Name: e.Name, StringValue: val}
		}
		if bound, ok := sc.bindings[e.Name]; ok {
			// Chase the binding; unresolvable bindings degrade to Ident.
			if resolved := sc.resolveBinding(bound, depth+1); resolved != nil {
				return *resolved
			}
		}
		return source.Expr{Kind: source.ExprIdent, Name: e.Name}

	case *ast.SelectorExpr:
		return sc.classifySelector(e, depth)

	case *ast.CallExpr:
		return sc.classifyCall(e, depth)

	case *ast.UnaryExpr:
		return sc.classify(e.X, depth+1)

	case *ast.CompositeLit:
		if isListLiteral(e) {
			var list []source.Expr
			for _, elt := range e.Elts {
				list = append(list, sc.classify(elt, depth+1))
			}
			return source.Expr{Kind: source.ExprList, List: list, Name: typeString(e.Type)}
		}
		if isDocumentLiteral(e) {
			return source.Expr{Kind: source.ExprDocument, Doc: sc.buildDocument(e, depth+1)}
		}
		return source.Expr{Kind: source.ExprOther, Name: typeString(e.Type)}
	}

	return source.Expr{Kind: source.ExprOther}
}

// classifySelector handles non-call selector expressions: constant
// references, configuration lookups, and struct-field chains.
func (sc *funcScope) classifySelector(sel *ast.SelectorExpr, depth int) source.Expr {
	text := typeString(sel)

	if root, ok := rootIdent(sel); ok {
		if looksLikeConfig(root.Name) {
			return source.Expr{Kind: source.ExprConfigRef, Name: text}
		}
		// Field access on a variable with a known type: chase field bindings
		// recorded across the file (constructor literals and assignments).
		if recvType, ok := sc.varTypes[root.Name]; ok {
			if bound, ok := sc.fc.fieldBindings[baseIdent(recvType)+"."+sel.Sel.Name]; ok {
				if resolved := sc.resolveBinding(bound, depth+1); resolved != nil {
					return *resolved
				}
			}
		}
		// Upper-case root reads as a package-qualified constant reference.
		if isExportedName(sel.Sel.Name) && !isExportedName(root.Name) {
			return source.Expr{Kind: source.ExprConstRef, Name: text}
		}
	}
	return source.Expr{Kind: source.ExprIdent, Name: text}
}

// classifyCall handles call expressions appearing in receiver or argument
// position: environment and config lookups stay opaque references, anything
// else becomes a nested call site.
func (sc *funcScope) classifyCall(call *ast.CallExpr, depth int) source.Expr {
	if sel, ok := call.Fun.(*ast.SelectorExpr); ok {
		callee := typeString(sel)
		switch {
		case callee == "os.Getenv" || callee == "os.LookupEnv":
			name := ""
			if len(call.Args) > 0 {
				name = sc.classify(call.Args[0], depth+1).StringValue
			}
			return source.Expr{Kind: source.ExprEnvRef, Name: name}
		case strings.HasSuffix(sel.Sel.Name, "GetString") || strings.HasPrefix(callee, "viper."):
			return source.Expr{Kind: source.ExprConfigRef, Name: callee}
		}
		if cs := sc.buildCallSite(call, sel, depth); cs != nil {
			return source.Expr{Kind: source.ExprCall, Call: cs}
		}
	}
	return source.Expr{Kind: source.ExprOther}
}

// resolveBinding classifies the expression a variable was bound to, keeping
// only resolutions that help chain walking (calls, literals, references).
func (sc *funcScope) resolveBinding(bound ast.Expr, depth int) *source.Expr {
	resolved := sc.classify(bound, depth)
	switch resolved.Kind {
	case source.ExprCall, source.ExprStringLit, source.ExprConstRef, source.ExprConfigRef, source.ExprEnvRef:
		return &resolved
	}
	return nil
}

// argTypeName resolves the syntactic type of a decode/insert argument:
// `&user`, `user`, or `&users` where the variable's type is known locally.
func (sc *funcScope) argTypeName(arg ast.Expr) string {
	switch e := arg.(type) {
	case *ast.UnaryExpr:
		return sc.argTypeName(e.X)
	case *ast.Ident:
		if t, ok := sc.varTypes[e.Name]; ok {
			return baseIdent(t)
		}
	case *ast.CompositeLit:
		return baseIdent(typeString(e.Type))
	}
	return ""
}

func rootIdent(expr ast.Expr) (*ast.Ident, bool) {
	for {
		switch e := expr.(type) {
		case *ast.Ident:
			return e, true
		case *ast.SelectorExpr:
			expr = e.X
		default:
			return nil, false
		}
	}
}

func unwrapComposite(expr ast.Expr) (*ast.CompositeLit, bool) {
	switch e := expr.(type) {
	case *ast.CompositeLit:
		return e, true
	case *ast.UnaryExpr:
		return unwrapComposite(e.X)
	}
	return nil, false
}

// looksLikeConfig reports whether a variable name suggests a configuration
// object rather than a plain value.
func looksLikeConfig(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"cfg", "config", "conf", "settings", "opts", "options"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func isExportedName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
