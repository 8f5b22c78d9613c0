package golang

import (
	"go/ast"
	"go/token"
	"strconv"

	"github.com/doclens-dev/doclens/internal/source"
)

// Document literal recognition covers the driver's untyped containers:
// bson.M / bson.D / bson.E / bson.A (and the primitive aliases), plus plain
// map[string]any literals used in the same position.

func isDocumentLiteral(cl *ast.CompositeLit) bool {
	switch t := cl.Type.(type) {
	case *ast.SelectorExpr:
		pkg, ok := t.X.(*ast.Ident)
		if !ok {
			return false
		}
		if pkg.Name != "bson" && pkg.Name != "primitive" {
			return false
		}
		switch t.Sel.Name {
		case "M", "D":
			return true
		}
	case *ast.MapType:
		if key, ok := t.Key.(*ast.Ident); ok && key.Name == "string" {
			return true
		}
	}
	return false
}

// isListLiteral recognizes ordered containers appearing in pipeline or array
// position: bson.A, mongo.Pipeline, and slices of document literals.
func isListLiteral(cl *ast.CompositeLit) bool {
	switch t := cl.Type.(type) {
	case *ast.SelectorExpr:
		pkg, ok := t.X.(*ast.Ident)
		if !ok {
			return false
		}
		if pkg.Name == "bson" && t.Sel.Name == "A" {
			return true
		}
		if pkg.Name == "mongo" && t.Sel.Name == "Pipeline" {
			return true
		}
	case *ast.ArrayType:
		return true
	}
	return false
}

// buildDocument converts a document literal into the immutable Document
// form. bson.M and map literals carry KeyValueExpr entries; bson.D carries
// ordered element literals of two positional (or Key/Value keyed) fields.
func (sc *funcScope) buildDocument(cl *ast.CompositeLit, depth int) *source.Document {
	if depth > maxChainDepth {
		return source.NewDocument()
	}

	var pairs []source.DocPair

	if sel, ok := cl.Type.(*ast.SelectorExpr); ok && sel.Sel.Name == "D" {
		for _, elt := range cl.Elts {
			inner, ok := elt.(*ast.CompositeLit)
			if !ok {
				continue
			}
			if pair, ok := sc.buildDElement(inner, depth); ok {
				pairs = append(pairs, pair)
			}
		}
		return source.NewDocument(pairs...)
	}

	for _, elt := range cl.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		key := sc.literalKey(kv.Key)
		if key == "" {
			continue
		}
		pairs = append(pairs, source.DocPair{Key: key, Value: sc.buildValue(kv.Value, depth+1)})
	}
	return source.NewDocument(pairs...)
}

// buildDElement handles one bson.E element, positional or keyed.
func (sc *funcScope) buildDElement(cl *ast.CompositeLit, depth int) (source.DocPair, bool) {
	var keyExpr, valExpr ast.Expr

	if len(cl.Elts) == 2 {
		if _, keyed := cl.Elts[0].(*ast.KeyValueExpr); !keyed {
			keyExpr, valExpr = cl.Elts[0], cl.Elts[1]
		}
	}
	if keyExpr == nil {
		for _, elt := range cl.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				continue
			}
			name, ok := kv.Key.(*ast.Ident)
			if !ok {
				continue
			}
			switch name.Name {
			case "Key":
				keyExpr = kv.Value
			case "Value":
				valExpr = kv.Value
			}
		}
	}
	if keyExpr == nil {
		return source.DocPair{}, false
	}

	key := sc.literalKey(keyExpr)
	if key == "" {
		return source.DocPair{}, false
	}
	val := source.Value{Kind: source.ValueOther}
	if valExpr != nil {
		val = sc.buildValue(valExpr, depth+1)
	}
	return source.DocPair{Key: key, Value: val}, true
}

// literalKey resolves a document key from a string literal or a constant.
func (sc *funcScope) literalKey(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.STRING {
			return litValue(e)
		}
	case *ast.Ident:
		if val, ok := sc.fc.consts[e.Name]; ok {
			return val
		}
	}
	return ""
}

// buildValue converts one document value expression.
func (sc *funcScope) buildValue(expr ast.Expr, depth int) source.Value {
	if depth > maxChainDepth {
		return source.Value{Kind: source.ValueOther}
	}

	switch e := expr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.STRING:
			return source.Value{Kind: source.ValueString, Str: litValue(e)}
		case token.INT, token.FLOAT:
			n, _ := strconv.ParseFloat(e.Value, 64)
			return source.Value{Kind: source.ValueNumber, Num: n, Str: e.Value}
		}
	case *ast.Ident:
		switch e.Name {
		case "true", "false":
			return source.Value{Kind: source.ValueBool, Bool: e.Name == "true"}
		}
		if val, ok := sc.fc.consts[e.Name]; ok {
			return source.Value{Kind: source.ValueString, Str: val}
		}
		return source.Value{Kind: source.ValueIdent, Str: e.Name}
	case *ast.CompositeLit:
		if sel, ok := e.Type.(*ast.SelectorExpr); ok && sel.Sel.Name == "A" {
			var list []source.Value
			for _, elt := range e.Elts {
				list = append(list, sc.buildValue(elt, depth+1))
			}
			return source.Value{Kind: source.ValueList, List: list}
		}
		if isDocumentLiteral(e) {
			return source.Value{Kind: source.ValueDocument, Doc: sc.buildDocument(e, depth+1)}
		}
		if _, ok := e.Type.(*ast.ArrayType); ok {
			var list []source.Value
			for _, elt := range e.Elts {
				list = append(list, sc.buildValue(elt, depth+1))
			}
			return source.Value{Kind: source.ValueList, List: list}
		}
	case *ast.UnaryExpr:
		return sc.buildValue(e.X, depth+1)
	case *ast.SelectorExpr:
		return source.Value{Kind: source.ValueIdent, Str: typeString(e)}
	case *ast.CallExpr:
		return source.Value{Kind: source.ValueOther}
	}
	return source.Value{Kind: source.ValueOther}
}
