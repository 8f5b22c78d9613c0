package operations

import (
	"fmt"
	"strings"

	"github.com/doclens-dev/doclens/internal/knowledge"
	"github.com/doclens-dev/doclens/internal/source"
)

// comparisonOperators are the recognized per-field operators.
var comparisonOperators = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true,
	"$lte": true, "$in": true, "$nin": true, "$regex": true,
	"$exists": true, "$elemMatch": true, "$all": true, "$size": true,
}

// placeholderCondition is emitted when a filter expression cannot be
// decomposed; relationship inference only needs the field-path envelope, so
// an unparseable filter must not abort the operation.
func placeholderCondition() knowledge.FilterCondition {
	return knowledge.FilterCondition{FieldPath: "", Operator: "unknown"}
}

// DecomposeFilter flattens a filter expression into (fieldPath, operator,
// value, isNegated) conditions on a best-effort basis.
func DecomposeFilter(expr source.Expr) []knowledge.FilterCondition {
	if expr.Kind != source.ExprDocument || expr.Doc == nil {
		return []knowledge.FilterCondition{placeholderCondition()}
	}
	conds := decomposeDoc(expr.Doc, "", false)
	if len(conds) == 0 {
		return []knowledge.FilterCondition{placeholderCondition()}
	}
	return conds
}

// decomposeDoc walks a filter document. prefix carries the dotted field path
// accumulated so far; negated is inherited from an enclosing $not.
func decomposeDoc(doc *source.Document, prefix string, negated bool) []knowledge.FilterCondition {
	var conds []knowledge.FilterCondition

	for _, key := range doc.Keys() {
		val, _ := doc.Get(key)

		if strings.HasPrefix(key, "$") {
			switch key {
			case "$and", "$or", "$nor":
				neg := negated || key == "$nor"
				for _, item := range val.List {
					if item.Kind == source.ValueDocument {
						conds = append(conds, decomposeDoc(item.Doc, prefix, neg)...)
					}
				}
			case "$not":
				if val.Kind == source.ValueDocument {
					conds = append(conds, decomposeDoc(val.Doc, prefix, !negated)...)
				}
			default:
				if comparisonOperators[key] {
					conds = append(conds, condition(prefix, key, val, negated))
				}
			}
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch val.Kind {
		case source.ValueDocument:
			if hasOperatorKeys(val.Doc) {
				conds = append(conds, decomposeDoc(val.Doc, path, negated)...)
			} else {
				// Nested document equality match.
				conds = append(conds, condition(path, "$eq", val, negated))
			}
		default:
			conds = append(conds, condition(path, "$eq", val, negated))
		}
	}
	return conds
}

// DecomposeUpdate flattens an update document ($set/$inc/$unset/...) into
// conditions whose operator is the update operator.
func DecomposeUpdate(expr source.Expr) []knowledge.FilterCondition {
	if expr.Kind != source.ExprDocument || expr.Doc == nil {
		return []knowledge.FilterCondition{placeholderCondition()}
	}

	var conds []knowledge.FilterCondition
	for _, key := range expr.Doc.Keys() {
		val, _ := expr.Doc.Get(key)
		if !strings.HasPrefix(key, "$") || val.Kind != source.ValueDocument {
			// Replacement-style document: fields at the top level.
			conds = append(conds, condition(key, "$set", val, false))
			continue
		}
		for _, field := range val.Doc.Keys() {
			fv, _ := val.Doc.Get(field)
			conds = append(conds, condition(field, key, fv, false))
		}
	}
	if len(conds) == 0 {
		return []knowledge.FilterCondition{placeholderCondition()}
	}
	return conds
}

// lookupKeys are the recognized arguments of a $lookup stage; everything
// else in a pipeline stays opaque rather than guessed.
var lookupKeys = []string{"from", "localField", "foreignField", "as"}

// DecomposePipeline converts an aggregation pipeline expression into an
// ordered stage list keyed by operator name.
func DecomposePipeline(expr source.Expr) []knowledge.AggregationStage {
	var stages []knowledge.AggregationStage

	appendStage := func(doc *source.Document, index int) {
		op := doc.FirstKey()
		if op == "" {
			return
		}
		stage := knowledge.AggregationStage{Operator: op, Index: index}
		if op == "$lookup" {
			if inner := doc.GetDocument(op); inner != nil {
				stage.Args = make(map[string]string, len(lookupKeys))
				for _, k := range lookupKeys {
					if v := inner.GetString(k); v != "" {
						stage.Args[k] = v
					}
				}
			}
		}
		stages = append(stages, stage)
	}

	switch expr.Kind {
	case source.ExprList:
		for i, item := range expr.List {
			if item.Kind == source.ExprDocument && item.Doc != nil {
				appendStage(item.Doc, i)
			}
		}
	case source.ExprDocument:
		// Single-stage pipeline written as a bare document.
		if expr.Doc != nil {
			appendStage(expr.Doc, 0)
		}
	}
	return stages
}

func hasOperatorKeys(doc *source.Document) bool {
	for _, key := range doc.Keys() {
		if strings.HasPrefix(key, "$") {
			return true
		}
	}
	return false
}

// condition builds one FilterCondition, rendering the value as a comparable
// string envelope.
func condition(path, operator string, val source.Value, negated bool) knowledge.FilterCondition {
	if operator == "$ne" {
		operator = "$eq"
		negated = !negated
	}
	return knowledge.FilterCondition{
		FieldPath: path,
		Operator:  operator,
		Value:     valueString(val),
		IsNegated: negated,
	}
}

func valueString(val source.Value) string {
	switch val.Kind {
	case source.ValueString:
		return val.Str
	case source.ValueNumber:
		if val.Str != "" {
			return val.Str
		}
		return fmt.Sprintf("%g", val.Num)
	case source.ValueBool:
		return fmt.Sprintf("%t", val.Bool)
	case source.ValueIdent:
		return val.Str
	}
	return ""
}
