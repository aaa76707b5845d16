// Package evaluator runs category rule sets against entities. Field
// extraction is pluggable so the same evaluation works for any entity that
// can name its fields.
package evaluator

import (
	"strconv"
	"strings"

	"storegate/internal/category/models"
	"storegate/internal/refdata"
)

// FieldValue is an extracted field, either textual or numeric.
type FieldValue struct {
	Text     string
	Number   float64
	IsNumber bool
}

func Text(s string) FieldValue    { return FieldValue{Text: s} }
func Number(n float64) FieldValue { return FieldValue{Number: n, IsNumber: true} }

// FieldResolver extracts a named field from the entity under evaluation. The
// second return is false when the entity has no such field.
type FieldResolver func(field string) (FieldValue, bool)

// Matches applies one rule. Unknown fields and type mismatches fail closed.
func Matches(r models.Rule, resolve FieldResolver) bool {
	fv, ok := resolve(r.Field)
	if !ok {
		return false
	}
	if fv.IsNumber {
		want, err := strconv.ParseFloat(r.Value, 64)
		if err != nil {
			return false
		}
		switch r.Operator {
		case models.OperatorEq:
			return fv.Number == want
		case models.OperatorGt:
			return fv.Number > want
		case models.OperatorLt:
			return fv.Number < want
		}
		return false
	}
	switch r.Operator {
	case models.OperatorEq:
		return strings.EqualFold(fv.Text, r.Value)
	case models.OperatorContains:
		return strings.Contains(strings.ToLower(fv.Text), strings.ToLower(r.Value))
	}
	return false
}

// Evaluate folds the rule set over the entity: all requires every rule to
// match, any requires at least one. An empty rule set never matches.
func Evaluate(rs models.RuleSet, resolve FieldResolver) bool {
	if len(rs.Conditions) == 0 {
		return false
	}
	for _, r := range rs.Conditions {
		matched := Matches(r, resolve)
		if rs.Match == models.MatchAny && matched {
			return true
		}
		if rs.Match != models.MatchAny && !matched {
			return false
		}
	}
	return rs.Match != models.MatchAny
}

// ProductFields lists the fields the product resolver understands.
var ProductFields = []string{"name", "price", "stock", "type"}

// Product is the catalog entity smart categories select over.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
	Type  string  `json:"type"`
}

// ProductResolver adapts a product to the evaluator.
func ProductResolver(p Product) FieldResolver {
	return func(field string) (FieldValue, bool) {
		switch field {
		case "name":
			return Text(p.Name), true
		case "price":
			return Number(p.Price), true
		case "stock":
			return Number(float64(p.Stock)), true
		case "type":
			return Text(p.Type), true
		default:
			return FieldValue{}, false
		}
	}
}

// FromRefData converts a catalog product from the platform client. Price and
// stock are not exposed by the listing endpoint, so only name and type rules
// apply to those.
func FromRefData(p refdata.Product) Product {
	return Product{ID: p.ID, Name: p.Name, Type: p.Type}
}
