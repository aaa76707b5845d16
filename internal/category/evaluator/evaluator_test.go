package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storegate/internal/category/models"
)

func sofa() FieldResolver {
	return ProductResolver(Product{ID: 1, Name: "Velvet Sofa", Price: 1200, Stock: 3, Type: "physical"})
}

func TestTextOperators(t *testing.T) {
	assert.True(t, Matches(models.Rule{Field: "name", Operator: models.OperatorEq, Value: "velvet sofa"}, sofa()))
	assert.False(t, Matches(models.Rule{Field: "name", Operator: models.OperatorEq, Value: "sofa"}, sofa()))
	assert.True(t, Matches(models.Rule{Field: "name", Operator: models.OperatorContains, Value: "Sofa"}, sofa()))
	assert.False(t, Matches(models.Rule{Field: "name", Operator: models.OperatorContains, Value: "chair"}, sofa()))
}

func TestNumericOperators(t *testing.T) {
	assert.True(t, Matches(models.Rule{Field: "price", Operator: models.OperatorGt, Value: "1000"}, sofa()))
	assert.False(t, Matches(models.Rule{Field: "price", Operator: models.OperatorLt, Value: "1000"}, sofa()))
	assert.True(t, Matches(models.Rule{Field: "stock", Operator: models.OperatorEq, Value: "3"}, sofa()))
}

func TestMismatchesFailClosed(t *testing.T) {
	// Unknown field, non-numeric comparand, numeric operator on text.
	assert.False(t, Matches(models.Rule{Field: "weight", Operator: models.OperatorEq, Value: "5"}, sofa()))
	assert.False(t, Matches(models.Rule{Field: "price", Operator: models.OperatorGt, Value: "expensive"}, sofa()))
	assert.False(t, Matches(models.Rule{Field: "name", Operator: models.OperatorGt, Value: "a"}, sofa()))
}

func TestEvaluateAll(t *testing.T) {
	rs := models.RuleSet{
		Match: models.MatchAll,
		Conditions: []models.Rule{
			{Field: "type", Operator: models.OperatorEq, Value: "physical"},
			{Field: "price", Operator: models.OperatorGt, Value: "1000"},
		},
	}
	assert.True(t, Evaluate(rs, sofa()))

	rs.Conditions[1].Value = "2000"
	assert.False(t, Evaluate(rs, sofa()))
}

func TestEvaluateAny(t *testing.T) {
	rs := models.RuleSet{
		Match: models.MatchAny,
		Conditions: []models.Rule{
			{Field: "type", Operator: models.OperatorEq, Value: "digital"},
			{Field: "price", Operator: models.OperatorGt, Value: "1000"},
		},
	}
	assert.True(t, Evaluate(rs, sofa()))

	rs.Conditions[1].Value = "2000"
	assert.False(t, Evaluate(rs, sofa()))
}

func TestEvaluateEmptyNeverMatches(t *testing.T) {
	assert.False(t, Evaluate(models.RuleSet{Match: models.MatchAll}, sofa()))
	assert.False(t, Evaluate(models.RuleSet{Match: models.MatchAny}, sofa()))
}

func TestRuleSetValidate(t *testing.T) {
	rs := models.RuleSet{
		Match: models.MatchAll,
		Conditions: []models.Rule{
			{Field: "name", Operator: models.OperatorContains, Value: "sofa"},
		},
	}
	assert.NoError(t, rs.Validate(ProductFields))

	rs.Match = "some"
	assert.Error(t, rs.Validate(ProductFields))

	rs.Match = models.MatchAll
	rs.Conditions[0].Field = "color"
	assert.Error(t, rs.Validate(ProductFields))

	rs.Conditions = nil
	assert.Error(t, rs.Validate(ProductFields))
}
