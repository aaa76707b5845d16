// Package models defines the rule set for smart categories: a flat list of
// field predicates combined with all/any, evaluated against products.
package models

import (
	"fmt"
	"slices"

	dErrors "storegate/pkg/domain-errors"
)

// Match selects the combinator over a rule set's conditions.
type Match string

const (
	MatchAll Match = "all"
	MatchAny Match = "any"
)

// Operator compares an extracted field value against the rule value.
type Operator string

const (
	OperatorEq       Operator = "eq"
	OperatorContains Operator = "contains"
	OperatorGt       Operator = "gt"
	OperatorLt       Operator = "lt"
)

var operators = []Operator{OperatorEq, OperatorContains, OperatorGt, OperatorLt}

// Rule is one predicate over a named entity field.
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

func (r Rule) Validate(fields []string) error {
	if !slices.Contains(fields, r.Field) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown field %q", r.Field))
	}
	if !slices.Contains(operators, r.Operator) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown operator %q", r.Operator))
	}
	if r.Value == "" {
		return dErrors.New(dErrors.CodeValidation, "value must not be empty")
	}
	return nil
}

// RuleSet is the full smart-category definition.
type RuleSet struct {
	Match      Match  `json:"match"`
	Conditions []Rule `json:"conditions"`
}

// Validate checks the rule set against the fields the evaluator can extract.
func (rs RuleSet) Validate(fields []string) error {
	e := dErrors.New(dErrors.CodeValidation, "invalid rule set")
	if rs.Match != MatchAll && rs.Match != MatchAny {
		e = dErrors.Add(e, "match", "match must be all or any")
	}
	if len(rs.Conditions) == 0 {
		e = dErrors.Add(e, "conditions", "at least one condition is required")
	}
	for i, r := range rs.Conditions {
		if err := r.Validate(fields); err != nil {
			e = dErrors.Add(e, fmt.Sprintf("conditions[%d]", i), err.Error())
		}
	}
	if len(e.Fields) > 0 {
		return e
	}
	return nil
}
