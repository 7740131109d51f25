package approval

import (
	"approvalflow/bizerror"
	"fmt"
)

const (
	OpLt     = "lt"
	OpLte    = "lte"
	OpGt     = "gt"
	OpGte    = "gte"
	OpEq     = "eq"
	OpNe     = "ne"
	OpIn     = "in"
	OpExists = "exists"
)

type Condition struct {
	Field  string        `json:"field" yaml:"field" validate:"required"`
	Op     string        `json:"op" yaml:"op" validate:"required,oneof=lt lte gt gte eq ne in exists"`
	Value  interface{}   `json:"value,omitempty" yaml:"value"`
	Values []interface{} `json:"values,omitempty" yaml:"values"`
}

// Matches never fails: a missing field or an operand of the wrong kind simply does not match.
func (c *Condition) Matches(snapshot Snapshot) bool {
	actual, present := snapshot[c.Field]
	switch c.Op {
	case OpExists:
		return present && actual != nil
	case OpIn:
		if !present {
			return false
		}
		for _, candidate := range c.Values {
			if equals(actual, candidate) {
				return true
			}
		}
		return false
	case OpEq:
		return present && equals(actual, c.Value)
	case OpNe:
		return !present || !equals(actual, c.Value)
	}

	if !present {
		return false
	}
	a, ok := toNumber(actual)
	if !ok {
		return false
	}
	b, ok := toNumber(c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	}
	return false
}

func equals(a, b interface{}) bool {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return x == y
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Rule routes to its chain when all conditions match.
type Rule struct {
	Name       string      `json:"name" yaml:"name" validate:"required"`
	Conditions []Condition `json:"conditions" yaml:"conditions" validate:"required,dive"`
	Chain      []Node      `json:"chain" yaml:"chain" validate:"required,dive"`
}

func (r *Rule) Matches(snapshot Snapshot) bool {
	for i := range r.Conditions {
		if !r.Conditions[i].Matches(snapshot) {
			return false
		}
	}
	return true
}

type Template struct {
	Code         string `json:"code" yaml:"code" validate:"required"`
	EntityType   string `json:"entityType" yaml:"entityType" validate:"required"`
	Name         string `json:"name" yaml:"name"`
	Rules        []Rule `json:"rules" yaml:"rules" validate:"dive"`
	DefaultChain []Node `json:"defaultChain" yaml:"defaultChain" validate:"required,dive"`
}

const DefaultRuleName = "default"

// Route evaluates the rules in declaration order, the first match wins and the default chain catches the rest.
func (t *Template) Route(snapshot Snapshot) (string, []Node, error) {
	for i := range t.Rules {
		rule := &t.Rules[i]
		if rule.Matches(snapshot) {
			if len(rule.Chain) == 0 {
				return "", nil, bizerror.NewConfigurationError("template %s: rule %s has an empty chain", t.Code, rule.Name)
			}
			return rule.Name, rule.Chain, nil
		}
	}
	if len(t.DefaultChain) == 0 {
		return "", nil, bizerror.NewConfigurationError("template %s: no rule matched and no default chain is defined", t.Code)
	}
	return DefaultRuleName, t.DefaultChain, nil
}
