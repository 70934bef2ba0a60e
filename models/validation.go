package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RuleType tags the kind of check a validation rule performs
type RuleType string

const (
	RuleContains        RuleType = "contains"
	RuleNotContains     RuleType = "not_contains"
	RuleRegex           RuleType = "regex"
	RulePropertyValue   RuleType = "property_value"
	RuleSyntax          RuleType = "syntax"
	RuleCustom          RuleType = "custom"
	RuleElementExists   RuleType = "element_exists"
	RuleElementCount    RuleType = "element_count"
	RuleAttributeValue  RuleType = "attribute_value"
	RuleElementText     RuleType = "element_text"
	RuleParentChild     RuleType = "parent_child"
	RuleSibling         RuleType = "sibling"
	RuleContainsClass   RuleType = "contains_class"
	RuleContainsPattern RuleType = "contains_pattern"
)

// CustomResult is what a custom predicate reports back
type CustomResult struct {
	IsValid bool
	Message string
}

// CustomFunc is a caller-supplied predicate over the submitted source
type CustomFunc func(source string) CustomResult

// ValidationRule is one declarative check against submitted source
type ValidationRule struct {
	Type    RuleType    `json:"type" yaml:"type"`
	Value   RuleValue   `json:"value,omitempty" yaml:"value,omitempty"`
	Message string      `json:"message,omitempty" yaml:"message,omitempty"`
	Options RuleOptions `json:"options,omitempty" yaml:"options,omitempty"`

	// Validator is only settable from Go; content files name custom
	// validators through Value.Literal instead.
	Validator CustomFunc `json:"-" yaml:"-"`
}

// RuleOptions tunes text matching
type RuleOptions struct {
	CaseSensitive *bool `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`
	WholeWord     bool  `json:"wholeWord,omitempty" yaml:"wholeWord,omitempty"`
	Multiline     *bool `json:"multiline,omitempty" yaml:"multiline,omitempty"`
	Exact         bool  `json:"exact,omitempty" yaml:"exact,omitempty"`
}

// IsCaseSensitive defaults to true
func (o RuleOptions) IsCaseSensitive() bool {
	return o.CaseSensitive == nil || *o.CaseSensitive
}

// IsMultiline defaults to true
func (o RuleOptions) IsMultiline() bool {
	return o.Multiline == nil || *o.Multiline
}

// RuleValue is the payload of a rule. Text rules carry a plain string in
// Literal, structural rules carry the selector fields.
type RuleValue struct {
	Literal string

	// property_value
	Property string
	Expected string

	// element_count, attribute_value, element_text
	Selector string
	Count    *int
	Min      *int
	Attr     string
	// AttrValue nil means presence of Attr is enough
	AttrValue *string
	Text      string

	// parent_child
	Parent string
	Child  string

	// sibling
	First string
	Then  string
}

type ruleValueFields struct {
	Property string `json:"property,omitempty" yaml:"property,omitempty"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Count    *int   `json:"count,omitempty" yaml:"count,omitempty"`
	Min      *int   `json:"min,omitempty" yaml:"min,omitempty"`
	Attr     string `json:"attr,omitempty" yaml:"attr,omitempty"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`
	Parent   string `json:"parent,omitempty" yaml:"parent,omitempty"`
	Child    string `json:"child,omitempty" yaml:"child,omitempty"`
	First    string `json:"first,omitempty" yaml:"first,omitempty"`
	Then     string `json:"then,omitempty" yaml:"then,omitempty"`
}

func (v *RuleValue) setFields(f ruleValueFields) {
	v.Property = f.Property
	v.Expected = f.Expected
	v.Selector = f.Selector
	v.Count = f.Count
	v.Min = f.Min
	v.Attr = f.Attr
	v.Text = f.Text
	v.Parent = f.Parent
	v.Child = f.Child
	v.First = f.First
	v.Then = f.Then
}

func (v RuleValue) fields() ruleValueFields {
	return ruleValueFields{
		Property: v.Property,
		Expected: v.Expected,
		Selector: v.Selector,
		Count:    v.Count,
		Min:      v.Min,
		Attr:     v.Attr,
		Text:     v.Text,
		Parent:   v.Parent,
		Child:    v.Child,
		First:    v.First,
		Then:     v.Then,
	}
}

// IsStructured reports whether the value was given as an object
func (v RuleValue) IsStructured() bool {
	return v.fields() != (ruleValueFields{}) || v.AttrValue != nil
}

// String is the literal payload, used by messages and fallbacks
func (v RuleValue) String() string {
	return v.Literal
}

func (v *RuleValue) UnmarshalJSON(data []byte) error {
	*v = RuleValue{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &v.Literal)
	case '{':
	default:
		// numbers and booleans are compared as text
		v.Literal = string(trimmed)
		return nil
	}

	var aux struct {
		ruleValueFields
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(trimmed, &aux); err != nil {
		return fmt.Errorf("decode rule value: %w", err)
	}
	v.setFields(aux.ruleValueFields)

	raw := bytes.TrimSpace(aux.Value)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte("true")):
		v.AttrValue = nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode attribute value: %w", err)
		}
		v.AttrValue = &s
	default:
		s := string(raw)
		v.AttrValue = &s
	}
	return nil
}

func (v RuleValue) MarshalJSON() ([]byte, error) {
	if !v.IsStructured() {
		if v.Literal == "" {
			return []byte("null"), nil
		}
		return json.Marshal(v.Literal)
	}

	out := struct {
		ruleValueFields
		Value *string `json:"value,omitempty"`
	}{ruleValueFields: v.fields(), Value: v.AttrValue}
	return json.Marshal(out)
}

func (v *RuleValue) UnmarshalYAML(node *yaml.Node) error {
	*v = RuleValue{}
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		v.Literal = node.Value
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: rule value must be a string or a mapping", node.Line)
	}

	var aux struct {
		ruleValueFields `yaml:",inline"`
		Value           yaml.Node `yaml:"value"`
	}
	if err := node.Decode(&aux); err != nil {
		return fmt.Errorf("decode rule value: %w", err)
	}
	v.setFields(aux.ruleValueFields)

	switch {
	case aux.Value.Kind == 0, aux.Value.Tag == "!!null":
		v.AttrValue = nil
	case aux.Value.Tag == "!!bool" && aux.Value.Value == "true":
		v.AttrValue = nil
	default:
		s := aux.Value.Value
		v.AttrValue = &s
	}
	return nil
}

// ValidationResult is the outcome of scoring a submission
type ValidationResult struct {
	IsValid    bool   `json:"isValid"`
	ValidCases int    `json:"validCases"`
	TotalCases int    `json:"totalCases"`
	Message    string `json:"message"`
}
