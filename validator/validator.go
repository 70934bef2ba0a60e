// Package validator scores submitted source against a lesson's declarative
// rules. Rules run in declared order and the first failure stops evaluation.
package validator

import (
	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

// Validator holds the named custom predicates lesson content may refer to.
// The zero value is ready to use.
type Validator struct {
	custom map[string]models.CustomFunc
}

type Option func(*Validator)

// WithCustom registers a predicate for `custom` rules whose value is name
func WithCustom(name string, fn models.CustomFunc) Option {
	return func(v *Validator) {
		if v.custom == nil {
			v.custom = make(map[string]models.CustomFunc)
		}
		v.custom[name] = fn
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultValidator = New()

// Validate scores source with a Validator that has no named predicates
func Validate(source string, lesson *models.Lesson) models.ValidationResult {
	return defaultValidator.Validate(source, lesson)
}

// ruleCheck is the outcome of a single rule: pass, or the failure message
type ruleCheck struct {
	passed  bool
	message string
}

func pass() ruleCheck { return ruleCheck{passed: true} }

func fail(message string) ruleCheck { return ruleCheck{message: message} }

// interpreter is one mode's rule set
type interpreter interface {
	recognizes(rule *models.ValidationRule) bool
	check(rule *models.ValidationRule) ruleCheck
}

// Validate scores source against the lesson's rules
func (v *Validator) Validate(source string, lesson *models.Lesson) models.ValidationResult {
	if lesson == nil || lesson.Validations == nil {
		return models.ValidationResult{IsValid: true, Message: NoValidationsMessage}
	}

	interp := v.interpreterFor(lesson, source)
	rules := lesson.Validations

	total := 0
	for i := range rules {
		if interp.recognizes(&rules[i]) {
			total++
			continue
		}
		utils.LogWarn("Unknown validation type %q for %s mode, skipping rule %d", rules[i].Type, lesson.EffectiveMode(nil), i)
	}

	valid := 0
	for i := range rules {
		rule := &rules[i]
		if !interp.recognizes(rule) {
			continue
		}
		result := interp.check(rule)
		if !result.passed {
			utils.LogValidate("Rule %d (%s) failed after %d/%d", i, rule.Type, valid, total)
			return models.ValidationResult{
				IsValid:    false,
				ValidCases: valid,
				TotalCases: total,
				Message:    result.message,
			}
		}
		valid++
	}

	return models.ValidationResult{
		IsValid:    true,
		ValidCases: total,
		TotalCases: total,
		Message:    SuccessMessage,
	}
}

func (v *Validator) interpreterFor(lesson *models.Lesson, source string) interpreter {
	base := textRules{validator: v, source: source}
	switch mode := lesson.EffectiveMode(nil); mode {
	case models.ModeCSS:
		return &cssRules{textRules: base, wrapped: lesson.WrapStyle(source)}
	case models.ModeHTML:
		return &htmlRules{textRules: base}
	case models.ModeTailwind:
		return &utilityRules{textRules: base}
	default:
		utils.LogWarn("Unknown lesson mode %q, validating as %s", mode, models.DefaultMode)
		return &cssRules{textRules: base, wrapped: lesson.WrapStyle(source)}
	}
}

// customCheck runs an inline or registered predicate. No predicate passes.
func (v *Validator) customCheck(source string, rule *models.ValidationRule) ruleCheck {
	fn := rule.Validator
	if fn == nil && rule.Value.Literal != "" && v.custom != nil {
		fn = v.custom[rule.Value.Literal]
	}
	if fn == nil {
		return pass()
	}

	res := fn(source)
	if res.IsValid {
		return pass()
	}
	if res.Message != "" {
		return fail(res.Message)
	}
	return fail(failureMessage(rule, ""))
}
