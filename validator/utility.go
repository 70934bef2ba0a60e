package validator

import (
	"strings"

	"github.com/adamspd/crispies/models"
)

// utilityRules validate a utility-class string. Rule types the mode does not
// know fall back to plain containment of the literal value.
type utilityRules struct {
	textRules
}

func (u *utilityRules) recognizes(rule *models.ValidationRule) bool {
	switch rule.Type {
	case models.RuleContainsClass, models.RuleContainsPattern:
		return true
	}
	if u.textRules.recognizes(rule) {
		return true
	}
	// containment needs a literal to look for
	return !rule.Value.IsStructured() && rule.Value.Literal != ""
}

func (u *utilityRules) check(rule *models.ValidationRule) ruleCheck {
	switch rule.Type {
	case models.RuleContainsClass:
		if hasClass(u.source, rule.Value.Literal) {
			return pass()
		}
	case models.RuleContainsPattern:
		if matchPattern(u.source, rule.Value.Literal, rule.Options) {
			return pass()
		}
	default:
		if u.textRules.recognizes(rule) {
			return u.textRules.check(rule)
		}
		if strings.Contains(u.source, rule.Value.Literal) {
			return pass()
		}
	}
	return fail(failureMessage(rule, ""))
}

func hasClass(classes, class string) bool {
	for _, c := range strings.Fields(classes) {
		if c == class {
			return true
		}
	}
	return false
}
