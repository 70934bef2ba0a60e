package validator

import (
	"fmt"

	"github.com/adamspd/crispies/models"
)

const (
	SuccessMessage       = "Your CODE looks CRISPY!"
	NoValidationsMessage = "No validations specified for this lesson."
	NoActiveLesson       = "No active lesson to validate against."
)

// defaultMessage builds the generated failure message for a rule. detail is
// only used by rules whose message embeds an underlying error.
func defaultMessage(rule *models.ValidationRule, detail string) string {
	v := rule.Value
	switch rule.Type {
	case models.RuleContains:
		return fmt.Sprintf(`Your code should include "%s".`, v.Literal)
	case models.RuleNotContains:
		return fmt.Sprintf(`Your code should not include "%s".`, v.Literal)
	case models.RuleRegex:
		return "Your code does not match the expected pattern."
	case models.RulePropertyValue:
		return fmt.Sprintf(`The "%s" property should be set to "%s".`, v.Property, v.Expected)
	case models.RuleSyntax:
		return "CSS syntax error: " + detail
	case models.RuleCustom:
		return "Your code does not meet the requirements."
	case models.RuleElementExists:
		return fmt.Sprintf("Add a <%s> element.", selectorOf(v))
	case models.RuleElementCount:
		switch {
		case v.Count != nil:
			return fmt.Sprintf("Expected %d <%s> element(s).", *v.Count, v.Selector)
		case v.Min != nil:
			return fmt.Sprintf("Expected at least %d <%s> element(s).", *v.Min, v.Selector)
		}
		return fmt.Sprintf("Add at least one <%s> element.", v.Selector)
	case models.RuleAttributeValue:
		if v.AttrValue == nil {
			return fmt.Sprintf(`The <%s> element needs the "%s" attribute.`, v.Selector, v.Attr)
		}
		return fmt.Sprintf(`The <%s> element should have %s="%s".`, v.Selector, v.Attr, *v.AttrValue)
	case models.RuleElementText:
		return fmt.Sprintf(`The <%s> element should contain "%s".`, v.Selector, v.Text)
	case models.RuleParentChild:
		return fmt.Sprintf("Place a <%s> inside <%s>.", v.Child, v.Parent)
	case models.RuleSibling:
		return fmt.Sprintf("Add a <%s> after <%s>.", v.Then, v.First)
	case models.RuleContainsClass:
		return fmt.Sprintf(`Add the class "%s".`, v.Literal)
	case models.RuleContainsPattern:
		return "Your classes do not match the expected pattern."
	}
	// utility-class containment fallback
	return fmt.Sprintf(`Your code should include "%s".`, v.Literal)
}

// failureMessage applies the rule-level override before the generated default
func failureMessage(rule *models.ValidationRule, detail string) string {
	if rule.Message != "" {
		return rule.Message
	}
	return defaultMessage(rule, detail)
}

func selectorOf(v models.RuleValue) string {
	if v.Selector != "" {
		return v.Selector
	}
	return v.Literal
}
