package validator

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

// bounds backtracking on learner input
const regexTimeout = 250 * time.Millisecond

// textRules are shared by every mode: raw containment and regex tests
type textRules struct {
	validator *Validator
	source    string
}

func (t *textRules) recognizes(rule *models.ValidationRule) bool {
	switch rule.Type {
	case models.RuleContains, models.RuleNotContains, models.RuleRegex, models.RuleCustom:
		return true
	}
	return false
}

func (t *textRules) check(rule *models.ValidationRule) ruleCheck {
	switch rule.Type {
	case models.RuleContains:
		if containsText(t.source, rule.Value.Literal, rule.Options) {
			return pass()
		}
	case models.RuleNotContains:
		if !containsText(t.source, rule.Value.Literal, rule.Options) {
			return pass()
		}
	case models.RuleRegex:
		if matchPattern(t.source, rule.Value.Literal, rule.Options) {
			return pass()
		}
	case models.RuleCustom:
		return t.validator.customCheck(t.source, rule)
	}
	return fail(failureMessage(rule, ""))
}

func containsText(source, value string, opts models.RuleOptions) bool {
	caseSensitive := opts.IsCaseSensitive()
	if opts.WholeWord {
		flags := regexp2.RegexOptions(regexp2.ECMAScript)
		if !caseSensitive {
			flags |= regexp2.IgnoreCase
		}
		re, err := compile(`\b`+regexp2.Escape(value)+`\b`, flags)
		if err != nil {
			utils.LogError("Invalid whole-word pattern for %q: %v", value, err)
			return false
		}
		return matches(re, source)
	}

	if !caseSensitive {
		source = strings.ToLower(source)
		value = strings.ToLower(value)
	}
	return strings.Contains(source, value)
}

// matchPattern compiles pattern with the rule's flags. An invalid pattern in
// lesson content never passes.
func matchPattern(source, pattern string, opts models.RuleOptions) bool {
	flags := regexp2.RegexOptions(regexp2.ECMAScript)
	if !opts.IsCaseSensitive() {
		flags |= regexp2.IgnoreCase
	}
	if opts.IsMultiline() {
		flags |= regexp2.Multiline
	}

	re, err := compile(pattern, flags)
	if err != nil {
		utils.LogError("Invalid regex in validation %q: %v", pattern, err)
		return false
	}
	return matches(re, source)
}

func compile(pattern string, flags regexp2.RegexOptions) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, flags)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = regexTimeout
	return re, nil
}

func matches(re *regexp2.Regexp, source string) bool {
	ok, err := re.MatchString(source)
	if err != nil {
		utils.LogError("Regex %q aborted: %v", re.String(), err)
		return false
	}
	return ok
}
