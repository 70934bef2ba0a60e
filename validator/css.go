package validator

import (
	"errors"
	"io"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

type cssRules struct {
	textRules
	// wrapped is the source inside the lesson's code prefix and suffix
	wrapped string
}

func (c *cssRules) recognizes(rule *models.ValidationRule) bool {
	switch rule.Type {
	case models.RulePropertyValue, models.RuleSyntax:
		return true
	}
	return c.textRules.recognizes(rule)
}

func (c *cssRules) check(rule *models.ValidationRule) ruleCheck {
	switch rule.Type {
	case models.RulePropertyValue:
		if propertyValueMatches(c.source, rule.Value.Property, rule.Value.Expected, rule.Options.Exact) {
			return pass()
		}
		return fail(failureMessage(rule, ""))
	case models.RuleSyntax:
		if err := checkSyntax(c.wrapped); err != nil {
			return fail(failureMessage(rule, err.Error()))
		}
		return pass()
	}
	return c.textRules.check(rule)
}

// propertyValueMatches looks at the first "property: value" occurrence only.
// Later declarations of the same property are not considered.
func propertyValueMatches(source, property, expected string, exact bool) bool {
	re, err := compile(regexp2.Escape(property)+`\s*:\s*([^;\}]+)`, regexp2.ECMAScript|regexp2.IgnoreCase)
	if err != nil {
		utils.LogError("Invalid property pattern for %q: %v", property, err)
		return false
	}

	m, err := re.FindStringMatch(source)
	if err != nil {
		utils.LogError("Property scan for %q aborted: %v", property, err)
		return false
	}
	if m == nil {
		return false
	}

	actual := strings.TrimSpace(m.GroupByNumber(1).String())
	if exact {
		return actual == expected
	}
	return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
}

// checkSyntax runs the stylesheet through a CSS parser after checking that
// braces balance
func checkSyntax(source string) error {
	if err := checkBraces(source); err != nil {
		return err
	}

	p := css.NewParser(parse.NewInputString(source), false)
	for {
		gt, _, _ := p.Next()
		if gt != css.ErrorGrammar {
			continue
		}
		err := p.Err()
		if err == io.EOF {
			return nil
		}
		if err == nil {
			return errors.New("unexpected token")
		}
		// parse errors carry a source excerpt on following lines
		return errors.New(strings.SplitN(err.Error(), "\n", 2)[0])
	}
}

func checkBraces(source string) error {
	depth := 0
	var quote byte
	for i := 0; i < len(source); i++ {
		ch := source[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '/' && i+1 < len(source) && source[i+1] == '*':
			end := strings.Index(source[i+2:], "*/")
			if end < 0 {
				return errors.New("unterminated comment")
			}
			i += end + 3
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth < 0 {
				return errors.New("unexpected \"}\"")
			}
		}
	}
	if depth > 0 {
		return errors.New("missing closing \"}\"")
	}
	return nil
}
