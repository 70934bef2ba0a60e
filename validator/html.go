package validator

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

// htmlRules parses the submission once, on the first structural rule
type htmlRules struct {
	textRules
	doc    *html.Node
	parsed bool
}

func (h *htmlRules) recognizes(rule *models.ValidationRule) bool {
	switch rule.Type {
	case models.RuleElementExists, models.RuleElementCount, models.RuleAttributeValue,
		models.RuleElementText, models.RuleParentChild, models.RuleSibling:
		return true
	}
	return h.textRules.recognizes(rule)
}

func (h *htmlRules) check(rule *models.ValidationRule) ruleCheck {
	var ok bool
	v := rule.Value
	switch rule.Type {
	case models.RuleElementExists:
		ok = h.first(selectorOf(v)) != nil
	case models.RuleElementCount:
		ok = h.countMatches(v)
	case models.RuleAttributeValue:
		ok = h.attributeMatches(v)
	case models.RuleElementText:
		ok = h.textMatches(v, rule.Options)
	case models.RuleParentChild:
		ok = h.hasChild(v.Parent, v.Child)
	case models.RuleSibling:
		ok = h.hasFollowing(v.First, v.Then)
	default:
		return h.textRules.check(rule)
	}

	if ok {
		return pass()
	}
	return fail(failureMessage(rule, ""))
}

func (h *htmlRules) document() *html.Node {
	if !h.parsed {
		h.parsed = true
		doc, err := html.Parse(strings.NewReader(h.source))
		if err != nil {
			utils.LogError("Failed to parse submitted markup: %v", err)
		}
		h.doc = doc
	}
	return h.doc
}

func compileSelector(selector string) cascadia.Selector {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		utils.LogError("Invalid selector %q in validation: %v", selector, err)
		return nil
	}
	return sel
}

func (h *htmlRules) all(selector string) []*html.Node {
	doc := h.document()
	sel := compileSelector(selector)
	if doc == nil || sel == nil {
		return nil
	}
	return sel.MatchAll(doc)
}

func (h *htmlRules) first(selector string) *html.Node {
	doc := h.document()
	sel := compileSelector(selector)
	if doc == nil || sel == nil {
		return nil
	}
	return sel.MatchFirst(doc)
}

func (h *htmlRules) countMatches(v models.RuleValue) bool {
	n := len(h.all(v.Selector))
	switch {
	case v.Count != nil:
		return n == *v.Count
	case v.Min != nil:
		return n >= *v.Min
	}
	return n > 0
}

func (h *htmlRules) attributeMatches(v models.RuleValue) bool {
	el := h.first(v.Selector)
	if el == nil {
		return false
	}
	for _, a := range el.Attr {
		if !strings.EqualFold(a.Key, v.Attr) {
			continue
		}
		if v.AttrValue == nil {
			return true
		}
		return a.Val == *v.AttrValue
	}
	return false
}

func (h *htmlRules) textMatches(v models.RuleValue, opts models.RuleOptions) bool {
	el := h.first(v.Selector)
	if el == nil {
		return false
	}
	actual := strings.TrimSpace(textContent(el))
	expected := v.Text
	if !opts.IsCaseSensitive() {
		actual = strings.ToLower(actual)
		expected = strings.ToLower(expected)
	}
	if opts.Exact {
		return actual == expected
	}
	return strings.Contains(actual, expected)
}

func (h *htmlRules) hasChild(parent, child string) bool {
	p := h.first(parent)
	sel := compileSelector(child)
	if p == nil || sel == nil {
		return false
	}
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if sel.MatchFirst(c) != nil {
			return true
		}
	}
	return false
}

// hasFollowing matches any later element in document order, not only the
// adjacent sibling
func (h *htmlRules) hasFollowing(first, then string) bool {
	anchor := h.first(first)
	if anchor == nil {
		return false
	}
	candidates := h.all(then)
	if len(candidates) == 0 {
		return false
	}

	order := documentOrder(h.document())
	for _, c := range candidates {
		if order[c] > order[anchor] && !isInside(c, anchor) {
			return true
		}
	}
	return false
}

func documentOrder(root *html.Node) map[*html.Node]int {
	order := make(map[*html.Node]int)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		order[n] = len(order)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return order
}

func isInside(n, ancestor *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
