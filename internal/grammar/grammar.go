package grammar

import (
	"encoding/xml"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
)

// Rule is one named grammar rule with its textual pattern content
type Rule struct {
	ID      string `xml:"id,attr"`
	Pattern string `xml:",chardata"`
}

// document mirrors the grammar markup: a <grammar> root with <rule> children
type document struct {
	XMLName xml.Name `xml:"grammar"`
	Rules   []Rule   `xml:"rule"`
}

// compiledRule pairs a rule id with its compiled pattern
type compiledRule struct {
	id string
	re *regexp.Regexp
}

// RuleSet is a parsed, read-only grammar associated with a session. Rules
// keep document order; matching is first-match-wins.
type RuleSet struct {
	rules []compiledRule
}

// Parse validates and parses a grammar document into a rule set. Rules whose
// pattern fails to compile are logged and skipped rather than aborting the
// grammar; a malformed document or wrong root element is an error.
func Parse(src []byte, logger zerolog.Logger) (*RuleSet, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("empty grammar document")
	}

	var doc document
	if err := xml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse grammar: %w", err)
	}

	rs := &RuleSet{}
	for _, rule := range doc.Rules {
		if rule.Pattern == "" {
			logger.Warn().Str("rule_id", rule.ID).Msg("Grammar rule has no pattern content, skipping")
			continue
		}
		// A trailing wildcard requires a character to follow the matched
		// phrase before the rule fires on a partial hypothesis.
		re, err := regexp.Compile(rule.Pattern + ".")
		if err != nil {
			logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("Grammar pattern failed to compile, treating as no-match")
			continue
		}
		rs.rules = append(rs.rules, compiledRule{id: rule.ID, re: re})
	}

	return rs, nil
}

// MatchFirst tests each rule's pattern against the partial-result text in
// document order. Returns the first matching rule id, or false when no rule
// matches. A nil or empty rule set never matches.
func (rs *RuleSet) MatchFirst(text string) (string, bool) {
	if rs == nil || text == "" {
		return "", false
	}
	for _, rule := range rs.rules {
		if rule.re.MatchString(text) {
			return rule.id, true
		}
	}
	return "", false
}

// Len returns the number of usable rules
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}
