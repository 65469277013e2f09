package schedule

import (
	"fmt"
	"strings"
)

// Rule pairs a predicate over the lower-cased query with the schedule name
// it attaches.
type Rule struct {
	Trigger string
	Key     string
	Match   func(lowerQuery string) bool
}

// Substring builds a rule that fires when trigger occurs anywhere in the
// lower-cased query.
func Substring(trigger, key string) Rule {
	lt := strings.ToLower(trigger)
	return Rule{
		Trigger: trigger,
		Key:     key,
		Match:   func(q string) bool { return strings.Contains(q, lt) },
	}
}

// DefaultRules is the built-in trigger table, evaluated in order.
func DefaultRules() []Rule {
	return []Rule{
		Substring("week 1", "week_1_schedule"),
		Substring("general schedule", "general_schedule"),
	}
}

// Selector evaluates an ordered rule table against a query.
type Selector struct {
	rules []Rule
}

// NewSelector creates a Selector over the given rules. With no rules it uses
// DefaultRules.
func NewSelector(rules ...Rule) *Selector {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Selector{rules: rules}
}

// Rules returns a copy of the rule table.
func (s *Selector) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Select returns, in rule order, the content of each schedule whose trigger
// matches the query. A matching rule whose schedule is absent contributes an
// empty string rather than being skipped.
func (s *Selector) Select(query string, c Collection) []string {
	keys := s.MatchedKeys(query)
	selected := make([]string, 0, len(keys))
	for _, key := range keys {
		selected = append(selected, c[key].Content)
	}
	return selected
}

// MatchedKeys returns the schedule names of every rule matching the query,
// in rule order, whether or not those schedules exist.
func (s *Selector) MatchedKeys(query string) []string {
	q := strings.ToLower(query)
	keys := []string{}
	for _, r := range s.rules {
		if r.Match == nil || !r.Match(q) {
			continue
		}
		keys = append(keys, r.Key)
	}
	return keys
}

// JoinContext joins selected schedule texts with newlines. Empty entries are
// kept and produce blank lines.
func JoinContext(selected []string) string {
	return strings.Join(selected, "\n")
}

// ParseRules parses "trigger=key" pairs separated by ';'. Blank segments are
// ignored.
func ParseRules(table string) ([]Rule, error) {
	var rules []Rule
	for _, seg := range strings.Split(table, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		trigger, key, ok := strings.Cut(seg, "=")
		trigger, key = strings.TrimSpace(trigger), strings.TrimSpace(key)
		if !ok || trigger == "" || key == "" {
			return nil, fmt.Errorf("invalid trigger rule %q: want trigger=key", seg)
		}
		rules = append(rules, Substring(trigger, key))
	}
	return rules, nil
}
