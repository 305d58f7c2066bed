package pipeline

import (
	"context"
	"sort"
)

// RuleViolation records whether a named rule demanded a correction this
// turn. Transient: it exists for tracing and tests, never persisted.
type RuleViolation struct {
	RuleName string
	Priority float64
	Detected bool
}

// ReplyRule is one entry in the ordered rule table. Ordering is data, not
// control flow: rules run strictly by descending priority, ties broken by
// table position. The predicate reports whether the rule fired; the
// handler applies its correction to the turn state.
type ReplyRule struct {
	Name      string
	Priority  float64
	Predicate func(st *turnState) bool
	Handler   func(ctx context.Context, st *turnState)
}

// sortRules orders the table by priority descending, stable so that
// equal-priority rules keep their declared order.
func sortRules(rules []ReplyRule) []ReplyRule {
	sorted := make([]ReplyRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}
