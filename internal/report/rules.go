// Package report derives corpus-wide statistics and recommendations from the
// cumulative annotation results, and persists the final report.
package report

import "strings"

// CategoryRule buckets tags into a recommendation category. Rules are
// evaluated in declared order; the first match wins, so more specific rules
// belong earlier in the table.
type CategoryRule struct {
	Category string
	Keywords []string
}

// Matches reports whether the tag belongs to this rule's category. Matching
// is case-insensitive substring containment over the rule's keywords.
func (r CategoryRule) Matches(tag string) bool {
	tag = strings.ToLower(tag)
	for _, keyword := range r.Keywords {
		if strings.Contains(tag, keyword) {
			return true
		}
	}
	return false
}

// DefaultCategoryRules is the stock rule table for restaurant phone-order
// transcripts. It is configuration, not contract: callers may supply their
// own table without touching the aggregator.
var DefaultCategoryRules = []CategoryRule{
	{
		Category: "Special_Cases",
		Keywords: []string{"human requested", "human agent", "transfer", "callback", "missing item"},
	},
	{
		Category: "Order_Quality",
		Keywords: []string{"order value", "upsell", "order correction", "menu explained"},
	},
	{
		Category: "Negative_Experience",
		Keywords: []string{"annoyed", "repetition", "interruption", "missed", "frustrat", "confus", "rude", "slow"},
	},
	{
		Category: "Positive_Experience",
		Keywords: []string{"happy", "smooth", "quick", "questions answered", "friendly", "polite", "efficient"},
	},
}

// categoryFor returns the first matching category, or "" when no rule claims
// the tag. Unclaimed tags still count toward tag frequency; they are simply
// absent from the recommendations.
func categoryFor(tag string, rules []CategoryRule) string {
	for _, rule := range rules {
		if rule.Matches(tag) {
			return rule.Category
		}
	}
	return ""
}
