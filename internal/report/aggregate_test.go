package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordertalk/tagflow/internal/model"
)

func TestAggregateCountsPresenceNotOccurrences(t *testing.T) {
	results := map[string]model.Annotation{
		"a.txt": {Tags: []string{"happy customer", "happy customer", "smooth order"}},
		"b.txt": {Tags: []string{"happy customer"}},
	}

	frequency, _ := Aggregate(results, DefaultCategoryRules)

	assert.Equal(t, 2, frequency["happy customer"])
	assert.Equal(t, 1, frequency["smooth order"])
}

func TestAggregateIsDeterministicAcrossBuildOrder(t *testing.T) {
	annotations := []struct {
		id   string
		tags []string
	}{
		{"call-01.txt", []string{"happy customer", "upselling success"}},
		{"call-02.txt", []string{"annoyed customer"}},
		{"call-03.txt", []string{"happy customer", "smooth order"}},
		{"call-04.txt", []string{"smooth order", "annoyed customer"}},
		{"call-05.txt", []string{"human requested"}},
	}

	forward := map[string]model.Annotation{}
	for _, a := range annotations {
		forward[a.id] = model.Annotation{Tags: a.tags}
	}
	backward := map[string]model.Annotation{}
	for i := len(annotations) - 1; i >= 0; i-- {
		backward[annotations[i].id] = model.Annotation{Tags: annotations[i].tags}
	}

	freqA, recA := Aggregate(forward, DefaultCategoryRules)
	freqB, recB := Aggregate(backward, DefaultCategoryRules)

	assert.Equal(t, freqA, freqB)
	assert.Equal(t, recA, recB)
}

func TestAggregateBucketsByFirstMatchingRule(t *testing.T) {
	results := map[string]model.Annotation{
		"a.txt": {Tags: []string{"human requested", "annoyed customer", "happy ending"}},
	}

	_, recommended := Aggregate(results, DefaultCategoryRules)

	assert.Contains(t, recommended["Special_Cases"], "human requested")
	assert.Contains(t, recommended["Negative_Experience"], "annoyed customer")
	assert.Contains(t, recommended["Positive_Experience"], "happy ending")
}

func TestAggregateRanksWithinCategoryByFrequency(t *testing.T) {
	results := map[string]model.Annotation{
		"a.txt": {Tags: []string{"quick call"}},
		"b.txt": {Tags: []string{"happy customer", "quick call"}},
		"c.txt": {Tags: []string{"happy customer", "friendly customer"}},
		"d.txt": {Tags: []string{"happy customer"}},
	}

	_, recommended := Aggregate(results, DefaultCategoryRules)

	positive := recommended["Positive_Experience"]
	require.Len(t, positive, 3)
	assert.Equal(t, "happy customer", positive[0])
	assert.Equal(t, "quick call", positive[1])
	assert.Equal(t, "friendly customer", positive[2])
}

func TestAggregateTieBreaksByFirstSeen(t *testing.T) {
	// Both tags appear once; "polite caller" is seen first in ascending
	// document ID order and must sort ahead.
	results := map[string]model.Annotation{
		"01.txt": {Tags: []string{"polite caller"}},
		"02.txt": {Tags: []string{"efficient order"}},
	}

	_, recommended := Aggregate(results, DefaultCategoryRules)

	positive := recommended["Positive_Experience"]
	require.Len(t, positive, 2)
	assert.Equal(t, "polite caller", positive[0])
	assert.Equal(t, "efficient order", positive[1])
}

func TestAggregateLeavesUnmatchedTagsUncategorized(t *testing.T) {
	results := map[string]model.Annotation{
		"a.txt": {Tags: []string{"rotary phone caller"}},
	}

	frequency, recommended := Aggregate(results, DefaultCategoryRules)

	assert.Equal(t, 1, frequency["rotary phone caller"])
	for category, tags := range recommended {
		assert.NotContains(t, tags, "rotary phone caller", "category %s", category)
	}
}

func TestAggregateWithCustomRules(t *testing.T) {
	rules := []CategoryRule{
		{Category: "Billing", Keywords: []string{"refund", "charge"}},
	}
	results := map[string]model.Annotation{
		"a.txt": {Tags: []string{"refund requested", "happy customer"}},
	}

	_, recommended := Aggregate(results, rules)

	assert.Equal(t, []string{"refund requested"}, recommended["Billing"])
	require.Len(t, recommended, 1)
}

func TestAggregateEmptyResults(t *testing.T) {
	frequency, recommended := Aggregate(map[string]model.Annotation{}, DefaultCategoryRules)
	assert.Empty(t, frequency)
	assert.Empty(t, recommended)
}

func TestTopTags(t *testing.T) {
	frequency := map[string]int{
		"happy customer": 5,
		"smooth order":   3,
		"quick call":     3,
		"upselling":      1,
	}

	top := TopTags(frequency, 3)
	assert.Equal(t, []string{"happy customer", "quick call", "smooth order"}, top)

	all := TopTags(frequency, 10)
	assert.Len(t, all, 4)
}
