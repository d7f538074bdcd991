package report

import (
	"sort"

	"github.com/ordertalk/tagflow/internal/model"
)

// Aggregate recomputes tag frequency and categorized recommendations from the
// complete cumulative result set. It is a pure function of its inputs: weights
// never carry over from a previous pass, so resumed runs cannot double-count,
// and the output is identical for any processing order of the same results.
//
// Frequency is presence count: the number of distinct documents whose tag set
// contains the tag, not the number of occurrences.
func Aggregate(results map[string]model.Annotation, rules []CategoryRule) (map[string]int, map[string][]string) {
	frequency := make(map[string]int)

	// Scan documents in ascending ID order so "first seen" is well defined
	// regardless of how the result map was built.
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	firstSeen := make(map[string]int)
	for _, id := range ids {
		seen := make(map[string]bool)
		for _, tag := range results[id].Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			if _, ok := firstSeen[tag]; !ok {
				firstSeen[tag] = len(firstSeen)
			}
			frequency[tag]++
		}
	}

	recommended := make(map[string][]string, len(rules))
	for tag := range frequency {
		category := categoryFor(tag, rules)
		if category == "" {
			continue
		}
		recommended[category] = append(recommended[category], tag)
	}

	for _, tags := range recommended {
		sort.Slice(tags, func(i, j int) bool {
			if frequency[tags[i]] != frequency[tags[j]] {
				return frequency[tags[i]] > frequency[tags[j]]
			}
			return firstSeen[tags[i]] < firstSeen[tags[j]]
		})
	}

	return frequency, recommended
}

// TopTags returns up to n tags ordered by descending frequency, ties broken
// lexicographically. Used for the human-facing summary.
func TopTags(frequency map[string]int, n int) []string {
	tags := make([]string, 0, len(frequency))
	for tag := range frequency {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if frequency[tags[i]] != frequency[tags[j]] {
			return frequency[tags[i]] > frequency[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > n {
		tags = tags[:n]
	}
	return tags
}
