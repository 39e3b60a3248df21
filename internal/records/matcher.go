package records

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// ExactMatcher matches a target against record IDs and display names
// by case-insensitive equality.
type ExactMatcher struct{}

func (ExactMatcher) Match(recs []Record, target string) []Record {
	var out []Record
	for _, rec := range recs {
		if strings.EqualFold(rec.ID, target) || strings.EqualFold(rec.DisplayName, target) {
			out = append(out, rec)
		}
	}
	return out
}

// FuzzyMatcher matches a target loosely against record IDs and display
// names. Looseness is deliberate: an ambiguous result makes the caller
// list the candidates instead of uninstalling the wrong thing.
type FuzzyMatcher struct{}

func (FuzzyMatcher) Match(recs []Record, target string) []Record {
	names := make([]string, len(recs))
	ids := make([]string, len(recs))
	for i, rec := range recs {
		names[i] = rec.DisplayName
		ids[i] = rec.ID
	}

	matched := make(map[int]bool)
	for _, hit := range fuzzy.Find(target, names) {
		matched[hit.Index] = true
	}
	for _, hit := range fuzzy.Find(target, ids) {
		matched[hit.Index] = true
	}

	var out []Record
	for i, rec := range recs {
		if matched[i] {
			out = append(out, rec)
		}
	}
	return out
}
