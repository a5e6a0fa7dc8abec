package triage

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
)

var ErrUnknownCategory = errors.New("unknown category")

type Category string

const (
	CategoryAll      Category = "all"
	CategoryCritical Category = "critical"
	CategoryUrgent   Category = "urgent"
	CategoryReview   Category = "review"
	CategoryPending  Category = "pending"
	CategoryActioned Category = "actioned"
	CategoryArchived Category = "archived"
)

// Categories lists the sidebar buckets in display order.
var Categories = []Category{
	CategoryAll,
	CategoryCritical,
	CategoryUrgent,
	CategoryReview,
	CategoryPending,
	CategoryActioned,
	CategoryArchived,
}

func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryAll, nil
	}

	category := Category(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Categories, category) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}

	return category, nil
}

// Matches reports whether record belongs to category. Unknown categories match
// nothing.
func (c Category) Matches(record *voicemail.Record) bool {
	switch c {
	case CategoryAll:
		return true
	case CategoryCritical:
		return Classify(record).Critical
	case CategoryUrgent:
		return Classify(record).Urgent
	case CategoryReview:
		return IsAmbiguous(record)
	case CategoryPending:
		return record.Status == voicemail.StatusPending || record.Status == voicemail.StatusProcessed
	case CategoryActioned:
		return record.Status == voicemail.StatusActioned
	case CategoryArchived:
		return record.Status == voicemail.StatusArchived
	default:
		return false
	}
}

type Criteria struct {
	Category Category
	Query    string
}

// MatchesQuery is a case-insensitive substring test over summary, transcript,
// intent and language. Extracted entities are deliberately not searched.
func MatchesQuery(record *voicemail.Record, query string) bool {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return true
	}

	fields := []string{
		record.Summary,
		record.Transcript(),
		string(record.Intent),
		record.LanguageLabel(),
	}

	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}

	return false
}

// Compare orders records for triage: non-ambiguous before ambiguous, then
// higher urgency, then newer first. The id breaks exact timestamp ties so the
// order is total.
func Compare(a, b *voicemail.Record) int {
	ambiguousA, ambiguousB := IsAmbiguous(a), IsAmbiguous(b)
	if ambiguousA != ambiguousB {
		if ambiguousA {
			return 1
		}

		return -1
	}

	if c := cmp.Compare(b.Urgency.Level, a.Urgency.Level); c != 0 {
		return c
	}

	if c := b.CreatedAt.Compare(a.CreatedAt.Time); c != 0 {
		return c
	}

	return cmp.Compare(a.VoicemailID, b.VoicemailID)
}

// View filters by category, then by query, then sorts. records is not modified.
func View(records []voicemail.Record, criteria Criteria) []voicemail.Record {
	category := criteria.Category
	if category == "" {
		category = CategoryAll
	}

	out := make([]voicemail.Record, 0, len(records))

	for i := range records {
		if !category.Matches(&records[i]) {
			continue
		}

		if !MatchesQuery(&records[i], criteria.Query) {
			continue
		}

		out = append(out, records[i])
	}

	slices.SortFunc(out, func(a, b voicemail.Record) int {
		return Compare(&a, &b)
	})

	return out
}

// Counts returns the sidebar badge count for every category.
func Counts(records []voicemail.Record) map[Category]int {
	counts := make(map[Category]int, len(Categories))

	for _, category := range Categories {
		counts[category] = 0
	}

	for i := range records {
		for _, category := range Categories {
			if category.Matches(&records[i]) {
				counts[category]++
			}
		}
	}

	return counts
}
