package triage

import (
	"testing"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord(id string, level int, minutesAgo int, status voicemail.Status) voicemail.Record {
	return voicemail.Record{
		VoicemailID: id,
		Urgency:     voicemail.Urgency{Level: level, Confidence: 0.9},
		Intent:      voicemail.IntentOther,
		Status:      status,
		CreatedAt:   voicemail.NewTime(baseTime.Add(-time.Duration(minutesAgo) * time.Minute)),
	}
}

func fixture() []voicemail.Record {
	ambiguousCritical := newRecord("amb-5", 5, 1, voicemail.StatusPending)
	ambiguousCritical.UIState = &voicemail.UIState{IsAmbiguous: true}

	ambiguousIntent := newRecord("amb-2", 2, 30, voicemail.StatusProcessed)
	ambiguousIntent.Intent = voicemail.IntentAmbiguous

	chest := newRecord("crit-old", 5, 6, voicemail.StatusPending)
	chest.Intent = voicemail.IntentEmergency
	chest.Summary = "Patient experiencing CHEST pain"

	meds := newRecord("std-meds", 3, 45, voicemail.StatusActioned)
	meds.Intent = voicemail.IntentPrescription
	meds.Summary = "Repeat script request"
	meds.ExtractedEntities = &voicemail.ExtractedEntities{MedicationNames: []string{"blood pressure tablets"}}

	viet := newRecord("urgent-vi", 4, 10, voicemail.StatusProcessed)
	viet.Language = "Vietnamese"
	viet.RedactedTranscript = "Xin chào, tôi bị đau ngực"

	return []voicemail.Record{
		ambiguousCritical,
		newRecord("info", 1, 5, voicemail.StatusArchived),
		meds,
		chest,
		newRecord("crit-new", 5, 2, voicemail.StatusPending),
		viet,
		ambiguousIntent,
		newRecord("odd-status", 2, 3, voicemail.Status("escalated")),
	}
}

func ids(records []voicemail.Record) []string {
	out := make([]string, 0, len(records))
	for i := range records {
		out = append(out, records[i].VoicemailID)
	}

	return out
}

func TestViewSortOrder(t *testing.T) {
	view := View(fixture(), Criteria{Category: CategoryAll})

	assert.Equal(t, []string{
		"crit-new",
		"crit-old",
		"urgent-vi",
		"std-meds",
		"odd-status",
		"info",
		"amb-5",
		"amb-2",
	}, ids(view))
}

func TestViewDoesNotReorderInput(t *testing.T) {
	records := fixture()
	before := ids(records)

	_ = View(records, Criteria{})

	assert.Equal(t, before, ids(records))
}

func TestCompareIsTotalAndAntisymmetric(t *testing.T) {
	records := fixture()

	twin := newRecord("crit-new-twin", 5, 2, voicemail.StatusPending)
	records = append(records, twin)

	for i := range records {
		for j := range records {
			ab := Compare(&records[i], &records[j])
			ba := Compare(&records[j], &records[i])

			require.Equal(t, -ab, ba, "%s vs %s", records[i].VoicemailID, records[j].VoicemailID)

			if i != j {
				require.NotZero(t, ab, "%s vs %s left unordered", records[i].VoicemailID, records[j].VoicemailID)
			}
		}
	}
}

func TestCategoryFilters(t *testing.T) {
	records := fixture()

	assert.Equal(t, []string{"crit-new", "crit-old"}, ids(View(records, Criteria{Category: CategoryCritical})))
	assert.Equal(t, []string{"urgent-vi"}, ids(View(records, Criteria{Category: CategoryUrgent})))
	assert.Equal(t, []string{"amb-5", "amb-2"}, ids(View(records, Criteria{Category: CategoryReview})))
	assert.Equal(t, []string{"std-meds"}, ids(View(records, Criteria{Category: CategoryActioned})))
	assert.Equal(t, []string{"info"}, ids(View(records, Criteria{Category: CategoryArchived})))
	assert.Equal(t,
		[]string{"crit-new", "crit-old", "urgent-vi", "amb-5", "amb-2"},
		ids(View(records, Criteria{Category: CategoryPending})),
	)
}

func TestStatusCategoriesPartition(t *testing.T) {
	records := fixture()
	statusCategories := []Category{CategoryPending, CategoryActioned, CategoryArchived}

	for i := range records {
		hits := 0

		for _, category := range statusCategories {
			if category.Matches(&records[i]) {
				hits++
			}
		}

		if records[i].Status.Valid() {
			require.Equal(t, 1, hits, records[i].VoicemailID)
		} else {
			require.Zero(t, hits, records[i].VoicemailID)
		}
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	records := fixture()

	upper := View(records, Criteria{Query: "CHEST"})
	lower := View(records, Criteria{Query: "chest"})

	assert.Equal(t, ids(upper), ids(lower))
	assert.Equal(t, []string{"crit-old"}, ids(lower))
}

func TestSearchCoversTranscriptIntentAndLanguage(t *testing.T) {
	records := fixture()

	assert.Equal(t, []string{"urgent-vi"}, ids(View(records, Criteria{Query: "đau ngực"})))
	assert.Equal(t, []string{"urgent-vi"}, ids(View(records, Criteria{Query: "vietnamese"})))
	assert.Equal(t, []string{"std-meds"}, ids(View(records, Criteria{Query: "prescription"})))
}

func TestSearchIgnoresExtractedEntities(t *testing.T) {
	assert.Empty(t, View(fixture(), Criteria{Query: "blood pressure"}))
}

func TestSearchAppliesAfterCategory(t *testing.T) {
	assert.Empty(t, View(fixture(), Criteria{Category: CategoryUrgent, Query: "chest"}))
}

func TestCounts(t *testing.T) {
	counts := Counts(fixture())

	assert.Equal(t, 8, counts[CategoryAll])
	assert.Equal(t, 2, counts[CategoryCritical])
	assert.Equal(t, 1, counts[CategoryUrgent])
	assert.Equal(t, 2, counts[CategoryReview])
	assert.Equal(t, 5, counts[CategoryPending])
	assert.Equal(t, 1, counts[CategoryActioned])
	assert.Equal(t, 1, counts[CategoryArchived])
}

func TestParseCategory(t *testing.T) {
	category, err := ParseCategory(" Critical ")
	require.NoError(t, err)
	assert.Equal(t, CategoryCritical, category)

	category, err = ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryAll, category)

	_, err = ParseCategory("everything")
	require.ErrorIs(t, err, ErrUnknownCategory)
}
