package voicemail

import (
	"net/url"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDecodesNaiveTimestamps(t *testing.T) {
	body := `{
		"voicemail_id": "vm_1",
		"language": "English",
		"urgency": {"level": 5, "reasoning": "chest pain", "confidence": 0.95},
		"intent": "Emergency",
		"summary": "Chest pain",
		"created_at": "2024-01-15T10:30:00.123456",
		"callback_attempted_at": null,
		"status": "processed",
		"ui_state": {"is_ambiguous": false, "needs_manual_listening": true}
	}`

	var record Record
	require.NoError(t, json.Unmarshal([]byte(body), &record))

	assert.Equal(t, "vm_1", record.VoicemailID)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC), record.CreatedAt.Time)
	assert.Nil(t, record.CallbackAttemptedAt)
	assert.True(t, record.UIState.NeedsManualListening)
	assert.True(t, record.Complete())
}

func TestAcknowledgmentBodyIsNotComplete(t *testing.T) {
	var record Record
	require.NoError(t, json.Unmarshal([]byte(`{"status":"linked","voicemail_id":"vm_2"}`), &record))

	assert.False(t, record.Complete())
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	_, err := ParseTime("yesterday")
	require.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	original := Record{
		VoicemailID:       "vm_3",
		ExtractedEntities: &ExtractedEntities{Symptoms: []string{"fever"}},
	}

	clone := original.Clone()
	clone.ExtractedEntities.Symptoms[0] = "cough"

	assert.Equal(t, "fever", original.ExtractedEntities.Symptoms[0])
}

func TestListQueryEncode(t *testing.T) {
	query := ListQuery{
		FilterState: FilterState{Phone: "0412", Doctor: "Nguyen", HideOldActioned: true},
		PageSize:    100,
	}

	values, err := url.ParseQuery(query.Encode())
	require.NoError(t, err)

	assert.Equal(t, "100", values.Get("page_size"))
	assert.Equal(t, "0412", values.Get("phone"))
	assert.Equal(t, "Nguyen", values.Get("doctor"))
	assert.Equal(t, "true", values.Get("hide_old_actioned"))
	assert.False(t, values.Has("symptom"))
}

func TestStatusValidity(t *testing.T) {
	assert.True(t, StatusArchived.Valid())
	assert.False(t, Status("deleted").Valid())
	assert.False(t, CallbackPending.Recordable())
	assert.True(t, CallbackLeftMessage.Recordable())
}
