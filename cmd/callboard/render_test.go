package main

import (
	"bytes"
	"testing"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id string, level int, age time.Duration) voicemail.Record {
	return voicemail.Record{
		VoicemailID: id,
		Urgency:     voicemail.Urgency{Level: level, Confidence: 0.9},
		Intent:      voicemail.IntentEmergency,
		Summary:     "Chest pain since this morning",
		Status:      voicemail.StatusPending,
		CreatedAt:   voicemail.NewTime(renderNow.Add(-age)),
	}
}

func TestFlagsShowsOneTriageBadge(t *testing.T) {
	critical := record("vm_1", 5, time.Minute)
	assert.Equal(t, "CRITICAL", flags(&critical))

	ambiguous := record("vm_2", 5, time.Minute)
	ambiguous.Intent = voicemail.IntentAmbiguous
	ambiguous.Urgency.Confidence = 0.4
	assert.Equal(t, "REVIEW,LOW-CONF", flags(&ambiguous))
}

func TestAgeMarksBreaches(t *testing.T) {
	breached := record("vm_1", 5, 6*time.Minute)
	assert.Equal(t, "6m BREACHED", age(&breached, renderNow))

	warning := record("vm_2", 5, 4*time.Minute)
	assert.Equal(t, "4m !", age(&warning, renderNow))

	fresh := record("vm_3", 3, 90*time.Minute)
	assert.Equal(t, "1h 30m", age(&fresh, renderNow))
}

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderList(&buf, []voicemail.Record{record("vm_1", 4, time.Minute)}, renderNow))

	out := buf.String()
	assert.Contains(t, out, "vm_1")
	assert.Contains(t, out, "URGENT")
	assert.Contains(t, out, "Chest pain since this morning")

	buf.Reset()
	require.NoError(t, renderList(&buf, nil, renderNow))
	assert.Equal(t, "No voicemails.\n", buf.String())
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "Xin…", truncate("Xin chào", 4))
	assert.Equal(t, "short", truncate("short", 10))
}
