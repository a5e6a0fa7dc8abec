package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordJSON = `{
	"voicemail_id": "vm_1",
	"urgency": {"level": 5, "confidence": 0.92, "reasoning": "chest pain"},
	"intent": "Emergency",
	"summary": "Chest pain since this morning",
	"created_at": "2024-03-01T11:54:00.123456",
	"status": "pending",
	"escalation_acknowledged": false,
	"escalation_reminder_count": 0,
	"pms_linked": false,
	"is_repeat_caller": false
}`

func newTestClient(t *testing.T, server *httptest.Server, signal *circuitbreak.Signal) *Client {
	t.Helper()

	client, err := NewClient(Settings{
		BaseURL:         server.URL + "/api/v1",
		Timeout:         time.Second,
		RetryAttempts:   3,
		RetryMinBackoff: time.Millisecond,
		RetryMaxBackoff: 5 * time.Millisecond,
		Breaker:         circuitbreak.Settings{ConsecutiveFailures: 2, Timeout: time.Minute},
		Signal:          signal,
	})
	require.NoError(t, err)

	return client
}

func TestListEncodesFiltersAndDecodesRecords(t *testing.T) {
	var gotQuery, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery

		_, _ = w.Write([]byte(`{"total": 1, "page": 1, "page_size": 100, "items": [` + recordJSON + `]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)

	resp, err := client.List(context.Background(), voicemail.ListQuery{
		FilterState: voicemail.FilterState{Symptom: "chest", HideOldActioned: true},
		PageSize:    100,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/voicemail/", gotPath)
	assert.Equal(t, "hide_old_actioned=true&page_size=100&symptom=chest", gotQuery)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "vm_1", resp.Items[0].VoicemailID)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 54, 0, 123456000, time.UTC), resp.Items[0].CreatedAt.Time)
}

func TestUpdateStatusSendsPatchWithIdempotencyKey(t *testing.T) {
	var (
		method, key string
		body        voicemail.StatusUpdate
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		key = r.Header.Get(IdempotencyKeyHeader)
		_ = json.NewDecoder(r.Body).Decode(&body)

		_, _ = w.Write([]byte(recordJSON))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)

	rec, err := client.UpdateStatus(context.Background(), "vm_1", voicemail.StatusActioned, "key-1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "key-1", key)
	assert.Equal(t, voicemail.StatusActioned, body.Status)
	assert.Equal(t, "vm_1", rec.VoicemailID)
}

func TestRecordCallbackUsesQueryParameters(t *testing.T) {
	var gotQuery, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery

		_, _ = w.Write([]byte(recordJSON))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)

	_, err := client.RecordCallback(context.Background(), "vm_1", voicemail.CallbackRequest{
		Status: voicemail.CallbackNoAnswer,
		By:     "Dr Lee",
	}, "key-2")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/voicemail/vm_1/callback", gotPath)
	assert.Equal(t, "callback_by=Dr+Lee&callback_status=no_answer", gotQuery)
}

func TestAcknowledgeEscalationRereadsRecord(t *testing.T) {
	var gets atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/voicemail/vm_1/acknowledge-escalation", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Nurse Kim", r.URL.Query().Get("acknowledged_by"))

		_, _ = w.Write([]byte(`{"status": "acknowledged", "voicemail_id": "vm_1"}`))
	})
	mux.HandleFunc("GET /api/v1/voicemail/vm_1", func(w http.ResponseWriter, _ *http.Request) {
		gets.Add(1)

		_, _ = w.Write([]byte(recordJSON))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, nil)

	rec, err := client.AcknowledgeEscalation(context.Background(), "vm_1", "Nurse Kim", "key-3")
	require.NoError(t, err)

	assert.Equal(t, int32(1), gets.Load())
	assert.True(t, rec.Complete())
	assert.Equal(t, voicemail.StatusPending, rec.Status)
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	signal := circuitbreak.NewSignal()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail": "Voicemail not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server, signal)

	for range 5 {
		_, err := client.Get(context.Background(), "missing")
		require.ErrorIs(t, err, ErrNotFound)
		require.False(t, Unavailable(err))
	}

	assert.Equal(t, gobreaker.StateClosed, client.CircuitBreaker.State())
	assert.Empty(t, signal.C())
}

func TestReadsRetryServerErrors(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(`{"count": 0, "escalations": []}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)

	resp, err := client.ActiveEscalations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), hits.Load())
	assert.Zero(t, resp.Count)
}

func TestWritesAreNotRetried(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)

	_, err := client.UpdateStatus(context.Background(), "vm_1", voicemail.StatusArchived, "key-4")
	require.ErrorIs(t, err, ErrServerError)
	assert.True(t, Unavailable(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestServerFailuresOpenBreakerAndSignal(t *testing.T) {
	signal := circuitbreak.NewSignal()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server, signal)

	for range 2 {
		_, err := client.UpdateStatus(context.Background(), "vm_1", voicemail.StatusArchived, "key")
		require.Error(t, err)
	}

	require.Equal(t, gobreaker.StateOpen, client.CircuitBreaker.State())

	select {
	case service := <-signal.C():
		assert.Equal(t, circuitbreak.BackendService, service)
	default:
		t.Fatal("expected breaker signal")
	}

	_, err := client.Get(context.Background(), "vm_1")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, Unavailable(err))
}

func TestPingUsesServerRoot(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		_, _ = w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "/health", gotPath)
}

func TestSearchPMSAcceptsPatientsSpelling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/voicemail/pms/search", r.URL.Path)
		assert.Equal(t, "cliniko", r.URL.Query().Get("pms_system"))

		_, _ = w.Write([]byte(`{"pms_system": "cliniko", "count": 1,
			"patients": [{"patient_id": "CL-001", "name": "David Wong", "dob": "1990-01-30", "match_type": "phone"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)

	resp, err := client.SearchPMS(context.Background(), voicemail.PMSCliniko, "0412", "")
	require.NoError(t, err)

	require.Len(t, resp.Matches(), 1)
	assert.Equal(t, "CL-001", resp.Matches()[0].PatientID)
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient(Settings{BaseURL: "/api/v1"})
	require.ErrorIs(t, err, ErrInvalidURL)
}
