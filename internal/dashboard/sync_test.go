package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/backend"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/notify"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/offline"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverRecordJSON = `{
	"voicemail_id": "vm_1",
	"urgency": {"level": 5, "confidence": 0.92},
	"intent": "Emergency",
	"summary": "Chest pain since this morning",
	"created_at": "2024-03-01T11:54:00",
	"status": "actioned"
}`

func TestLoadReplaysQueueLeftByEarlierSession(t *testing.T) {
	h := loaded(t, Settings{}, newRecord("vm_1", 5, voicemail.StatusPending))
	ctx := context.Background()

	h.dashboard.SetOnline(ctx, false)

	_, err := h.dashboard.MarkActioned(ctx, "vm_1")
	require.NoError(t, err)
	require.Empty(t, h.backend.writeLog())

	restarted := h.build(Settings{})
	require.Equal(t, 1, restarted.Queue.Len())

	require.NoError(t, restarted.Load(ctx))

	assert.Zero(t, restarted.Queue.Len())
	assert.Equal(t, []string{"status:vm_1"}, h.backend.writeLog())

	rec, ok := restarted.Record("vm_1")
	require.True(t, ok)
	assert.Equal(t, voicemail.StatusActioned, rec.Status)
}

func TestOnlineWriteGoesOutAfterQueuedActionForSameVoicemail(t *testing.T) {
	h := loaded(t, Settings{}, newRecord("vm_1", 5, voicemail.StatusPending))
	ctx := context.Background()

	h.dashboard.SetOnline(ctx, false)

	_, err := h.dashboard.MarkActioned(ctx, "vm_1")
	require.NoError(t, err)

	// A fresh process that has not loaded yet still holds the queued action.
	restarted := h.build(Settings{})
	require.Equal(t, 1, restarted.Queue.Len())

	rec, err := restarted.ReturnToPending(ctx, "vm_1")
	require.NoError(t, err)
	assert.Equal(t, voicemail.StatusPending, rec.Status)

	assert.Equal(t, []string{"status:vm_1", "status:vm_1"}, h.backend.writeLog())
	assert.Zero(t, restarted.Queue.Len())

	h.backend.mu.Lock()
	final := h.backend.records[0].Status
	h.backend.mu.Unlock()

	assert.Equal(t, voicemail.StatusPending, final)
}

func TestOnlineWriteQueuesBehindActionThatCannotBeSent(t *testing.T) {
	h := loaded(t, Settings{}, newRecord("vm_1", 5, voicemail.StatusPending))
	ctx := context.Background()

	h.dashboard.SetOnline(ctx, false)

	_, err := h.dashboard.MarkActioned(ctx, "vm_1")
	require.NoError(t, err)

	restarted := h.build(Settings{})

	h.backend.mu.Lock()
	h.backend.writeErr = errBackendOff
	h.backend.mu.Unlock()

	_, err = restarted.ReturnToPending(ctx, "vm_1")
	require.NoError(t, err)

	// The first action was tried and held back; the second never went out.
	assert.Equal(t, []string{"status:vm_1"}, h.backend.writeLog())
	require.Equal(t, 2, restarted.Queue.Len())

	pending := restarted.Queue.Pending()
	first, err := pending[0].StatusUpdate()
	require.NoError(t, err)
	second, err := pending[1].StatusUpdate()
	require.NoError(t, err)

	assert.Equal(t, voicemail.StatusActioned, first.Status)
	assert.Equal(t, voicemail.StatusPending, second.Status)
}

func TestOfflineActionOnUnseenVoicemailIsQueuedAndReported(t *testing.T) {
	h := loaded(t, Settings{}, newRecord("vm_1", 5, voicemail.StatusPending))
	ctx := context.Background()

	h.dashboard.SetOnline(ctx, false)

	rec, err := h.dashboard.MarkActioned(ctx, "vm_404")
	require.ErrorIs(t, err, ErrQueuedUnseen)
	assert.Nil(t, rec)

	assert.Equal(t, 1, h.dashboard.Queue.Len())
	assert.True(t, h.dashboard.Queue.Has("vm_404"))

	last := h.lastNotification()
	assert.Equal(t, notify.KindInfo, last.Kind)
	assert.Contains(t, last.Message, "vm_404")
}

func TestReplayKeepsActionsWhileBreakerIsOpen(t *testing.T) {
	var (
		down    atomic.Bool
		patches atomic.Int32
	)

	down.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			patches.Add(1)
		}

		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if r.Method == http.MethodPatch {
			_, _ = w.Write([]byte(serverRecordJSON))
			return
		}

		_, _ = w.Write([]byte(`{"total": 1, "page": 1, "page_size": 100, "items": [` + serverRecordJSON + `]}`))
	}))
	defer server.Close()

	client, err := backend.NewClient(backend.Settings{
		BaseURL:         server.URL + "/api/v1",
		Timeout:         time.Second,
		RetryAttempts:   1,
		RetryMinBackoff: time.Millisecond,
		RetryMaxBackoff: time.Millisecond,
		Breaker:         circuitbreak.Settings{ConsecutiveFailures: 1, Timeout: 100 * time.Millisecond},
	})
	require.NoError(t, err)

	ctx := context.Background()
	store := newMemStore()
	queue := offline.NewQueue(ctx, store)

	for i := range 6 {
		action, err := offline.NewStatusChange(fmt.Sprintf("vm_%d", i+1), voicemail.StatusActioned, fmt.Sprintf("key-%d", i), fixedNow)
		require.NoError(t, err)
		queue.Enqueue(ctx, action)
	}

	notifier := notify.NewService(time.Minute)
	t.Cleanup(notifier.Close)

	d := New(client, queue, offline.NewCache(store, time.Hour), notifier, &recordingPublisher{}, Settings{})

	// A failed read trips the breaker before the replay starts.
	require.Error(t, d.Refresh(ctx))
	require.Equal(t, gobreaker.StateOpen, client.CircuitBreaker.State())
	require.False(t, d.Online())

	report, err := d.Sync(ctx)
	require.Error(t, err)

	assert.Zero(t, patches.Load())
	assert.Zero(t, report.Attempted)
	assert.Equal(t, 6, report.Remaining)
	assert.Equal(t, 6, d.Queue.Len())

	down.Store(false)

	require.Eventually(t, func() bool {
		_, err := d.Sync(ctx)
		return err == nil
	}, timeout, tick)

	assert.Zero(t, d.Queue.Len())
	assert.Equal(t, int32(6), patches.Load())
}
