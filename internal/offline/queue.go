package offline

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	prometheusCallboard "git.mci.dev/mse/sre/phoenix/golang/callboard/internal/prometheus"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

var (
	ErrReplayInProgress = errors.New("offline queue replay already in progress")
	// ErrNotSent is returned by a Sender when the action never reached the
	// backend. Replay stops and keeps it, and everything after it, queued.
	ErrNotSent = errors.New("queued action not sent")
)

// Sender delivers one queued action to the backend.
type Sender interface {
	Send(ctx context.Context, action QueuedAction) error
}

type SenderFunc func(ctx context.Context, action QueuedAction) error

func (f SenderFunc) Send(ctx context.Context, action QueuedAction) error {
	return f(ctx, action)
}

type ReplayReport struct {
	Attempted int
	Succeeded int
	Failed    int
	// Remaining counts actions left queued: enqueued during the replay, not
	// attempted because ctx ended, or held back after ErrNotSent.
	Remaining int
}

// Queue holds mutations made while offline. Every change is written through to
// the store; a failed write is logged and the queue keeps going in memory.
type Queue struct {
	store Store

	mu        sync.Mutex
	actions   []QueuedAction
	replaying atomic.Bool
}

// NewQueue restores any actions persisted by a previous run.
func NewQueue(ctx context.Context, store Store) *Queue {
	queue := &Queue{store: store}

	raw, err := store.Get(ctx, QueueKey)

	switch {
	case errors.Is(err, ErrStateNotFound):
	case err != nil:
		logging.Logger.Error("failed to load offline queue, starting empty", zap.Error(err))
	default:
		err = json.Unmarshal(raw, &queue.actions)
		if err != nil {
			logging.Logger.Error("discarding unreadable offline queue", zap.Error(err))

			queue.actions = nil
		}
	}

	prometheusCallboard.OfflineQueueDepth.Set(float64(len(queue.actions)))

	if len(queue.actions) > 0 {
		logging.Logger.Info("restored offline queue", zap.Int("actions", len(queue.actions)))
	}

	return queue
}

func (q *Queue) Enqueue(ctx context.Context, action QueuedAction) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.actions = append(q.actions, action)
	q.persistLocked(ctx)

	logging.Logger.Info("queued offline action",
		zap.String("voicemail_id", action.VoicemailID),
		zap.String("type", string(action.Type)),
		zap.Int("depth", len(q.actions)),
	)
}

// Pending returns the queued actions in enqueue order.
func (q *Queue) Pending() []QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.actions)
}

// Has reports whether an action for voicemailID is waiting to be sent.
func (q *Queue) Has(voicemailID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.ContainsFunc(q.actions, func(a QueuedAction) bool { return a.VoicemailID == voicemailID })
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.actions)
}

// Replay sends every queued action in enqueue order, one at a time. A rejected
// action is logged and dropped; it never blocks the rest of the batch. An
// action the sender reports as ErrNotSent ends the batch and stays queued with
// everything behind it. The attempted actions leave the queue together once
// the batch is done.
func (q *Queue) Replay(ctx context.Context, sender Sender) (ReplayReport, error) {
	if !q.replaying.CompareAndSwap(false, true) {
		return ReplayReport{}, ErrReplayInProgress
	}
	defer q.replaying.Store(false)

	batch := q.Pending()

	var report ReplayReport

	for i := range batch {
		if ctx.Err() != nil {
			break
		}

		err := sender.Send(ctx, batch[i])
		if errors.Is(err, ErrNotSent) {
			prometheusCallboard.OfflineReplay.WithLabelValues(prometheusCallboard.OutcomeDeferred).Inc()

			logging.Logger.Warn("replay deferred, backend unavailable",
				zap.String("voicemail_id", batch[i].VoicemailID),
				zap.Int("held_back", len(batch)-i),
				zap.Error(err),
			)

			break
		}

		report.Attempted++

		if err != nil {
			report.Failed++
			prometheusCallboard.OfflineReplay.WithLabelValues(prometheusCallboard.OutcomeFailure).Inc()

			logging.Logger.Warn("replay failed",
				zap.String("voicemail_id", batch[i].VoicemailID),
				zap.String("type", string(batch[i].Type)),
				zap.Error(err),
			)

			continue
		}

		report.Succeeded++
		prometheusCallboard.OfflineReplay.WithLabelValues(prometheusCallboard.OutcomeSuccess).Inc()
	}

	q.mu.Lock()
	q.actions = q.actions[report.Attempted:]
	q.persistLocked(context.WithoutCancel(ctx))
	report.Remaining = len(q.actions)
	q.mu.Unlock()

	logging.Logger.Info("offline queue replayed",
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("remaining", report.Remaining),
	)

	return report, ctx.Err()
}

func (q *Queue) persistLocked(ctx context.Context) {
	prometheusCallboard.OfflineQueueDepth.Set(float64(len(q.actions)))

	var err error

	if len(q.actions) == 0 {
		q.actions = nil
		err = q.store.Delete(ctx, QueueKey)
	} else {
		var raw []byte

		raw, err = json.Marshal(q.actions)
		if err == nil {
			err = q.store.Put(ctx, QueueKey, raw)
		}
	}

	if err != nil {
		logging.Logger.Error("failed to persist offline queue, continuing in memory",
			zap.Int("depth", len(q.actions)),
			zap.Error(err),
		)
	}
}
