package dashboard

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/audit"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/backend"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/notify"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/offline"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
)

var (
	fixedNow      = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	errRejected   = errors.New("rejected")
	errBackendOff = backend.ErrServerError
)

func newRecord(id string, level int, status voicemail.Status) voicemail.Record {
	return voicemail.Record{
		VoicemailID: id,
		Urgency:     voicemail.Urgency{Level: level, Confidence: 0.9},
		Intent:      voicemail.IntentOther,
		Summary:     "summary of " + id,
		Status:      status,
		CreatedAt:   voicemail.NewTime(fixedNow.Add(-10 * time.Minute)),
	}
}

type fakeBackend struct {
	mu      sync.Mutex
	records []voicemail.Record

	listCalls int
	listGates map[int]chan struct{}
	listErr   error

	updateGate chan struct{}
	writeErr   error

	writes []string
	keys   []string
}

func newFakeBackend(records ...voicemail.Record) *fakeBackend {
	return &fakeBackend{records: records, listGates: map[int]chan struct{}{}}
}

func (b *fakeBackend) snapshot() []voicemail.Record {
	out := make([]voicemail.Record, len(b.records))
	for i := range b.records {
		out[i] = b.records[i].Clone()
	}

	return out
}

func (b *fakeBackend) List(ctx context.Context, _ voicemail.ListQuery) (*voicemail.ListResponse, error) {
	b.mu.Lock()
	b.listCalls++
	call := b.listCalls
	gate := b.listGates[call]
	items := b.snapshot()
	err := b.listErr
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	return &voicemail.ListResponse{Total: len(items), Items: items}, nil
}

func (b *fakeBackend) Get(_ context.Context, voicemailID string) (*voicemail.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.index(voicemailID)
	if idx < 0 {
		return nil, backend.ErrNotFound
	}

	rec := b.records[idx].Clone()

	return &rec, nil
}

func (b *fakeBackend) mutate(voicemailID, write, key string, apply func(*voicemail.Record)) (*voicemail.Record, error) {
	b.mu.Lock()
	gate := b.updateGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.writes = append(b.writes, write+":"+voicemailID)
	b.keys = append(b.keys, key)

	if b.writeErr != nil {
		return nil, b.writeErr
	}

	idx := b.index(voicemailID)
	if idx < 0 {
		return nil, backend.ErrNotFound
	}

	apply(&b.records[idx])
	rec := b.records[idx].Clone()

	return &rec, nil
}

func (b *fakeBackend) UpdateStatus(_ context.Context, voicemailID string, status voicemail.Status, key string) (*voicemail.Record, error) {
	return b.mutate(voicemailID, "status", key, func(rec *voicemail.Record) {
		rec.Status = status
	})
}

func (b *fakeBackend) RecordCallback(
	_ context.Context,
	voicemailID string,
	callback voicemail.CallbackRequest,
	key string,
) (*voicemail.Record, error) {
	return b.mutate(voicemailID, "callback", key, func(rec *voicemail.Record) {
		rec.CallbackStatus = callback.Status
		rec.CallbackBy = callback.By
		rec.CallbackNotes = callback.Notes

		at := voicemail.NewTime(fixedNow)
		rec.CallbackCompletedAt = &at

		if callback.Status == voicemail.CallbackSuccessful {
			rec.Status = voicemail.StatusActioned
		}
	})
}

func (b *fakeBackend) AcknowledgeEscalation(_ context.Context, voicemailID, by, key string) (*voicemail.Record, error) {
	return b.mutate(voicemailID, "ack", key, func(rec *voicemail.Record) {
		rec.EscalationAcknowledged = true
		rec.EscalationAcknowledgedBy = by
	})
}

func (b *fakeBackend) SendReminder(_ context.Context, voicemailID, key string) (*voicemail.ReminderResult, error) {
	rec, err := b.mutate(voicemailID, "reminder", key, func(rec *voicemail.Record) {
		rec.EscalationReminderCount++
	})
	if err != nil {
		return nil, err
	}

	return &voicemail.ReminderResult{Status: "reminder_sent", ReminderCount: rec.EscalationReminderCount}, nil
}

func (b *fakeBackend) SearchPMS(_ context.Context, system voicemail.PMSSystem, phone, _ string) (*voicemail.PMSSearchResponse, error) {
	return &voicemail.PMSSearchResponse{
		System:   system,
		Count:    1,
		Patients: []voicemail.PMSPatient{{PatientID: "BP-001", Name: "John Smith", Phone: phone}},
	}, nil
}

func (b *fakeBackend) LinkPMS(_ context.Context, voicemailID string, link voicemail.PMSLinkRequest, key string) (*voicemail.Record, error) {
	return b.mutate(voicemailID, "link", key, func(rec *voicemail.Record) {
		rec.PMSLinked = true
		rec.PMSSystem = link.System
		rec.PMSPatientID = link.PatientID
	})
}

func (b *fakeBackend) index(voicemailID string) int {
	return slices.IndexFunc(b.records, func(r voicemail.Record) bool { return r.VoicemailID == voicemailID })
}

func (b *fakeBackend) writeLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.writes)
}

type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{values: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	if !ok {
		return nil, offline.ErrStateNotFound
	}

	return value, nil
}

func (s *memStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)

	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) recorded() []audit.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.events)
}

type harness struct {
	backend   *fakeBackend
	store     *memStore
	notifier  *notify.Service
	publisher *recordingPublisher
	dashboard *Dashboard
}

func newHarness(t *testing.T, settings Settings, records ...voicemail.Record) *harness {
	t.Helper()

	h := &harness{
		backend:   newFakeBackend(records...),
		store:     newMemStore(),
		notifier:  notify.NewService(time.Minute),
		publisher: &recordingPublisher{},
	}

	t.Cleanup(h.notifier.Close)

	h.dashboard = h.build(settings)

	return h
}

// build creates a dashboard over the harness store, as a fresh process would.
func (h *harness) build(settings Settings) *Dashboard {
	ctx := context.Background()

	d := New(
		h.backend,
		offline.NewQueue(ctx, h.store),
		offline.NewCache(h.store, time.Hour),
		h.notifier,
		h.publisher,
		settings,
	)
	d.now = func() time.Time { return fixedNow }

	return d
}

func (h *harness) lastNotification() notify.Notification {
	active := h.notifier.Active()
	if len(active) == 0 {
		return notify.Notification{}
	}

	return active[len(active)-1]
}
