package dashboard

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/audit"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/backend"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/notify"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/offline"
	prometheusCallboard "git.mci.dev/mse/sre/phoenix/golang/callboard/internal/prometheus"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/triage"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"go.uber.org/zap"
)

// Backend is the part of the voicemail API the dashboard drives.
type Backend interface {
	List(ctx context.Context, q voicemail.ListQuery) (*voicemail.ListResponse, error)
	Get(ctx context.Context, voicemailID string) (*voicemail.Record, error)
	UpdateStatus(ctx context.Context, voicemailID string, status voicemail.Status, key string) (*voicemail.Record, error)
	RecordCallback(ctx context.Context, voicemailID string, callback voicemail.CallbackRequest, key string) (*voicemail.Record, error)
	AcknowledgeEscalation(ctx context.Context, voicemailID string, by string, key string) (*voicemail.Record, error)
	SendReminder(ctx context.Context, voicemailID string, key string) (*voicemail.ReminderResult, error)
	SearchPMS(ctx context.Context, system voicemail.PMSSystem, phone, name string) (*voicemail.PMSSearchResponse, error)
	LinkPMS(ctx context.Context, voicemailID string, link voicemail.PMSLinkRequest, key string) (*voicemail.Record, error)
}

type Settings struct {
	PageSize  int
	StaffName string
	// ForcedOffline queues every queueable action and never fetches.
	ForcedOffline bool
}

// ReadState describes where the current record list came from.
type ReadState struct {
	Err       error
	FromCache bool
	FetchedAt time.Time
}

// pendingMutation is the reconciliation token of an in-flight write.
type pendingMutation struct {
	token    uint64
	snapshot voicemail.Record
	known    bool
}

// Dashboard owns the client's copy of the voicemail list. Every change to
// the list happens under mu as a whole-record replace by voicemail id.
type Dashboard struct {
	Backend   Backend
	Queue     *offline.Queue
	Cache     *offline.Cache
	Notifier  *notify.Service
	Publisher audit.Publisher

	settings Settings
	now      func() time.Time

	mu         sync.Mutex
	records    []voicemail.Record
	filter     voicemail.FilterState
	readState  ReadState
	online     bool
	issuedSeq  uint64
	appliedSeq uint64
	tokenSeq   uint64
	pending    map[string]pendingMutation
}

func New(
	backendClient Backend,
	queue *offline.Queue,
	cache *offline.Cache,
	notifier *notify.Service,
	publisher audit.Publisher,
	settings Settings,
) *Dashboard {
	if publisher == nil {
		publisher = audit.Noop{}
	}

	d := &Dashboard{
		Backend:   backendClient,
		Queue:     queue,
		Cache:     cache,
		Notifier:  notifier,
		Publisher: publisher,
		settings:  settings,
		now:       time.Now,
		online:    !settings.ForcedOffline,
		filter:    voicemail.FilterState{HideOldActioned: true},
		pending:   map[string]pendingMutation{},
	}

	d.setOnlineGauge(d.online)

	return d
}

// Load shows the cached snapshot when one is still valid, then fetches.
func (d *Dashboard) Load(ctx context.Context) error {
	records, savedAt, ok := d.Cache.Load(ctx, d.now())
	if ok {
		d.mu.Lock()
		if d.appliedSeq == 0 {
			d.records = d.overlayQueued(cloneRecords(records))
			d.readState = ReadState{FromCache: true, FetchedAt: savedAt}
		}
		d.mu.Unlock()

		logging.Logger.Info("showing cached voicemails",
			zap.Int("records", len(records)),
			zap.Time("saved_at", savedAt),
		)
	}

	if d.settings.ForcedOffline {
		if !ok {
			d.mu.Lock()
			d.readState.Err = ErrRequiresConnectivity
			d.mu.Unlock()

			return ErrRequiresConnectivity
		}

		return nil
	}

	// Actions left by an earlier offline session go out before anything new.
	if d.Online() && d.Queue.Len() > 0 {
		_, err := d.Sync(ctx)
		if !errors.Is(err, offline.ErrReplayInProgress) {
			return err
		}
	}

	return d.Refresh(ctx)
}

// SetFilter changes the server-side filter used by later refreshes.
func (d *Dashboard) SetFilter(filter voicemail.FilterState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter = filter
}

func (d *Dashboard) Filter() voicemail.FilterState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.filter
}

// Refresh fetches the list with the current filter. Responses that arrive
// after a newer fetch has already been applied are dropped.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.Lock()
	d.issuedSeq++
	seq := d.issuedSeq
	query := voicemail.ListQuery{FilterState: d.filter, PageSize: d.settings.PageSize}
	d.mu.Unlock()

	resp, err := d.Backend.List(ctx, query)

	d.mu.Lock()

	if seq < d.appliedSeq {
		d.mu.Unlock()

		prometheusCallboard.StaleFetchDiscarded.Inc()
		logging.Logger.Debug("discarding stale fetch", zap.Uint64("seq", seq))

		return nil
	}

	if err != nil {
		d.readState.Err = err
		d.mu.Unlock()

		logging.Logger.Error("failed to load voicemails", zap.Error(err))

		if backend.Unavailable(err) {
			d.SetOnline(ctx, false)
		}

		return err
	}

	d.appliedSeq = seq
	d.records = d.mergeFetched(resp.Items)
	fetchedAt := d.now()
	d.readState = ReadState{FetchedAt: fetchedAt}
	snapshot := cloneRecords(resp.Items)
	d.mu.Unlock()

	d.Cache.Save(ctx, snapshot, fetchedAt)

	return nil
}

// mergeFetched keeps the optimistic copy of any record with a write in flight
// and re-applies queued offline actions on top of the server state.
func (d *Dashboard) mergeFetched(fetched []voicemail.Record) []voicemail.Record {
	merged := cloneRecords(fetched)

	for i := range merged {
		id := merged[i].VoicemailID

		p, ok := d.pending[id]
		if !ok {
			continue
		}

		p.snapshot = merged[i].Clone()
		p.known = true
		d.pending[id] = p

		if current, found := d.find(id); found {
			merged[i] = current.Clone()
		}
	}

	return d.overlayQueued(merged)
}

func (d *Dashboard) overlayQueued(records []voicemail.Record) []voicemail.Record {
	if d.Queue == nil {
		return records
	}

	for _, action := range d.Queue.Pending() {
		idx := slices.IndexFunc(records, func(r voicemail.Record) bool { return r.VoicemailID == action.VoicemailID })
		if idx < 0 {
			continue
		}

		err := applyQueued(&records[idx], &action)
		if err != nil {
			logging.Logger.Warn("cannot show queued action", zap.String("voicemail_id", action.VoicemailID), zap.Error(err))
		}
	}

	return records
}

func (d *Dashboard) ReadState() ReadState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.readState
}

// LoadError is non-nil while the last fetch failed; callers show a retry view.
func (d *Dashboard) LoadError() error {
	return d.ReadState().Err
}

func (d *Dashboard) Records() []voicemail.Record {
	d.mu.Lock()
	defer d.mu.Unlock()

	return cloneRecords(d.records)
}

func (d *Dashboard) Record(voicemailID string) (voicemail.Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.find(voicemailID)
	if !ok {
		return voicemail.Record{}, false
	}

	return rec.Clone(), true
}

func (d *Dashboard) View(criteria triage.Criteria) []voicemail.Record {
	return triage.View(d.Records(), criteria)
}

func (d *Dashboard) Counts() map[triage.Category]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return triage.Counts(d.records)
}

func (d *Dashboard) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.online
}

// SetOnline records a connectivity change. Coming back online replays the
// offline queue and refetches.
func (d *Dashboard) SetOnline(ctx context.Context, online bool) {
	d.mu.Lock()

	if online && d.settings.ForcedOffline {
		d.mu.Unlock()
		return
	}

	previous := d.online
	d.online = online
	d.mu.Unlock()

	if previous == online {
		return
	}

	d.setOnlineGauge(online)

	if !online {
		logging.Logger.Warn("voicemail api unreachable, switching to offline mode")
		d.Notifier.Info("Offline: changes will be saved and synced later")

		return
	}

	logging.Logger.Info("voicemail api reachable again")
	d.Notifier.Info("Back online")

	_, err := d.Sync(ctx)
	if err != nil && !errors.Is(err, offline.ErrReplayInProgress) {
		logging.Logger.Error("sync after reconnect failed", zap.Error(err))
	}
}

func (d *Dashboard) setOnlineGauge(online bool) {
	if online {
		prometheusCallboard.ConnectivityOnline.Set(1)
	} else {
		prometheusCallboard.ConnectivityOnline.Set(0)
	}
}

// find must be called with mu held.
func (d *Dashboard) find(voicemailID string) (*voicemail.Record, bool) {
	for i := range d.records {
		if d.records[i].VoicemailID == voicemailID {
			return &d.records[i], true
		}
	}

	return nil, false
}

// replace must be called with mu held.
func (d *Dashboard) replace(rec voicemail.Record) {
	for i := range d.records {
		if d.records[i].VoicemailID == rec.VoicemailID {
			d.records[i] = rec
			return
		}
	}

	d.records = append(d.records, rec)
}

func cloneRecords(records []voicemail.Record) []voicemail.Record {
	if records == nil {
		return nil
	}

	out := make([]voicemail.Record, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}

	return out
}
