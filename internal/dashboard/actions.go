package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/audit"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/offline"
	prometheusCallboard "git.mci.dev/mse/sre/phoenix/golang/callboard/internal/prometheus"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mutation is one user write. queue is nil for actions that cannot wait for
// connectivity.
type mutation struct {
	action      audit.Action
	voicemailID string
	actor       string
	detail      map[string]string
	apply       func(rec *voicemail.Record)
	queue       func(key string, now time.Time) (offline.QueuedAction, error)
	send        func(ctx context.Context, key string) (*voicemail.Record, error)
	success     string
	failure     string
}

func (d *Dashboard) MarkActioned(ctx context.Context, voicemailID string) (*voicemail.Record, error) {
	return d.SetStatus(ctx, voicemailID, voicemail.StatusActioned)
}

func (d *Dashboard) ReturnToPending(ctx context.Context, voicemailID string) (*voicemail.Record, error) {
	return d.SetStatus(ctx, voicemailID, voicemail.StatusPending)
}

func (d *Dashboard) Archive(ctx context.Context, voicemailID string) (*voicemail.Record, error) {
	return d.SetStatus(ctx, voicemailID, voicemail.StatusArchived)
}

func (d *Dashboard) SetStatus(ctx context.Context, voicemailID string, status voicemail.Status) (*voicemail.Record, error) {
	if !status.Valid() {
		return nil, d.invalid(fmt.Errorf("%w: %q", ErrUnknownStatus, status))
	}

	return d.dispatch(ctx, mutation{
		action:      audit.ActionStatusChange,
		voicemailID: voicemailID,
		detail:      map[string]string{"status": string(status)},
		apply: func(rec *voicemail.Record) {
			rec.Status = status
		},
		queue: func(key string, now time.Time) (offline.QueuedAction, error) {
			return offline.NewStatusChange(voicemailID, status, key, now)
		},
		send: func(ctx context.Context, key string) (*voicemail.Record, error) {
			return d.Backend.UpdateStatus(ctx, voicemailID, status, key)
		},
		success: "Marked as " + string(status),
		failure: "Failed to update status",
	})
}

// RecordCallback records a callback outcome. An empty By falls back to the
// configured staff name.
func (d *Dashboard) RecordCallback(
	ctx context.Context,
	voicemailID string,
	callback voicemail.CallbackRequest,
) (*voicemail.Record, error) {
	if !callback.Status.Recordable() {
		return nil, d.invalid(fmt.Errorf("%w: %q", ErrUnknownCallbackStatus, callback.Status))
	}

	callback.By = d.staff(callback.By)
	if callback.By == "" {
		return nil, d.invalid(ErrMissingStaffName)
	}

	return d.dispatch(ctx, mutation{
		action:      audit.ActionCallback,
		voicemailID: voicemailID,
		actor:       callback.By,
		detail:      map[string]string{"callback_status": string(callback.Status)},
		apply: func(rec *voicemail.Record) {
			applyCallback(rec, callback)
		},
		queue: func(key string, now time.Time) (offline.QueuedAction, error) {
			return offline.NewCallback(voicemailID, callback, key, now)
		},
		send: func(ctx context.Context, key string) (*voicemail.Record, error) {
			return d.Backend.RecordCallback(ctx, voicemailID, callback, key)
		},
		success: "Callback recorded",
		failure: "Failed to record callback",
	})
}

func (d *Dashboard) AcknowledgeEscalation(ctx context.Context, voicemailID string, by string) (*voicemail.Record, error) {
	by = d.staff(by)
	if by == "" {
		return nil, d.invalid(ErrMissingStaffName)
	}

	return d.dispatch(ctx, mutation{
		action:      audit.ActionAcknowledgeEscalation,
		voicemailID: voicemailID,
		actor:       by,
		apply: func(rec *voicemail.Record) {
			at := voicemail.NewTime(d.now())
			rec.EscalationAcknowledged = true
			rec.EscalationAcknowledgedBy = by
			rec.EscalationAcknowledgedAt = &at
		},
		send: func(ctx context.Context, key string) (*voicemail.Record, error) {
			return d.Backend.AcknowledgeEscalation(ctx, voicemailID, by, key)
		},
		success: "Escalation acknowledged",
		failure: "Failed to acknowledge escalation",
	})
}

func (d *Dashboard) LinkPMS(ctx context.Context, voicemailID string, link voicemail.PMSLinkRequest) (*voicemail.Record, error) {
	if !link.System.Valid() {
		return nil, d.invalid(fmt.Errorf("%w: %q", ErrUnknownPMSSystem, link.System))
	}

	link.PatientID = strings.TrimSpace(link.PatientID)
	if link.PatientID == "" {
		return nil, d.invalid(ErrMissingPatientID)
	}

	return d.dispatch(ctx, mutation{
		action:      audit.ActionLinkPMS,
		voicemailID: voicemailID,
		detail:      map[string]string{"pms_system": string(link.System), "pms_patient_id": link.PatientID},
		apply: func(rec *voicemail.Record) {
			rec.PMSLinked = true
			rec.PMSSystem = link.System
			rec.PMSPatientID = link.PatientID
		},
		send: func(ctx context.Context, key string) (*voicemail.Record, error) {
			return d.Backend.LinkPMS(ctx, voicemailID, link, key)
		},
		success: "Linked to PMS patient " + link.PatientID,
		failure: "Failed to link PMS patient",
	})
}

// SendReminder re-alerts staff about an unacknowledged escalation.
func (d *Dashboard) SendReminder(ctx context.Context, voicemailID string) (*voicemail.ReminderResult, error) {
	if voicemailID == "" {
		return nil, d.invalid(ErrMissingVoicemailID)
	}

	if !d.Online() {
		d.Notifier.Error("Reminders need a connection")
		return nil, ErrRequiresConnectivity
	}

	key := uuid.NewString()

	result, err := d.Backend.SendReminder(ctx, voicemailID, key)
	if err != nil {
		d.Notifier.Error("Failed to send reminder")
		return nil, err
	}

	d.mu.Lock()
	if rec, ok := d.find(voicemailID); ok {
		updated := rec.Clone()
		updated.EscalationReminderCount = result.ReminderCount
		d.replace(updated)
	}
	d.mu.Unlock()

	d.Notifier.Success(fmt.Sprintf("Reminder #%d sent", result.ReminderCount))

	event := audit.NewEvent(audit.ActionSendReminder, voicemailID, d.now())
	event.IdempotencyKey = key
	event.Detail = map[string]string{"reminder_count": fmt.Sprint(result.ReminderCount)}
	d.publish(ctx, event)

	return result, nil
}

// SearchPMS is read-only and never queued.
func (d *Dashboard) SearchPMS(
	ctx context.Context,
	system voicemail.PMSSystem,
	phone string,
	name string,
) ([]voicemail.PMSPatient, error) {
	if !system.Valid() {
		return nil, d.invalid(fmt.Errorf("%w: %q", ErrUnknownPMSSystem, system))
	}

	phone, name = strings.TrimSpace(phone), strings.TrimSpace(name)
	if phone == "" && name == "" {
		return nil, d.invalid(ErrMissingSearchTerm)
	}

	if !d.Online() {
		d.Notifier.Error("PMS search needs a connection")
		return nil, ErrRequiresConnectivity
	}

	resp, err := d.Backend.SearchPMS(ctx, system, phone, name)
	if err != nil {
		d.Notifier.Error("PMS search failed")
		return nil, err
	}

	if resp.Error != "" {
		d.Notifier.Error(resp.Error)
	}

	return resp.Matches(), nil
}

func (d *Dashboard) dispatch(ctx context.Context, m mutation) (*voicemail.Record, error) {
	if m.voicemailID == "" {
		return nil, d.invalid(ErrMissingVoicemailID)
	}

	if !d.Online() {
		return d.enqueue(ctx, m)
	}

	if m.queue != nil && d.Queue.Has(m.voicemailID) {
		if !d.drain(ctx, m.voicemailID) {
			return d.enqueue(ctx, m)
		}
	}

	key := uuid.NewString()
	token := d.begin(m)

	rec, err := m.send(ctx, key)
	if err != nil {
		d.rollback(m.voicemailID, token)

		logging.Logger.Error(m.failure, zap.String("voicemail_id", m.voicemailID), zap.Error(err))
		d.Notifier.Error(m.failure)

		return nil, err
	}

	d.confirm(m.voicemailID, token, rec)
	d.Notifier.Success(m.success)

	event := audit.NewEvent(m.action, m.voicemailID, d.now())
	event.Actor = m.actor
	event.Detail = m.detail
	event.IdempotencyKey = key
	d.publish(ctx, event)

	out := rec.Clone()

	return &out, nil
}

func (d *Dashboard) enqueue(ctx context.Context, m mutation) (*voicemail.Record, error) {
	if m.queue == nil {
		d.Notifier.Error(m.failure + ": needs a connection")
		return nil, ErrRequiresConnectivity
	}

	action, err := m.queue(uuid.NewString(), d.now())
	if err != nil {
		d.Notifier.Error(m.failure)
		return nil, err
	}

	d.Queue.Enqueue(ctx, action)

	d.mu.Lock()

	rec, ok := d.find(m.voicemailID)
	if !ok {
		d.mu.Unlock()

		d.Notifier.Info(fmt.Sprintf("Saved offline for %s, which is not in the current list; will sync when back online", m.voicemailID))

		return nil, ErrQueuedUnseen
	}

	updated := rec.Clone()
	m.apply(&updated)
	d.replace(updated)
	out := updated.Clone()
	d.mu.Unlock()

	d.Notifier.Info("Saved offline; will sync when back online")

	return &out, nil
}

// drain replays the queue so an older queued action for voicemailID cannot
// land after a newer online one. It reports whether the record's queued
// actions are gone.
func (d *Dashboard) drain(ctx context.Context, voicemailID string) bool {
	_, err := d.Sync(ctx)
	if err != nil {
		logging.Logger.Warn("sync before write failed", zap.String("voicemail_id", voicemailID), zap.Error(err))
	}

	return d.Online() && !d.Queue.Has(voicemailID)
}

// begin applies the optimistic change and returns the token that identifies
// this write.
func (d *Dashboard) begin(m mutation) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tokenSeq++
	token := d.tokenSeq

	rec, ok := d.find(m.voicemailID)
	if !ok {
		d.pending[m.voicemailID] = pendingMutation{token: token}
		return token
	}

	d.pending[m.voicemailID] = pendingMutation{token: token, snapshot: rec.Clone(), known: true}

	updated := rec.Clone()
	m.apply(&updated)
	d.replace(updated)

	return token
}

// confirm replaces the record with the server's copy, unless a newer write
// for the same record has started since.
func (d *Dashboard) confirm(voicemailID string, token uint64, rec *voicemail.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[voicemailID]
	if ok && p.token != token {
		return
	}

	delete(d.pending, voicemailID)
	d.replace(rec.Clone())
}

// rollback restores the pre-write snapshot if token is still the latest
// write for the record.
func (d *Dashboard) rollback(voicemailID string, token uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[voicemailID]
	if !ok || p.token != token {
		return
	}

	delete(d.pending, voicemailID)

	if !p.known {
		return
	}

	d.replace(p.snapshot)
	prometheusCallboard.OptimisticRollback.Inc()

	logging.Logger.Info("restored record after failed write", zap.String("voicemail_id", voicemailID))
}

func (d *Dashboard) invalid(err error) error {
	err = fmt.Errorf("%w: %w", ErrValidation, err)
	d.Notifier.Error(err.Error())

	return err
}

func (d *Dashboard) staff(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return strings.TrimSpace(d.settings.StaffName)
	}

	return name
}

func (d *Dashboard) publish(ctx context.Context, event audit.Event) {
	err := d.Publisher.Publish(ctx, event)
	if err != nil {
		logging.Logger.Warn("failed to publish audit event",
			zap.String("voicemail_id", event.VoicemailID),
			zap.String("action", string(event.Action)),
			zap.Error(err),
		)
	}
}

func applyCallback(rec *voicemail.Record, callback voicemail.CallbackRequest) {
	rec.CallbackStatus = callback.Status
	rec.CallbackBy = callback.By
	rec.CallbackNotes = callback.Notes

	if callback.Status == voicemail.CallbackSuccessful {
		rec.Status = voicemail.StatusActioned
	}
}

// applyQueued shows a queued action on rec.
func applyQueued(rec *voicemail.Record, action *offline.QueuedAction) error {
	switch action.Type {
	case offline.ActionStatusChange:
		update, err := action.StatusUpdate()
		if err != nil {
			return err
		}

		rec.Status = update.Status
	case offline.ActionCallback:
		callback, err := action.Callback()
		if err != nil {
			return err
		}

		applyCallback(rec, callback)
	default:
		return fmt.Errorf("%w: %s", offline.ErrUnknownActionType, action.Type)
	}

	return nil
}
