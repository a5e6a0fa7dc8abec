package dashboard

import (
	"context"
	"fmt"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/audit"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/backend"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/offline"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"go.uber.org/zap"
)

// Sync replays the offline queue and then refetches the full list so local
// state matches the server again. Actions the backend could not be reached
// for stay queued for the next sync; idempotency keys make the resend safe.
func (d *Dashboard) Sync(ctx context.Context) (offline.ReplayReport, error) {
	report, err := d.Queue.Replay(ctx, offline.SenderFunc(d.replay))
	if err != nil {
		return report, err
	}

	switch {
	case report.Failed > 0:
		d.Notifier.Error(fmt.Sprintf("%d of %d offline actions failed to sync", report.Failed, report.Attempted))
	case report.Attempted > 0:
		d.Notifier.Success(fmt.Sprintf("Synced %d offline actions", report.Attempted))
	}

	if report.Remaining > 0 {
		d.Notifier.Info(fmt.Sprintf("%d offline actions still waiting to sync", report.Remaining))
	}

	return report, d.Refresh(ctx)
}

func (d *Dashboard) replay(ctx context.Context, action offline.QueuedAction) error {
	var (
		rec    *voicemail.Record
		event  audit.Event
		err    error
		detail map[string]string
	)

	switch action.Type {
	case offline.ActionStatusChange:
		var update voicemail.StatusUpdate

		update, err = action.StatusUpdate()
		if err != nil {
			return err
		}

		rec, err = d.Backend.UpdateStatus(ctx, action.VoicemailID, update.Status, action.IdempotencyKey)
		event = audit.NewEvent(audit.ActionStatusChange, action.VoicemailID, d.now())
		detail = map[string]string{"status": string(update.Status)}
	case offline.ActionCallback:
		var callback voicemail.CallbackRequest

		callback, err = action.Callback()
		if err != nil {
			return err
		}

		rec, err = d.Backend.RecordCallback(ctx, action.VoicemailID, callback, action.IdempotencyKey)
		event = audit.NewEvent(audit.ActionCallback, action.VoicemailID, d.now())
		event.Actor = callback.By
		detail = map[string]string{"callback_status": string(callback.Status)}
	default:
		return fmt.Errorf("%w: %s", offline.ErrUnknownActionType, action.Type)
	}

	if backend.Unavailable(err) {
		return fmt.Errorf("%w: %w", offline.ErrNotSent, err)
	}

	if err != nil {
		return err
	}

	logging.Logger.Info("replayed offline action",
		zap.String("voicemail_id", action.VoicemailID),
		zap.String("type", string(action.Type)),
	)

	d.mu.Lock()
	if _, ok := d.find(rec.VoicemailID); ok {
		d.replace(rec.Clone())
	}
	d.mu.Unlock()

	event.Detail = detail
	event.IdempotencyKey = action.IdempotencyKey
	event.Replayed = true
	d.publish(ctx, event)

	return nil
}
