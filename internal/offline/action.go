package offline

import (
	"errors"
	"fmt"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type ActionType string

// Only these mutations may wait for connectivity.
const (
	ActionStatusChange ActionType = "status_change"
	ActionCallback     ActionType = "callback"
)

var ErrUnknownActionType = errors.New("unknown queued action type")

type QueuedAction struct {
	ID             string          `json:"id"`
	Type           ActionType      `json:"type"`
	VoicemailID    string          `json:"voicemail_id"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key"`
	EnqueuedAt     time.Time       `json:"enqueued_at"`
}

func NewStatusChange(voicemailID string, status voicemail.Status, idempotencyKey string, now time.Time) (QueuedAction, error) {
	return newAction(ActionStatusChange, voicemailID, voicemail.StatusUpdate{Status: status}, idempotencyKey, now)
}

func NewCallback(
	voicemailID string,
	callback voicemail.CallbackRequest,
	idempotencyKey string,
	now time.Time,
) (QueuedAction, error) {
	return newAction(ActionCallback, voicemailID, callback, idempotencyKey, now)
}

func newAction(kind ActionType, voicemailID string, payload any, idempotencyKey string, now time.Time) (QueuedAction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return QueuedAction{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	return QueuedAction{
		ID:             uuid.NewString(),
		Type:           kind,
		VoicemailID:    voicemailID,
		Payload:        raw,
		IdempotencyKey: idempotencyKey,
		EnqueuedAt:     now.UTC(),
	}, nil
}

func (a *QueuedAction) StatusUpdate() (voicemail.StatusUpdate, error) {
	var update voicemail.StatusUpdate

	if a.Type != ActionStatusChange {
		return update, fmt.Errorf("%w: %s is not a status change", ErrUnknownActionType, a.Type)
	}

	err := json.Unmarshal(a.Payload, &update)

	return update, err
}

func (a *QueuedAction) Callback() (voicemail.CallbackRequest, error) {
	var callback voicemail.CallbackRequest

	if a.Type != ActionCallback {
		return callback, fmt.Errorf("%w: %s is not a callback", ErrUnknownActionType, a.Type)
	}

	err := json.Unmarshal(a.Payload, &callback)

	return callback, err
}
