package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionStatusChange          Action = "status_change"
	ActionCallback              Action = "callback"
	ActionAcknowledgeEscalation Action = "acknowledge_escalation"
	ActionLinkPMS               Action = "link_pms"
	ActionSendReminder          Action = "send_reminder"
)

// Event records one action the backend confirmed.
type Event struct {
	ID             string            `json:"id"`
	Action         Action            `json:"action"`
	VoicemailID    string            `json:"voicemail_id"`
	Actor          string            `json:"actor,omitempty"`
	Detail         map[string]string `json:"detail,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Replayed       bool              `json:"replayed"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func NewEvent(action Action, voicemailID string, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Action:      action,
		VoicemailID: voicemailID,
		OccurredAt:  at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop is used when no audit stream is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

func (Noop) Close() error { return nil }
