package notify

import (
	"slices"
	"sync"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	prometheusCallboard "git.mci.dev/mse/sre/phoenix/golang/callboard/internal/prometheus"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service is the notification queue shown to staff. Entries remove themselves
// after the configured TTL.
type Service struct {
	ttl time.Duration
	now func() time.Time

	mu          sync.Mutex
	active      []Notification
	timers      map[string]*time.Timer
	subscribers []func(Notification)
	closed      bool
}

func NewService(ttl time.Duration) *Service {
	return &Service{
		ttl:    ttl,
		now:    time.Now,
		timers: map[string]*time.Timer{},
	}
}

func (s *Service) Success(message string) string {
	return s.Push(KindSuccess, message)
}

func (s *Service) Error(message string) string {
	return s.Push(KindError, message)
}

func (s *Service) Info(message string) string {
	return s.Push(KindInfo, message)
}

// Push queues a notification and returns its id.
func (s *Service) Push(kind Kind, message string) string {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return n.ID
	}

	s.active = append(s.active, n)
	s.timers[n.ID] = time.AfterFunc(s.ttl, func() { s.Dismiss(n.ID) })
	subscribers := slices.Clone(s.subscribers)

	s.mu.Unlock()

	prometheusCallboard.Notifications.WithLabelValues(string(kind)).Inc()
	logging.Logger.Debug("notification", zap.String("kind", string(kind)), zap.String("message", message))

	for _, subscriber := range subscribers {
		subscriber(n)
	}

	return n.ID
}

// Dismiss removes a notification early. Unknown ids are ignored.
func (s *Service) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}

	s.active = slices.DeleteFunc(s.active, func(n Notification) bool { return n.ID == id })
}

// Active returns the notifications still on screen, oldest first.
func (s *Service) Active() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.active)
}

// Subscribe registers fn to be called for every later notification.
func (s *Service) Subscribe(fn func(Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

// Close stops pending removals and drops further pushes.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}

	s.active = nil
	s.closed = true
}
