package circuitbreak

import (
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	BackendService       = "backend"
	StoreService         = "store"
	KafkaProducerService = "kafka_producer"
)

const signalBuffer = 8

// Signal carries the name of a service whose breaker just opened.
type Signal struct {
	ch chan string
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan string, signalBuffer)}
}

// C is nil-safe so components can be built without a listener.
func (s *Signal) C() <-chan string {
	if s == nil {
		return nil
	}

	return s.ch
}

// TriggerError never blocks the caller; a full buffer drops the event.
func (s *Signal) TriggerError(service string) {
	if s == nil {
		return
	}

	select {
	case s.ch <- service:
	default:
		logging.Logger.Warn("circuit break signal dropped", zap.String("service", service))
	}
}

type Settings struct {
	Interval time.Duration
	// Timeout is how long an open breaker waits before letting a probe through.
	Timeout             time.Duration
	ConsecutiveFailures uint32
	IsSuccessful        func(err error) bool
}

// NewSettings builds breaker settings that log state changes and report open
// breakers on signal.
func NewSettings(service string, settings Settings, signal *Signal) gobreaker.Settings {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}

	return gobreaker.Settings{
		Name:     service,
		Interval: settings.Interval,
		Timeout:  settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, fromState, toState gobreaker.State) {
			logging.Logger.Warn("Circuit state changed",
				zap.String("service", name),
				zap.String("from", fromState.String()),
				zap.String("to", toState.String()),
			)

			if toState == gobreaker.StateOpen {
				signal.TriggerError(service)
			}
		},
		IsSuccessful: settings.IsSuccessful,
	}
}
