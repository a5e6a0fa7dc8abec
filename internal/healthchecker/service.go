package healthchecker

import (
	"context"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"go.uber.org/zap"
)

// Pinger probes the voicemail API.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Target is told about connectivity changes.
type Target interface {
	Online() bool
	SetOnline(ctx context.Context, online bool)
}

// Healthchecker flips the target offline when the backend breaker opens and
// probes until the backend answers again.
type Healthchecker struct {
	Pinger   Pinger
	Target   Target
	Signal   *circuitbreak.Signal
	Interval time.Duration

	ErrorService string
}

func NewService(pinger Pinger, target Target, signal *circuitbreak.Signal, interval time.Duration) *Healthchecker {
	return &Healthchecker{
		Pinger:   pinger,
		Target:   target,
		Signal:   signal,
		Interval: interval,
	}
}

func (h *Healthchecker) TriggerError(ctx context.Context, service string) {
	logging.Logger.Error("service error happened", zap.String("service", service))

	h.ErrorService = service
	h.Target.SetOnline(ctx, false)
}

// Monitor runs until ctx ends.
func (h *Healthchecker) Monitor(ctx context.Context) error {
	logging.Logger.Info("health checker monitor start successfully", zap.Duration("interval", h.Interval))

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case service := <-h.Signal.C():
			logging.Logger.Info("circuit break happened", zap.String("service", service))

			if service == circuitbreak.BackendService && h.Target.Online() {
				h.TriggerError(ctx, service)
			}
		case <-ticker.C:
			if h.Target.Online() {
				continue
			}

			if h.Check(ctx) {
				h.ErrorService = ""
				h.Target.SetOnline(ctx, true)
			}
		}
	}
}

// Check reports whether the backend answers a health probe.
func (h *Healthchecker) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, h.Interval)
	defer cancel()

	err := h.Pinger.Ping(probeCtx)
	if err != nil {
		logging.Logger.Info("backend still unreachable", zap.Error(err))
		return false
	}

	logging.Logger.Info(circuitbreak.BackendService + " service back healthy")

	return true
}
