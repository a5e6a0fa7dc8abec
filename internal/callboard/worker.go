package callboard

import (
	"context"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"go.uber.org/zap"
)

// refreshLoop refetches the list every interval while online. A refresh still
// in flight when the next tick fires is left to finish; the newer response wins.
func (app *Callboard) refreshLoop(ctx context.Context, interval time.Duration) {
	logging.Logger.Info("[Run] Starting refresh loop", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !app.Dashboard.Online() {
				continue
			}

			result := app.Dispatcher.Submit(ctx, app.Dashboard.Refresh)

			go func() {
				err := <-result
				if err != nil {
					logging.Logger.Warn("periodic refresh failed", zap.Error(err))
				}
			}()
		}
	}
}
