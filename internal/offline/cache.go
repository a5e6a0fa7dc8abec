package offline

import (
	"context"
	"errors"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type snapshot struct {
	SavedAt time.Time          `json:"saved_at"`
	Records []voicemail.Record `json:"records"`
}

// Cache keeps the last fetched record set so a previous view can be shown
// while offline or before the first fetch returns.
type Cache struct {
	store Store
	ttl   time.Duration
}

func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

func (c *Cache) Save(ctx context.Context, records []voicemail.Record, at time.Time) {
	raw, err := json.Marshal(snapshot{SavedAt: at.UTC(), Records: records})
	if err != nil {
		logging.Logger.Error("failed to encode record cache", zap.Error(err))
		return
	}

	err = c.store.Put(ctx, CacheKey, raw)
	if err != nil {
		logging.Logger.Error("failed to save record cache", zap.Error(err))
	}
}

// Load returns the cached records and when they were fetched. ok is false when
// nothing usable is stored or the snapshot is older than the TTL.
func (c *Cache) Load(ctx context.Context, now time.Time) ([]voicemail.Record, time.Time, bool) {
	raw, err := c.store.Get(ctx, CacheKey)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			logging.Logger.Warn("failed to read record cache", zap.Error(err))
		}

		return nil, time.Time{}, false
	}

	var snap snapshot

	err = json.Unmarshal(raw, &snap)
	if err != nil || snap.SavedAt.IsZero() {
		logging.Logger.Warn("ignoring unreadable record cache", zap.Error(err))
		return nil, time.Time{}, false
	}

	if now.Sub(snap.SavedAt) > c.ttl {
		return nil, snap.SavedAt, false
	}

	return snap.Records, snap.SavedAt, true
}

func (c *Cache) Clear(ctx context.Context) {
	err := c.store.Delete(ctx, CacheKey)
	if err != nil {
		logging.Logger.Error("failed to clear record cache", zap.Error(err))
	}
}
