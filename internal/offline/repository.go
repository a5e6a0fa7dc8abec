package offline

import (
	"context"
	"errors"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/database"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrStateNotFound = errors.New("local state not found")

// Store keeps opaque blobs under fixed keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Repository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[[]byte]
}

func NewRepository(dbConn *gorm.DB, settings circuitbreak.Settings, signal *circuitbreak.Signal) *Repository {
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrStateNotFound)
	}

	return &Repository{
		DBConn:         dbConn,
		CircuitBreaker: gobreaker.NewCircuitBreaker[[]byte](database.GetCircuitBreakerSettings(settings, signal)),
	}
}

func (repo *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	return repo.CircuitBreaker.Execute(func() ([]byte, error) {
		var state LocalState

		err := repo.DBConn.WithContext(ctx).
			Where(&LocalState{Key: key}).
			First(&state).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStateNotFound
		}

		if err != nil {
			logging.Logger.Error("failed to read local state", zap.String("key", key), zap.Error(err))
			return nil, err
		}

		return []byte(state.Value), nil
	})
}

func (repo *Repository) Put(ctx context.Context, key string, value []byte) error {
	_, err := repo.CircuitBreaker.Execute(func() ([]byte, error) {
		now := time.Now().UTC()
		state := LocalState{Key: key, Value: value, UpdatedAt: now}

		err := repo.DBConn.WithContext(ctx).
			Where(&LocalState{Key: key}).
			Assign(map[string]any{
				"value":      datatypes.JSON(value),
				"updated_at": now,
			}).
			FirstOrCreate(&state).Error
		if err != nil {
			logging.Logger.Error("failed to write local state", zap.String("key", key), zap.Error(err))
			return nil, err
		}

		return nil, nil
	})

	return err
}

func (repo *Repository) Delete(ctx context.Context, key string) error {
	_, err := repo.CircuitBreaker.Execute(func() ([]byte, error) {
		err := repo.DBConn.WithContext(ctx).
			Where(&LocalState{Key: key}).
			Delete(&LocalState{}).
			Error

		return nil, err
	})

	return err
}
