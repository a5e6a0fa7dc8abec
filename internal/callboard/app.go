package callboard

import (
	"context"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/audit"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/backend"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/dashboard"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/database"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/healthchecker"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/notify"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/offline"
	prometheusCallboard "git.mci.dev/mse/sre/phoenix/golang/callboard/internal/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Options override configuration for a single invocation.
type Options struct {
	ForcedOffline bool
	StaffName     string
}

type Callboard struct {
	DBConn               *gorm.DB
	BackendClient        *backend.Client
	Repository           *offline.Repository
	Queue                *offline.Queue
	Cache                *offline.Cache
	Notifier             *notify.Service
	Publisher            audit.Publisher
	Dashboard            *dashboard.Dashboard
	Dispatcher           *dashboard.Dispatcher
	HealthCheckerService *healthchecker.Healthchecker
	Signal               *circuitbreak.Signal
}

func NewApp(ctx context.Context, opts Options) (*Callboard, error) {
	logging.Logger.Info("[NewApp] Initializing callboard application...")

	signal := circuitbreak.NewSignal()
	probeInterval := seconds(config.Conf.ConnectivityProbeInterval)

	backendClient, err := backend.NewClient(backend.Settings{
		BaseURL:         config.Conf.BackendBaseURL,
		Timeout:         seconds(config.Conf.BackendTimeout),
		RetryAttempts:   config.Conf.BackendRetryMaxAttempts,
		RetryMinBackoff: seconds(config.Conf.BackendRetryMinBackoff),
		RetryMaxBackoff: seconds(config.Conf.BackendRetryMaxBackoff),
		Breaker: circuitbreak.Settings{
			Interval:            seconds(int(config.Conf.BackendIntervalCB)),
			Timeout:             probeInterval,
			ConsecutiveFailures: config.Conf.BackendConsecutiveFailuresCB,
		},
		Signal: signal,
	})
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create voicemail api client", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Voicemail api client created", zap.String("base_url", config.Conf.BackendBaseURL))

	dbConn, err := database.NewDatabase(config.Conf.StorePath)
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to initialize local store", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Local store opened", zap.String("path", config.Conf.StorePath))

	app := &Callboard{
		DBConn:        dbConn,
		BackendClient: backendClient,
		Signal:        signal,
	}

	app.Repository = offline.NewRepository(dbConn, circuitbreak.Settings{
		Interval:            seconds(int(config.Conf.StoreIntervalCB)),
		ConsecutiveFailures: config.Conf.StoreConsecutiveFailuresCB,
	}, signal)

	app.Queue = offline.NewQueue(ctx, app.Repository)
	app.Cache = offline.NewCache(app.Repository, seconds(config.Conf.CacheTTL))

	logging.Logger.Info("[NewApp] Offline queue restored", zap.Int("pending", app.Queue.Len()))

	app.Notifier = notify.NewService(seconds(config.Conf.NotificationTTL))

	app.Publisher, err = newPublisher(signal)
	if err != nil {
		app.Close()
		return nil, err
	}

	staffName := opts.StaffName
	if staffName == "" {
		staffName = config.Conf.StaffName
	}

	app.Dashboard = dashboard.New(backendClient, app.Queue, app.Cache, app.Notifier, app.Publisher, dashboard.Settings{
		PageSize:      config.Conf.BackendPageSize,
		StaffName:     staffName,
		ForcedOffline: opts.ForcedOffline,
	})

	logging.Logger.Info("[NewApp] Creating dispatcher",
		zap.Int("pool_size", config.Conf.DispatchPoolSize),
	)

	app.Dispatcher, err = dashboard.NewDispatcher(config.Conf.DispatchPoolSize)
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create dispatcher", zap.Error(err))
		app.Close()

		return nil, err
	}

	app.HealthCheckerService = healthchecker.NewService(backendClient, app.Dashboard, signal, probeInterval)

	logging.Logger.Info("[NewApp] Health checker service created")

	return app, nil
}

// newPublisher returns a no-op publisher while no Kafka bootstrap server is
// configured.
func newPublisher(signal *circuitbreak.Signal) (audit.Publisher, error) {
	if config.Conf.KafkaBootstrapServer == "" {
		logging.Logger.Info("[NewApp] Audit stream disabled")
		return audit.Noop{}, nil
	}

	logging.Logger.Info("[NewApp] Creating audit producer...")

	producer, err := audit.NewProducer(audit.Settings{
		BootstrapServer: config.Conf.KafkaBootstrapServer,
		Username:        config.Conf.KafkaUsername,
		Password:        config.Conf.KafkaPassword,
		Topic:           config.Conf.KafkaAuditTopic,
		Breaker: circuitbreak.Settings{
			Interval:            seconds(int(config.Conf.KafkaIntervalCB)),
			ConsecutiveFailures: config.Conf.KafkaConsecutiveFailuresCB,
		},
		Signal: signal,
	})
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create audit producer", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Audit producer created", zap.String("topic", config.Conf.KafkaAuditTopic))

	return producer, nil
}

// Run keeps the dashboard live until ctx ends: metrics endpoint, connectivity
// monitor and periodic refresh.
func (app *Callboard) Run(ctx context.Context) error {
	logging.Logger.Info("[Run] Starting app goroutines...")

	g, ctx := errgroup.WithContext(ctx)

	if config.Conf.PrometheusPort != "" {
		g.Go(func() error {
			return prometheusCallboard.Run(ctx, config.Conf.PrometheusPort, seconds(config.Conf.PrometheusTimeout))
		})
	}

	g.Go(func() error {
		return app.HealthCheckerService.Monitor(ctx)
	})

	g.Go(func() error {
		app.refreshLoop(ctx, seconds(config.Conf.RefreshInterval))
		return nil
	})

	return g.Wait()
}

// Close releases everything NewApp opened. It also tears down an app that
// NewApp only partly built.
func (app *Callboard) Close() {
	if app.Dispatcher != nil {
		logging.Logger.Info("[Close] Releasing dispatcher...",
			zap.Int("running_workers", app.Dispatcher.Running()),
		)
		app.Dispatcher.Release()
	}

	if app.Publisher != nil {
		err := app.Publisher.Close()
		if err != nil {
			logging.Logger.Error("[Close] Failed to close audit publisher", zap.Error(err))
		}
	}

	if app.Notifier != nil {
		app.Notifier.Close()
	}

	sqlDB, err := app.DBConn.DB()
	if err == nil {
		err = sqlDB.Close()
	}

	if err != nil {
		logging.Logger.Error("[Close] Failed to close local store", zap.Error(err))
	}

	logging.Logger.Info("[Close] ===== App shutdown complete =====")
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
