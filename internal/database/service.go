package database

import (
	"embed"
	"errors"
	"fmt"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsDir = "migrations"

// NewDatabase opens the local SQLite store at path and brings its schema up to
// date.
func NewDatabase(path string) (*gorm.DB, error) {
	gormLoggerInstance := gormLogger.Default.LogMode(gormLogger.Silent)

	database, err := gorm.Open(sqlite.Open(GetDSN(path)), &gorm.Config{
		Logger: gormLoggerInstance,
	})
	if err != nil {
		logging.Logger.Error("Failed to open local store", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	sqldatabase, err := database.DB()
	if err != nil {
		logging.Logger.Error("Failed to get sql.database from GORM", zap.Error(err))
		return nil, err
	}

	// SQLite allows a single writer.
	sqldatabase.SetMaxOpenConns(1)

	err = sqldatabase.Ping()
	if err != nil {
		logging.Logger.Error("Failed to ping local store", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	err = Migrate(database)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("Local store ready", zap.String("path", path))

	return database, nil
}

// Migrate applies the embedded migrations. The migrator shares the gorm
// connection and is not closed here, since closing it would close the pool.
func Migrate(database *gorm.DB) error {
	sqldatabase, err := database.DB()
	if err != nil {
		return err
	}

	driver, err := sqlite3.WithInstance(sqldatabase, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlite3 migration driver: %w", err)
	}

	source, err := iofs.New(migrationFS, migrationsDir)
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	err = migrator.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logging.Logger.Error("Failed to migrate local store", zap.Error(err))
		return err
	}

	return nil
}

// NewMigrator returns a standalone migrator for the store at path.
func NewMigrator(path string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	return migrate.NewWithSourceInstance("iofs", source, GetURL(path))
}

func GetDSN(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func GetURL(path string) string {
	return "sqlite3://" + path
}

func GetCircuitBreakerSettings(settings circuitbreak.Settings, signal *circuitbreak.Signal) gobreaker.Settings {
	return circuitbreak.NewSettings(circuitbreak.StoreService, settings, signal)
}
