package repository

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

//go:embed migrations
var migrations embed.FS

// migrationsDir returns the embedded directory with the migrations of a driver.
func migrationsDir(driver string) string {
	return "migrations/" + driver
}

// Migrate applies all up migrations of the connection's dialect.
func Migrate(db *sqlx.DB) error {
	driver := db.DriverName()

	var (
		target database.Driver
		err    error
	)
	switch driver {
	case DriverMySQL:
		target, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	case DriverPostgres:
		target, err = migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	default:
		return fmt.Errorf("unsupported sql driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize %s migration driver: %w", driver, err)
	}

	source, err := iofs.New(migrations, migrationsDir(driver))
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, target)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	fromVer, _, _ := m.Version()
	start := time.Now()
	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logrus.Infof("Database schema is up to date at version %d", fromVer)
			return nil
		}
		logrus.WithError(err).Error("Migration failed")
		return fmt.Errorf("migration execution failed: %w", err)
	}

	toVer, _, _ := m.Version()
	logrus.WithFields(logrus.Fields{
		"from_ver": fromVer,
		"to_ver":   toVer,
		"duration": time.Since(start),
	}).Info("Migrations applied")
	return nil
}
