package utils

import (
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending migrations from dir against databaseURL.
// databaseURL must be a postgres:// URL; it contains secrets and must not be logged.
func RunMigrations(databaseURL, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}

	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
