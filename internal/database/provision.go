package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotProvisioned is returned by Open when the reservation tables are missing.
	ErrNotProvisioned = errors.New("database does not exist")
	// ErrAlreadyProvisioned is returned by Provision when the reservation tables exist.
	ErrAlreadyProvisioned = errors.New("database already exists")
)

// Provisioned reports whether the configured database holds the reservation tables.
// A missing SQLite file is reported without creating it.
func Provisioned(cfg *config.Config) (bool, error) {
	if cfg.IsSQLite() && !isMemory(cfg.DBDatabase) {
		if _, err := os.Stat(cfg.DBDatabase); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, fmt.Errorf("failed to stat %s: %w", cfg.DBDatabase, err)
		}
	}

	db, err := Connect(cfg)
	if err != nil {
		return false, err
	}
	defer Close(db)

	return hasSchema(db), nil
}

// Provision creates the reservation tables. It refuses to touch an existing store.
func Provision(cfg *config.Config) error {
	exists, err := Provisioned(cfg)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyProvisioned
	}

	db, err := Connect(cfg)
	if err != nil {
		return err
	}
	defer Close(db)

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Printf("Created reservation store %s", cfg.DBDatabase)
	return nil
}

// Open connects to a provisioned store and brings its schema up to date.
func Open(cfg *config.Config) (*gorm.DB, error) {
	exists, err := Provisioned(cfg)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotProvisioned
	}

	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func hasSchema(db *gorm.DB) bool {
	migrator := db.Migrator()
	for _, model := range models.All() {
		if !migrator.HasTable(model) {
			return false
		}
	}
	return true
}
