// Package results persists completed load runs so successive runs can be
// compared.
package results

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one persisted load-test run.
type Run struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`

	Strategy        string // "sequential" or "concurrent"
	Workers         int
	Path            string
	DurationSeconds float64

	Requests int
	Failed   int
	MeanSec  float64
	StdevSec float64

	Chart string // rendered visualization, plain text
}

// Store wraps the runs database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the sqlite database at path and
// migrates the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening results db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("migrating results db: %w", err)
	}
	return &Store{db: db, logger: log}, nil
}

// Save persists one run.
func (s *Store) Save(run *Run) error {
	if err := s.db.Create(run).Error; err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	s.logger.Info("run saved", slog.Uint64("id", uint64(run.ID)))
	return nil
}

// Recent returns up to limit runs, most recent first.
func (s *Store) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.Order("created_at desc, id desc").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
