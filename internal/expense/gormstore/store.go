// Package gormstore implements the expense.Storage port on GORM, with
// sqlite and postgres dialects. Mutations feed a notification hub that
// re-runs live queries and pushes fresh snapshots to their subscriptions,
// giving callers reactive date-scoped views.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hafnium/expense-tracker/internal"
	"github.com/hafnium/expense-tracker/internal/datemath"
	"github.com/hafnium/expense-tracker/internal/expense"
)

// expenseRow is the persistence representation. Dates are stored as
// ISO-8601 YYYY-MM-DD strings; timestamps stay caller-supplied unix
// milliseconds, so GORM's automatic tracking is disabled.
type expenseRow struct {
	ID          int64  `gorm:"primaryKey"`
	Date        string `gorm:"column:date;index;not null"`
	Amount      int64  `gorm:"column:amount;not null"`
	Description string `gorm:"column:description"`
	ImagePath   string `gorm:"column:image_path"`
	CreatedAt   int64  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt   int64  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (expenseRow) TableName() string {
	return "expenses"
}

// subscriber pairs a live subscription with the query that refreshes it.
type subscriber struct {
	out   *expense.Subscription
	fetch func(ctx context.Context) ([]expense.Record, error)
}

// Store implements expense.Storage.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// Open connects to the configured database and returns a Store over it.
func Open(cfg internal.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Source)
	case "sqlite":
		dialector = sqlite.Open(cfg.Source)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(db, logger), nil
}

// New wraps an already-open GORM handle.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		subs:   map[*subscriber]struct{}{},
	}
}

// AutoMigrate creates or updates the expenses table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&expenseRow{})
}

// DB exposes the underlying GORM handle, used by the migrate command.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Insert(ctx context.Context, rec *expense.Record) (int64, error) {
	row := toRow(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	s.notify(ctx)
	return row.ID, nil
}

// Update writes all columns of the row with the record's id. A missing row
// is a silent no-op.
func (s *Store) Update(ctx context.Context, rec *expense.Record) error {
	row := toRow(rec)
	err := s.db.WithContext(ctx).
		Model(&expenseRow{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"date":        row.Date,
			"amount":      row.Amount,
			"description": row.Description,
			"image_path":  row.ImagePath,
			"created_at":  row.CreatedAt,
			"updated_at":  row.UpdatedAt,
		}).Error
	if err != nil {
		return err
	}
	s.notify(ctx)
	return nil
}

func (s *Store) Delete(ctx context.Context, rec *expense.Record) error {
	if err := s.db.WithContext(ctx).Delete(&expenseRow{}, rec.ID).Error; err != nil {
		return err
	}
	s.notify(ctx)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*expense.Record, error) {
	var row expenseRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRecordNotFound
		}
		return nil, err
	}
	return toRecord(&row)
}

// QueryByDate opens a reactive subscription over the records for the given
// date, ordered by creation time descending with id as tiebreak. The
// initial snapshot is published before QueryByDate returns.
func (s *Store) QueryByDate(ctx context.Context, date datemath.Date) (*expense.Subscription, error) {
	return s.subscribe(ctx, func(ctx context.Context) ([]expense.Record, error) {
		return s.fetch(ctx, s.db.WithContext(ctx).
			Where("date = ?", date.String()).
			Order("created_at DESC, id DESC"))
	})
}

// QueryAll opens a reactive subscription over all records, ordered by date
// descending then creation time descending.
func (s *Store) QueryAll(ctx context.Context) (*expense.Subscription, error) {
	return s.subscribe(ctx, func(ctx context.Context) ([]expense.Record, error) {
		return s.fetch(ctx, s.db.WithContext(ctx).
			Order("date DESC, created_at DESC, id DESC"))
	})
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff datemath.Date) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("date < ?", cutoff.String()).
		Delete(&expenseRow{})
	if res.Error != nil {
		return 0, res.Error
	}
	s.notify(ctx)
	return res.RowsAffected, nil
}

func (s *Store) ImagePathsOlderThan(ctx context.Context, cutoff datemath.Date) ([]string, error) {
	var paths []string
	err := s.db.WithContext(ctx).
		Model(&expenseRow{}).
		Where("date < ? AND image_path <> ''", cutoff.String()).
		Pluck("image_path", &paths).Error
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// subscribe registers a live query, publishing its current result before
// returning so subscribers always start from an authoritative snapshot.
func (s *Store) subscribe(ctx context.Context, fetch func(ctx context.Context) ([]expense.Record, error)) (*expense.Subscription, error) {
	entry := &subscriber{fetch: fetch}
	entry.out = expense.NewSubscription(func() {
		s.mu.Lock()
		delete(s.subs, entry)
		s.mu.Unlock()
	})

	// Fetch and register under the hub lock so a concurrent mutation can
	// neither slip between the initial snapshot and registration nor be
	// overwritten by it.
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.subs[entry] = struct{}{}
	entry.out.Publish(items)
	return entry.out, nil
}

// notify re-runs every live query and pushes the fresh snapshot. Called
// after each successful mutation.
func (s *Store) notify(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for entry := range s.subs {
		items, err := entry.fetch(ctx)
		if err != nil {
			s.logger.Warn("failed to refresh live query", "error", err)
			continue
		}
		entry.out.Publish(items)
	}
}

func (s *Store) fetch(ctx context.Context, tx *gorm.DB) ([]expense.Record, error) {
	var rows []expenseRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]expense.Record, 0, len(rows))
	for i := range rows {
		rec, err := toRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func toRow(rec *expense.Record) expenseRow {
	return expenseRow{
		ID:          rec.ID,
		Date:        rec.Date.String(),
		Amount:      rec.Amount,
		Description: rec.Description,
		ImagePath:   rec.ImagePath,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func toRecord(row *expenseRow) (*expense.Record, error) {
	date, err := datemath.Parse(row.Date)
	if err != nil {
		return nil, fmt.Errorf("corrupt date on expense %d: %w", row.ID, err)
	}
	return &expense.Record{
		ID:          row.ID,
		Date:        date,
		Amount:      row.Amount,
		Description: row.Description,
		ImagePath:   row.ImagePath,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
