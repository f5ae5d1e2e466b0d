package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"newswatch/pkg/domain"
)

// RunRepository handles collection runs and their article records
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(database *sqlx.DB) *RunRepository {
	return &RunRepository{db: database}
}

// recordSQL represents a record row for SQL operations
type recordSQL struct {
	ID           int64        `db:"id"`
	RunID        int64        `db:"run_id"`
	Entity       string       `db:"entity"`
	Title        string       `db:"title"`
	URL          string       `db:"url"`
	Published    sql.NullTime `db:"published"`
	PublishedRaw string       `db:"published_raw"`
	Source       string       `db:"source"`
	Excerpt      string       `db:"excerpt"`
	Image        string       `db:"image"`
	Relevance    float64      `db:"relevance"`
}

func (r recordSQL) toDomain() domain.Record {
	rec := domain.Record{
		Entity:       r.Entity,
		Title:        r.Title,
		URL:          r.URL,
		PublishedRaw: r.PublishedRaw,
		Source:       r.Source,
		Excerpt:      r.Excerpt,
		Image:        r.Image,
		Relevance:    r.Relevance,
	}
	if r.Published.Valid {
		rec.Published = r.Published.Time.UTC()
	}
	return rec
}

// CreateRun starts a new collection run and returns its ID
func (r *RunRepository) CreateRun(ctx context.Context, mode string, kind domain.EntityKind) (int64, error) {
	result, err := r.db.ExecContext(ctx, "INSERT INTO runs (mode, kind) VALUES (?, ?)", mode, string(kind))
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get run id: %w", err)
	}
	return id, nil
}

// SaveRecords stores all records of a run in one transaction.
// Retried on SQLite lock contention.
func (r *RunRepository) SaveRecords(ctx context.Context, runID int64, records []domain.Record) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("begin transaction: %w", err)}
		}
		defer tx.Rollback() //nolint:errcheck // no-op after commit

		query := `
			INSERT INTO records (
				run_id, entity, title, url, published, published_raw,
				source, excerpt, image, relevance
			) VALUES (
				:run_id, :entity, :title, :url, :published, :published_raw,
				:source, :excerpt, :image, :relevance
			)
		`
		for _, rec := range records {
			row := recordSQL{
				RunID:        runID,
				Entity:       rec.Entity,
				Title:        rec.Title,
				URL:          rec.URL,
				Published:    sql.NullTime{Time: rec.Published, Valid: !rec.Published.IsZero()},
				PublishedRaw: rec.PublishedRaw,
				Source:       rec.Source,
				Excerpt:      rec.Excerpt,
				Image:        rec.Image,
				Relevance:    rec.Relevance,
			}
			if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
				if isLockError(err) {
					return err // retry
				}
				return &criticalError{err: fmt.Errorf("insert record: %w", err)}
			}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("commit records: %w", err)}
		}
		return nil
	})
}

// LatestRecords returns the records of the most recent run for the given
// mode and kind. No prior run yields an empty slice, which makes the
// first dedupe of a fresh database a no-op.
func (r *RunRepository) LatestRecords(ctx context.Context, mode string, kind domain.EntityKind) ([]domain.Record, error) {
	var runID int64
	err := r.db.GetContext(ctx, &runID,
		"SELECT id FROM runs WHERE mode = ? AND kind = ? ORDER BY started_at DESC, id DESC LIMIT 1",
		mode, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest run: %w", err)
	}

	var rows []recordSQL
	err = r.db.SelectContext(ctx, &rows,
		"SELECT * FROM records WHERE run_id = ? ORDER BY entity, relevance DESC, id", runID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, nil
}

// RecordsByEntity returns the most recently stored records for one
// entity across all runs, newest run first, up to the limit
func (r *RunRepository) RecordsByEntity(ctx context.Context, entity string, limit int) ([]domain.Record, error) {
	if limit < 1 {
		limit = 10
	}
	var rows []recordSQL
	err := r.db.SelectContext(ctx, &rows, `
		SELECT r.* FROM records r
		JOIN runs ON runs.id = r.run_id
		WHERE r.entity = ?
		ORDER BY runs.started_at DESC, r.relevance DESC, r.id
		LIMIT ?`, entity, limit)
	if err != nil {
		return nil, fmt.Errorf("load records for %q: %w", entity, err)
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, nil
}
