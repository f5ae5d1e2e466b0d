package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
)

// SummaryRepository handles stored executive summaries
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(database *sqlx.DB) *SummaryRepository {
	return &SummaryRepository{db: database}
}

// Summary is a stored executive summary
type Summary struct {
	ID        int64     `db:"id" json:"id"`
	Mode      string    `db:"mode" json:"mode"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SaveSummary stores a generated summary. Retried on lock contention.
func (r *SummaryRepository) SaveSummary(ctx context.Context, mode, content string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx, "INSERT INTO summaries (mode, content) VALUES (?, ?)", mode, content)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("save summary: %w", err)}
		}
		return nil
	})
}

// LatestSummary returns the most recent summary for the mode, or nil
// when none has been generated yet
func (r *SummaryRepository) LatestSummary(ctx context.Context, mode string) (*Summary, error) {
	var summary Summary
	err := r.db.GetContext(ctx, &summary,
		"SELECT * FROM summaries WHERE mode = ? ORDER BY created_at DESC, id DESC LIMIT 1", mode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest summary: %w", err)
	}
	return &summary, nil
}
