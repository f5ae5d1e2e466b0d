package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"newswatch/pkg/domain"
)

// SnapshotRepository stores the last seen items per monitored website
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(database *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: database}
}

type snapshotSQL struct {
	Site   string    `db:"site"`
	Link   string    `db:"link"`
	Title  string    `db:"title"`
	Date   string    `db:"date"`
	SeenAt time.Time `db:"seen_at"`
}

// Snapshot returns the stored items for a site keyed by link
func (r *SnapshotRepository) Snapshot(ctx context.Context, site string) (map[string]domain.PageItem, error) {
	var rows []snapshotSQL
	err := r.db.SelectContext(ctx, &rows, "SELECT * FROM snapshots WHERE site = ?", site)
	if err != nil {
		return nil, fmt.Errorf("load snapshot for %q: %w", site, err)
	}

	items := make(map[string]domain.PageItem, len(rows))
	for _, row := range rows {
		items[row.Link] = domain.PageItem{Site: row.Site, Title: row.Title, Link: row.Link, Date: row.Date}
	}
	return items, nil
}

// SaveSnapshot replaces the stored items for a site with the given set.
// Retried on lock contention.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, site string, items []domain.PageItem) error {
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

		if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE site = ?", site); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("clear snapshot: %w", err)}
		}

		for _, item := range items {
			_, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO snapshots (site, link, title, date) VALUES (?, ?, ?, ?)",
				site, item.Link, item.Title, item.Date)
			if err != nil {
				if isLockError(err) {
					return err // retry
				}
				return &criticalError{err: fmt.Errorf("insert snapshot item: %w", err)}
			}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("commit snapshot: %w", err)}
		}
		return nil
	})
}
