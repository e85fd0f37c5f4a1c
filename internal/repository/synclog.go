package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/models"
)

// SyncLogRepository appends and reads the per-kind sync audit trail.
// Entries are append-only.
type SyncLogRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSyncLogRepository(db *sql.DB, log logger.Logger) *SyncLogRepository {
	return &SyncLogRepository{
		db:     db,
		logger: log,
	}
}

// Record appends a "kind ran at now" entry.
func (r *SyncLogRepository) Record(ctx context.Context, kind models.SyncKind) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_log (kind, timestamp) VALUES ($1, $2)`,
		int16(kind), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record sync log: %w", err)
	}
	return nil
}

// LastTimestamp returns the most recent run time for kind, or (nil, nil) if
// that sync has never run.
func (r *SyncLogRepository) LastTimestamp(ctx context.Context, kind models.SyncKind) (*time.Time, error) {
	var ts time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT timestamp FROM sync_log WHERE kind = $1 ORDER BY timestamp DESC LIMIT 1`,
		int16(kind),
	).Scan(&ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last sync timestamp: %w", err)
	}
	return &ts, nil
}
