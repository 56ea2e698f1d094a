package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// StartSessionCleaner periodically deletes active sessions whose last
// activity is older than idle. It stops when ctx is cancelled.
func StartSessionCleaner(
	ctx context.Context,
	db *sqlx.DB,
	interval time.Duration,
	idle time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	query := db.Rebind(`DELETE FROM active_sessions WHERE last_activity < ?`)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-idle)
				res, err := db.ExecContext(ctx, query, cutoff)
				if err != nil {
					log.Error("failed to clean idle sessions", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned idle sessions", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
