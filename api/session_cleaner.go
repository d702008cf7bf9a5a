package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/ddevcap/movie-catalog/config"
	"github.com/ddevcap/movie-catalog/store"
)

const sessionCleanupInterval = time.Hour

// SessionCleaner periodically deletes sessions idle longer than SESSION_TTL,
// so the table does not grow when clients never log out.
type SessionCleaner struct {
	db       *store.Store
	ttl      time.Duration
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSessionCleaner creates a cleaner that runs every hour.
func NewSessionCleaner(db *store.Store, cfg config.Config) *SessionCleaner {
	return &SessionCleaner{
		db:       db,
		ttl:      cfg.SessionTTL,
		interval: sessionCleanupInterval,
		done:     make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (sc *SessionCleaner) Start(ctx context.Context) {
	ctx, sc.cancel = context.WithCancel(ctx)
	go func() {
		defer close(sc.done)
		ticker := time.NewTicker(sc.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sc.Cleanup(ctx)
			}
		}
	}()
}

// Stop signals the cleanup loop to stop and waits for it.
func (sc *SessionCleaner) Stop() {
	if sc.cancel != nil {
		sc.cancel()
		<-sc.done
	}
}

// Cleanup deletes expired sessions once. It does nothing when no TTL is set.
func (sc *SessionCleaner) Cleanup(ctx context.Context) {
	if sc.ttl <= 0 {
		return
	}
	n, err := sc.db.DeleteSessionsBefore(ctx, time.Now().Add(-sc.ttl))
	if err != nil {
		slog.Warn("session cleanup failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("expired sessions cleaned up", "count", n)
	}
}
