package api

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/ddevcap/movie-catalog/api/handler"
	"github.com/ddevcap/movie-catalog/config"
	"github.com/ddevcap/movie-catalog/store"
)

// SeedInitialUser creates the first account when the users table is empty,
// so a fresh deployment can authenticate deletes. It is a no-op once any user
// exists and is safe to call on every startup.
//
// Credentials come from cfg.InitialAdminUser and cfg.InitialAdminPassword.
// An empty password skips seeding with a warning.
func SeedInitialUser(ctx context.Context, db *store.Store, cfg config.Config) {
	count, err := db.CountUsers(ctx)
	if err != nil {
		slog.Error("seed: failed to count users", "error", err)
		return
	}
	if count > 0 {
		return
	}

	if cfg.InitialAdminPassword == "" {
		slog.Warn("seed: no users found and INITIAL_ADMIN_PASSWORD is not set, skipping user seeding")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdminPassword), handler.BcryptCost)
	if err != nil {
		slog.Error("seed: failed to hash initial user password", "error", err)
		return
	}

	if _, err := db.CreateUser(ctx, cfg.InitialAdminUser, string(hash)); err != nil {
		slog.Error("seed: failed to create initial user", "error", err)
		return
	}

	slog.Info("seed: created initial user", "username", cfg.InitialAdminUser)
}
