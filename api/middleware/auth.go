package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/movie-catalog/config"
	"github.com/ddevcap/movie-catalog/store"
)

const (
	ContextKeyUser    = "user"
	ContextKeySession = "session"

	// MsgNotAuthenticated is the error returned for a missing, unknown or
	// expired bearer token.
	MsgNotAuthenticated = "Not authenticated"

	// touchInterval debounces last-activity writes.
	touchInterval = 5 * time.Minute
)

// ExtractToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when there is none. The scheme is matched case-insensitively.
func ExtractToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth resolves the bearer token to a session and its user and stores both
// in the gin context. If cfg.SessionTTL > 0 sessions idle longer than the TTL
// are rejected and deleted.
func Auth(db *store.Store, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			unauthorized(c)
			return
		}

		ctx := c.Request.Context()
		session, err := db.SessionByToken(ctx, token)
		if errors.Is(err, store.ErrNotFound) {
			unauthorized(c)
			return
		}
		if err != nil {
			slog.Error("auth: session lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to check session"})
			return
		}
		if !session.User.IsActive {
			unauthorized(c)
			return
		}

		idle := time.Since(session.LastActivity)
		if cfg.SessionTTL > 0 && idle > cfg.SessionTTL {
			_ = db.DeleteSession(ctx, session.ID)
			unauthorized(c)
			return
		}
		if idle > touchInterval {
			_ = db.TouchSession(ctx, session.ID, time.Now())
		}

		c.Set(ContextKeyUser, session.User)
		c.Set(ContextKeySession, session)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": MsgNotAuthenticated})
}
