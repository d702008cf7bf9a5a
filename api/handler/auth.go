package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ddevcap/movie-catalog/api/middleware"
	"github.com/ddevcap/movie-catalog/store"
)

// BcryptCost is the bcrypt work factor used for all password hashing.
const BcryptCost = 12

const msgBadCredentials = "Incorrect username or password"

type AuthHandler struct {
	db             *store.Store
	onLoginFail    func(string)
	onLoginSuccess func(string)
}

func NewAuthHandler(db *store.Store, onFail, onSuccess func(string)) *AuthHandler {
	return &AuthHandler{
		db:             db,
		onLoginFail:    onFail,
		onLoginSuccess: onSuccess,
	}
}

// tokenRequest is the OAuth2 password-flow form. JSON bodies bind too.
type tokenRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token handles POST /token. It checks the credentials and issues a new
// bearer session token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ip := middleware.ClientIP(c)

	user, err := h.db.UserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("login: user lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up user"})
			return
		}
		h.reject(c, ip)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil || !user.IsActive {
		h.reject(c, ip)
		return
	}

	h.onLoginSuccess(ip)

	token := uuid.New().String()
	if _, err := h.db.CreateSession(c.Request.Context(), user.ID, token); err != nil {
		slog.Error("login: create session failed", "error", err, "username", user.Username)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *AuthHandler) reject(c *gin.Context, ip string) {
	h.onLoginFail(ip)
	c.Header("WWW-Authenticate", "Bearer")
	c.JSON(http.StatusUnauthorized, gin.H{"error": msgBadCredentials})
}

// Logout handles POST /logout and ends the caller's session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessionFromCtx(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": middleware.MsgNotAuthenticated})
		return
	}
	if err := h.db.DeleteSession(c.Request.Context(), session.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end session"})
		return
	}
	c.Status(http.StatusNoContent)
}
