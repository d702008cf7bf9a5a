package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ddevcap/movie-catalog/api/middleware"
	"github.com/ddevcap/movie-catalog/store"
)

// userFromCtx extracts the authenticated user from the gin context.
func userFromCtx(c *gin.Context) *store.User {
	u, _ := c.Get(middleware.ContextKeyUser)
	user, _ := u.(*store.User)
	return user
}

// sessionFromCtx extracts the session the request was authenticated with.
func sessionFromCtx(c *gin.Context) *store.Session {
	s, _ := c.Get(middleware.ContextKeySession)
	session, _ := s.(*store.Session)
	return session
}
