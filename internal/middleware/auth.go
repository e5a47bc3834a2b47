package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskpanel/internal/session"
)

const sessionKey = "panel_session"

// SessionResolver is satisfied by *session.Manager.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// Session attaches the caller's session to the request. A missing, expired
// or forged token yields an empty session; the guard decides what that means.
func Session(resolver SessionResolver, cookieName string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookieName)

		sess, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).
				Str("request_id", c.Writer.Header().Get(requestIDHeader)).
				Msg("session not resolved")
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// SessionToken reads the bearer header first, then the cookie.
func SessionToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

// CurrentSession returns the session set by Session, or an empty one.
func CurrentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(*session.Session); ok && sess != nil {
			return sess
		}
	}
	return session.Empty()
}
