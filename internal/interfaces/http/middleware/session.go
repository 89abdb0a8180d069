package middleware

import (
	"net/http"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/codetrail/learngate/internal/infrastructure/auth"
	"github.com/labstack/echo/v4"
)

// SessionContextKey session model key in echo context
const SessionContextKey = "learngate.session"

// LoadSession resolve the session cookie into a SessionModel and stash it in
// the echo context. Requests without a valid cookie pass through with no
// session set, pages that can render anonymously stay reachable.
func LoadSession(ju *auth.JWTUtil, sessions domain.SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := ju.ExtractToken(c)
			if err != nil {
				return next(c)
			}
			claims, err := ju.Validate(tokenStr)
			if err != nil {
				ju.ClearClientToken(c)
				return next(c)
			}
			sess, err := sessions.Get(c.Request().Context(), claims.SID)
			if err != nil {
				return err
			}
			if sess != nil {
				c.Set(SessionContextKey, sess)
			}
			return next(c)
		}
	}
}

// RequireSession reject requests that carry no authenticated session, must
// be chained after LoadSession
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sess := CurrentSession(c); !sess.Authenticated() {
				return c.NoContent(http.StatusUnauthorized)
			}
			return next(c)
		}
	}
}

// CurrentSession fetch the session placed by LoadSession, nil when anonymous
func CurrentSession(c echo.Context) *domain.SessionModel {
	if sess, ok := c.Get(SessionContextKey).(*domain.SessionModel); ok {
		return sess
	}
	return nil
}
