package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	// SessionCookieName holds the signed admin session.
	SessionCookieName = "unified_tts_session"

	userContextKey = "admin_user"
	basicAuthRealm = "Unified TTS"
)

// sessionUser returns the user of a valid session cookie, or "".
func (h *Handler) sessionUser(c echo.Context) string {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	claims, err := h.sessions.Validate(cookie.Value)
	if err != nil {
		h.logger.Debug("Rejected session cookie", zap.Error(err))
		return ""
	}
	if !h.guard.IsAdmin(claims.Username) {
		h.logger.Warn("Rejected session for a user that is no longer the admin",
			zap.String("username", claims.Username))
		return ""
	}
	return claims.Username
}

// requirePageSession sends browsers without a session to the login form.
func (h *Handler) requirePageSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.guard.Enabled() {
			return next(c)
		}

		user := h.sessionUser(c)
		if user == "" {
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// requireAPISession accepts a session cookie or HTTP Basic credentials
// checked by the guard. Anything else gets a 401.
func (h *Handler) requireAPISession() echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper: func(c echo.Context) bool {
			if !h.guard.Enabled() {
				return true
			}
			if user := h.sessionUser(c); user != "" {
				c.Set(userContextKey, user)
				return true
			}
			return false
		},
		Validator: func(username, password string, c echo.Context) (bool, error) {
			if !h.guard.Verify(username, password) {
				return false, nil
			}
			c.Set(userContextKey, username)
			return true, nil
		},
		Realm: basicAuthRealm,
	})
}

func (h *Handler) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func currentUser(c echo.Context) string {
	user, _ := c.Get(userContextKey).(string)
	return user
}

// NewHTTPErrorHandler renders every unhandled error as an ErrorResponse
func NewHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = fmt.Sprint(he.Message)
		} else {
			logger.Error("Unhandled request error",
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{
				Error:   errorCode(code),
				Message: message,
			})
		}
		if err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}

// errorCode turns a status into a snake_case code, e.g. 404 -> "not_found".
func errorCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
