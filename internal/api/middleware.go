package api

import (
	"net/http"
	"time"

	"github.com/codewave/panel/internal/upload"
	"github.com/labstack/echo/v4"
)

const (
	// SessionCookie carries the browser's session ID.
	SessionCookie = "codewave_session"

	panelContextKey = "panel"
)

// SessionMiddleware resolves the caller's upload panel from the session
// cookie, starting a new session when the cookie is missing or stale.
func SessionMiddleware(sessions SessionManager, maxAge time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var id string
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				id = cookie.Value
			}

			panel, created := sessions.GetOrCreate(id)
			if created {
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    panel.ID(),
					Path:     "/",
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(panelContextKey, panel)
			return next(c)
		}
	}
}

// panelFrom returns the panel stored by SessionMiddleware.
func panelFrom(c echo.Context) (*upload.Panel, error) {
	panel, ok := c.Get(panelContextKey).(*upload.Panel)
	if !ok || panel == nil {
		return nil, NewInternalError("no session for request", nil)
	}
	return panel, nil
}
