// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/codewave/panel/internal/upload"
	"github.com/labstack/echo/v4"
)

// PageHandler serves the server-rendered panel and its form actions
type PageHandler interface {
	HandleIndex(c echo.Context) error
	HandleSelect(c echo.Context) error
	HandleUpload(c echo.Context) error
	HandleReset(c echo.Context) error
}

// SessionHandler exposes the panel lifecycle as a JSON API
type SessionHandler interface {
	HandleGetSession(c echo.Context) error
	HandleSelectFile(c echo.Context) error
	HandleSubmit(c echo.Context) error
	HandleReset(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// WebSocketHandler pushes session snapshots to the browser
type WebSocketHandler interface {
	HandleWebSocket(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	GetOrCreate(id string) (*upload.Panel, bool)
	Touch(id string) bool
	Count() int
}
