// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions         SessionManager
	SessionTimeout   time.Duration
	AnalysisEndpoint string
	Version          string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Page      PageHandler
	Session   SessionHandler
	WebSocket WebSocketHandler

	sessionMW echo.MiddlewareFunc
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Sessions, deps.AnalysisEndpoint),
		Page:      NewPageHandler(),
		Session:   NewSessionHandler(),
		WebSocket: NewWebSocketHandler(deps.Sessions),
		sessionMW: SessionMiddleware(deps.Sessions, deps.SessionTimeout),
	}
}

// RegisterRoutes registers the page, API and websocket routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Page and form actions. The session middleware is attached per route so
	// unknown paths never start a session.
	mw := handlers.sessionMW
	e.GET("/", handlers.Page.HandleIndex, mw)
	e.POST("/select", handlers.Page.HandleSelect, mw)
	e.POST("/upload", handlers.Page.HandleUpload, mw)
	e.POST("/reset", handlers.Page.HandleReset, mw)

	// Session API
	e.GET("/api/session", handlers.Session.HandleGetSession, mw)
	e.POST("/api/session/file", handlers.Session.HandleSelectFile, mw)
	e.POST("/api/session/upload", handlers.Session.HandleSubmit, mw)
	e.POST("/api/session/reset", handlers.Session.HandleReset, mw)

	e.GET("/api/ws", handlers.WebSocket.HandleWebSocket, mw)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
