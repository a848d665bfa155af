// handlers_page.go - Server-rendered upload panel
package api

import (
	"net/http"

	"github.com/codewave/panel/internal/models"
	"github.com/codewave/panel/internal/web"
	"github.com/labstack/echo/v4"
)

// PageHandlerImpl implements the PageHandler interface
type PageHandlerImpl struct{}

// NewPageHandler creates a new page handler
func NewPageHandler() PageHandler {
	return &PageHandlerImpl{}
}

// HandleIndex renders the header and the upload panel
func (h *PageHandlerImpl) HandleIndex(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, web.IndexTemplate, web.NewPage(panel.Snapshot()))
}

// HandleSelect is the file input's form action
func (h *PageHandlerImpl) HandleSelect(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}
	if err := selectFromForm(c, panel); err != nil && !handledByPanel(err) {
		return err
	}
	return redirectHome(c)
}

// HandleUpload is the Upload button's form action
func (h *PageHandlerImpl) HandleUpload(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}
	if _, err := panel.Submit(c.Request().Context()); err != nil && !handledByPanel(err) {
		return err
	}
	return redirectHome(c)
}

// HandleReset is the Reset button's form action
func (h *PageHandlerImpl) HandleReset(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}
	panel.Reset()
	return redirectHome(c)
}

// handledByPanel reports whether err is already visible on the rendered
// panel, either as its error line or as the disabled upload button.
func handledByPanel(err error) bool {
	switch models.KindOf(err) {
	case models.ValidationError, models.PreconditionError, models.ConflictError:
		return true
	}
	return false
}

func redirectHome(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/")
}
