// handlers_session.go - JSON API over the caller's upload panel
package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/codewave/panel/internal/models"
	"github.com/codewave/panel/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack is negotiated through the Accept header.
const MIMEApplicationMsgpack = "application/msgpack"

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct{}

// NewSessionHandler creates a new session API handler
func NewSessionHandler() SessionHandler {
	return &SessionHandlerImpl{}
}

// HandleGetSession returns the current snapshot
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}
	return respondSnapshot(c, http.StatusOK, panel.Snapshot())
}

// HandleSelectFile stages the multipart field "file" as the selection
func (h *SessionHandlerImpl) HandleSelectFile(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}
	if err := selectFromForm(c, panel); err != nil {
		return FromPanelError(err)
	}
	return respondSnapshot(c, http.StatusOK, panel.Snapshot())
}

// HandleSubmit starts the upload and answers 202. With ?wait=true it
// answers 200 once the outcome has been applied.
func (h *SessionHandlerImpl) HandleSubmit(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}

	task, err := panel.Submit(c.Request().Context())
	if err != nil {
		return FromPanelError(err)
	}

	wait, _ := strconv.ParseBool(c.QueryParam("wait"))
	if !wait {
		return respondSnapshot(c, http.StatusAccepted, panel.Snapshot())
	}

	// A failed upload is part of the snapshot, not an API error.
	_ = task.Wait(c.Request().Context())
	if c.Request().Context().Err() != nil {
		// client went away; the upload carries on
		return nil
	}
	return respondSnapshot(c, http.StatusOK, panel.Snapshot())
}

// HandleReset clears the panel
func (h *SessionHandlerImpl) HandleReset(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}
	panel.Reset()
	return respondSnapshot(c, http.StatusOK, panel.Snapshot())
}

// selectFromForm feeds the multipart field "file" to the panel. A request
// without a file counts as an invalid selection.
func selectFromForm(c echo.Context, panel *upload.Panel) error {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return panel.SelectFile("", "", nil)
		}
		return NewBadRequestError("invalid multipart form", err)
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}
	defer src.Close()

	return panel.SelectFile(fh.Filename, fh.Header.Get(echo.HeaderContentType), src)
}

// respondSnapshot writes snap as msgpack when the client asks for it, JSON otherwise.
func respondSnapshot(c echo.Context, status int, snap models.SessionSnapshot) error {
	if !strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack) {
		return c.JSON(status, snap)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	if err := enc.Encode(snap); err != nil {
		return NewInternalError("failed to encode snapshot", err)
	}
	return c.Blob(status, MIMEApplicationMsgpack, buf.Bytes())
}
