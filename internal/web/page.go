package web

import (
	"strings"

	"github.com/codewave/panel/internal/models"
)

// Brand is shown in the header and spelled out on the landing panel.
const Brand = "Codewave"

// Page is the view model of the upload panel.
type Page struct {
	Brand        string
	Letters      []string
	Status       models.Status
	SelectedName string
	Error        string
	Uploading    bool
	HasResult    bool
	Filename     string
	Analysis     string
}

// NewPage derives what the panel shows from a session snapshot.
func NewPage(snap models.SessionSnapshot) Page {
	page := Page{
		Brand:     Brand,
		Letters:   strings.Split(strings.ToUpper(Brand), ""),
		Status:    snap.Status,
		Error:     snap.ErrorMessage,
		Uploading: snap.Status == models.StatusUploading,
	}
	if snap.SelectedFile != nil {
		page.SelectedName = snap.SelectedFile.Name
	}
	if snap.Status == models.StatusSucceeded && snap.Result != nil {
		page.HasResult = true
		page.Filename = snap.Result.Filename
		page.Analysis = snap.FormattedAnalysis
	}
	return page
}

// ButtonLabel is the upload button text.
func (p Page) ButtonLabel() string {
	if p.Uploading {
		return "Processing..."
	}
	return "Upload"
}
