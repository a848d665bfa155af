package models

import "time"

// Status is the tag of an UploadSession. Result and ErrorMessage are only
// meaningful for the tags documented on the UploadSession fields.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// PDFContentType is the only declared media type a selection may carry.
const PDFContentType = "application/pdf"

// User-facing messages.
const (
	MsgInvalidPDF       = "Please select a valid PDF file."
	MsgNoFileSelected   = "No file selected"
	MsgUploadInFlight   = "An upload is already in progress"
	MsgProcessFailed    = "Failed to process file"
	MsgProcessingError  = "An error occurred while processing the file"
	MsgAnalysisFallback = "Analysis results"
)

// UploadSession is the in-memory state of one upload panel.
type UploadSession struct {
	ID           string        `json:"id"`
	Status       Status        `json:"status"`
	SelectedFile *SelectedFile `json:"selectedFile,omitempty"`
	// Result is set only when Status is StatusSucceeded.
	Result *Result `json:"result,omitempty"`
	// ErrorMessage is set only when Status is StatusFailed or a selection
	// was rejected.
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Result is what the analysis service returned for a successful upload.
type Result struct {
	Filename string         `json:"filename"`
	Analysis interface{}    `json:"analysis"`
	RawData  map[string]any `json:"rawData,omitempty"`
}

// SessionSnapshot is a read-only copy of a session prepared for rendering.
type SessionSnapshot struct {
	UploadSession
	FormattedAnalysis string `json:"formattedAnalysis,omitempty"`
}

// NewUploadSession creates an empty session in idle status.
func NewUploadSession(id string) *UploadSession {
	now := time.Now()
	return &UploadSession{
		ID:        id,
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Uploading reports whether a request is in flight.
func (s *UploadSession) Uploading() bool {
	return s.Status == StatusUploading
}

// Clone copies s and its file and result records. Analysis payloads are
// never mutated and stay shared.
func (s *UploadSession) Clone() UploadSession {
	c := *s
	if s.SelectedFile != nil {
		f := *s.SelectedFile
		c.SelectedFile = &f
	}
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return c
}
