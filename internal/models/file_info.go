package models

import "time"

// SelectedFile describes a PDF the user picked. The bytes live in the
// staging store under ID.
type SelectedFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	SelectedAt  time.Time `json:"selectedAt"`
}
