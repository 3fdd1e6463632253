package dto

import (
	"time"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

// ApplicationView is an application row together with its derived status.
type ApplicationView struct {
	models.Application
	Status      string             `json:"status"`
	StudentType models.StudentType `json:"student_type"`
}

// ApplicationProgress is the student-facing dashboard projection.
type ApplicationProgress struct {
	ApplicationID string          `json:"application_id"`
	Status        string          `json:"status"`
	Stages        []StageProgress `json:"stages"`
}

// StageProgress reports one stage's state for the progress view.
type StageProgress struct {
	Stage    string  `json:"stage"`
	Applies  bool    `json:"applies"`
	Verified bool    `json:"verified"`
	Comment  *string `json:"comment,omitempty"`
}

// CertificateResponse carries a signed, expiring download link for the
// rendered certificate.
type CertificateResponse struct {
	ApplicationID string    `json:"application_id"`
	DownloadURL   string    `json:"download_url"`
	ExpiresAt     time.Time `json:"expires_at"`
}
