package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sudeep-patali/nodue-api/internal/models"
	"github.com/sudeep-patali/nodue-api/internal/repository"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/pkg/certificate"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type certificateStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
}

type certificateSigner interface {
	Generate(applicationID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (applicationID, relPath string, expiresAt time.Time, err error)
}

// CertificateService renders completed applications into downloadable
// certificates behind signed, expiring links.
type CertificateService struct {
	apps     assignmentApplicationReader
	renderer *certificate.Renderer
	store    certificateStorage
	signer   certificateSigner
	audit    auditLogger
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewCertificateService constructs the service.
func NewCertificateService(apps assignmentApplicationReader, renderer *certificate.Renderer, store certificateStorage, signer certificateSigner, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		apps:     apps,
		renderer: renderer,
		store:    store,
		signer:   signer,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

// Issue renders the certificate for a completed application and returns a
// signed download link. Rendering is idempotent, so repeated calls simply
// refresh the link. Students may issue only their own certificate.
func (s *CertificateService) Issue(ctx context.Context, actor *models.JWTClaims, applicationID string) (*dto.CertificateResponse, error) {
	app, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.StudentID != actor.UserID && !actor.HasRole(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}

	status := models.DeriveStatus(&app.Application, app.StudentType)
	if status != models.StatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate is available only once every stage is verified")
	}

	data, err := s.renderer.Render(buildDocument(app))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	relPath := certificatePath(app.ID)
	if _, err := s.store.Save(relPath, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}

	token, expiresAt, err := s.signer.Generate(app.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	if s.metrics != nil {
		s.metrics.RecordCertificateIssued()
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCertificateIssue,
		Resource:   "application",
		ResourceID: &app.ID,
		NewValues:  []byte(fmt.Sprintf(`{"usn":%q}`, app.USN)),
	}); err != nil {
		s.logger.Warn("failed to record certificate audit log", zap.Error(err))
	}

	return &dto.CertificateResponse{
		ApplicationID: app.ID,
		DownloadURL:   "/api/v1/certificates/download?token=" + token,
		ExpiresAt:     expiresAt,
	}, nil
}

// Download resolves a signed token to the certificate bytes.
func (s *CertificateService) Download(ctx context.Context, token string) ([]byte, string, error) {
	applicationID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	data, err := s.store.Read(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "certificate not found")
	}
	return data, fmt.Sprintf("no-due-%s.pdf", applicationID), nil
}

func buildDocument(app *repository.ApplicationWithStudent) certificate.Document {
	doc := certificate.Document{
		StudentName: app.StudentName,
		USN:         app.USN,
		Department:  string(app.Department),
		Semester:    app.Semester,
		Batch:       app.Batch,
		StudentType: string(app.StudentType),
		IssuedAt:    time.Now().UTC(),
	}
	if app.TransactionID != nil {
		doc.TransactionID = *app.TransactionID
	}
	for _, stage := range models.StageOrder {
		if !models.StageApplies(stage, app.StudentType) {
			continue
		}
		clearance := certificate.Clearance{
			Stage:      string(stage),
			Verified:   app.StageVerified(stage),
			VerifiedAt: &app.UpdatedAt,
		}
		if comment := stageComment(&app.Application, stage); comment != nil {
			clearance.Comment = *comment
		}
		doc.Clearances = append(doc.Clearances, clearance)
	}
	return doc
}

func certificatePath(applicationID string) string {
	return applicationID + ".pdf"
}
