package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/permit-deadline-api/internal/models"
	"github.com/noah-isme/permit-deadline-api/pkg/storage"
)

type datasetSnapshotter interface {
	Snapshot(ctx context.Context, handle string) (*models.Dataset, uint64, error)
}

type documentRenderer interface {
	Render(ds *models.Dataset, kind models.ExportKind, format models.ExportFormat, today time.Time) (*Document, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// GeneratedExport captures successful generation metadata.
type GeneratedExport struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	Rows         int
	ExpiresAt    time.Time
}

// ExportService renders dataset snapshots and persists them behind signed
// download URLs.
type ExportService struct {
	datasets datasetSnapshotter
	renderer documentRenderer
	storage  fileStorage
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(datasets datasetSnapshotter, renderer documentRenderer, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		datasets: datasets,
		renderer: renderer,
		storage:  files,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate renders the job's dataset as it is right now and stores the result.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*GeneratedExport, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	ds, _, err := s.datasets.Snapshot(ctx, job.DatasetHandle)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.Render(ds, job.Params.Kind, job.Params.Format, s.now())
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(path.Join(job.ID, doc.Filename), doc.Body)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("export generated",
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Params.Kind)),
		zap.String("file", relPath),
		zap.Int("rows", doc.Rows),
	)
	return &GeneratedExport{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		Rows:         doc.Rows,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}
