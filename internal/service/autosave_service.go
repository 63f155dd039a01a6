package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/permit-deadline-api/internal/models"
	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
	"github.com/noah-isme/permit-deadline-api/pkg/jobs"
)

const autosaveJobType = "autosave"

type datasetPersister interface {
	Persist(ctx context.Context, ds *models.Dataset) (*models.ExportResult, error)
}

// AutosaveService schedules write-backs of mutated datasets. Requests for a
// handle that already has a pending write-back are coalesced into it.
type AutosaveService struct {
	queue   jobDispatcher
	enabled bool
	logger  *zap.Logger
}

// NewAutosaveService constructs an AutosaveService.
func NewAutosaveService(queue jobDispatcher, enabled bool, logger *zap.Logger) *AutosaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutosaveService{queue: queue, enabled: enabled, logger: logger}
}

// Schedule enqueues a write-back of the dataset behind handle.
func (s *AutosaveService) Schedule(handle string) {
	if s == nil || !s.enabled || s.queue == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: autosaveJobType, Key: handle, Payload: handle})
	if err != nil && !errors.Is(err, jobs.ErrDuplicate) {
		s.logger.Warn("autosave enqueue failed", zap.String("handle", handle), zap.Error(err))
	}
}

// AutosaveWorker persists the latest snapshot of a dataset to its source workbook.
type AutosaveWorker struct {
	datasets  datasetSnapshotter
	persister datasetPersister
	logger    *zap.Logger
}

// NewAutosaveWorker constructs a worker.
func NewAutosaveWorker(datasets datasetSnapshotter, persister datasetPersister, logger *zap.Logger) *AutosaveWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutosaveWorker{datasets: datasets, persister: persister, logger: logger}
}

// Handle processes a queue job. In-memory state is never rolled back when
// the write fails.
func (w *AutosaveWorker) Handle(ctx context.Context, job jobs.Job) error {
	handle := job.Key
	ds, version, err := w.datasets.Snapshot(ctx, handle)
	if err != nil {
		if errors.Is(err, appErrors.ErrDatasetNotLoaded) {
			w.logger.Debug("autosave skipped, dataset closed", zap.String("handle", handle))
			return nil
		}
		return err
	}
	start := time.Now()
	result, err := w.persister.Persist(ctx, ds)
	if err != nil {
		w.logger.Error("autosave failed", zap.String("handle", handle), zap.Uint64("version", version), zap.Error(err))
		return err
	}
	w.logger.Info("autosave written",
		zap.String("handle", handle),
		zap.Uint64("version", version),
		zap.String("path", result.Path),
		zap.Bool("fallback", result.Fallback),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
