package ingest

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/labreports/internal/async"
	"github.com/joseph-ayodele/labreports/internal/common"
)

// Service feeds documents found on disk into the processing queue.
type Service struct {
	queue  async.Queue
	logger *slog.Logger
}

// NewService creates a new ingest service.
func NewService(q async.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{queue: q, logger: logger}
}

// EnqueueFile queues a single document for processing.
func (s *Service) EnqueueFile(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return common.NewAppError("INVALID_INPUT", "path is required", common.ErrInvalidInput)
	}
	if !allowed(path) {
		return common.NewAppError("UNSUPPORTED", common.MsgUnsupportedFile, common.ErrUnsupported)
	}
	fi, err := os.Stat(path)
	if err != nil {
		s.logger.Error("ingest file stat failed", "path", path, "error", err)
		return common.NewAppError("NOT_FOUND", "file not found: "+path, common.ErrNotFound)
	}
	if fi.IsDir() {
		return common.NewAppError("INVALID_INPUT", "path is a directory: "+path, common.ErrInvalidInput)
	}
	return s.enqueue(ctx, path, common.RequestIDFromContext(ctx))
}

// EnqueueDirectory queues every document under root.
func (s *Service) EnqueueDirectory(ctx context.Context, root string, skipHidden bool) (DirStats, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return DirStats{}, common.NewAppError("INVALID_INPUT", "root path is required", common.ErrInvalidInput)
	}
	s.logger.Info("starting directory ingest", "root", root, "skip_hidden", skipHidden)
	traceID := common.RequestIDFromContext(ctx)
	stats, err := WalkDocuments(ctx, root, skipHidden, func(path string) error {
		return s.enqueue(ctx, path, traceID)
	})
	if err != nil {
		s.logger.Error("directory ingest failed", "root", root, "error", err)
		return stats, err
	}
	s.logger.Info("directory ingest completed", "root", root, "scanned", stats.Scanned, "matched", stats.Matched, "queued", stats.Queued, "failed", stats.Failed)
	return stats, nil
}

// Watch queues documents as they appear under the configured roots until ctx is done.
func (s *Service) Watch(ctx context.Context, cfg WatchConfig) error {
	events, errs, err := StartWatcher(ctx, cfg, s.logger)
	if err != nil {
		return err
	}
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			if err := s.enqueue(ctx, path, ""); err != nil {
				s.logger.Error("enqueue failed for watched file", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("watcher reported error", "error", err)
		}
	}
}

func (s *Service) enqueue(ctx context.Context, path, traceID string) error {
	if err := s.queue.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now(), TraceID: traceID}); err != nil {
		s.logger.Error("enqueue failed for file", "path", path, "err", err)
		return err
	}
	return nil
}
