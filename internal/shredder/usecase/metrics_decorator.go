package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/cryptoshred/internal/metrics"
	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

const metricsDomain = "shredder"

// shredUseCaseWithMetrics decorates ShredUseCase with metrics instrumentation.
type shredUseCaseWithMetrics struct {
	next    ShredUseCase
	metrics metrics.BusinessMetrics
}

// NewShredUseCaseWithMetrics wraps a ShredUseCase with metrics recording.
func NewShredUseCaseWithMetrics(useCase ShredUseCase, m metrics.BusinessMetrics) ShredUseCase {
	return &shredUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// status reports erased records separately so dashboards never count them as failures.
func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, shredderDomain.ErrErased):
		return "erased"
	default:
		return "error"
	}
}

func (s *shredUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	st := status(err)
	s.metrics.RecordOperation(ctx, metricsDomain, operation, st)
	s.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), st)
}

// LogEvent records metrics for event encryption.
func (s *shredUseCaseWithMetrics) LogEvent(
	ctx context.Context,
	payload []byte,
) (*shredderDomain.EncryptedRecord, error) {
	start := time.Now()
	record, err := s.next.LogEvent(ctx, payload)
	s.record(ctx, "log_event", start, err)
	return record, err
}

// ReadEvent records metrics for event decryption.
func (s *shredUseCaseWithMetrics) ReadEvent(
	ctx context.Context,
	record *shredderDomain.EncryptedRecord,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := s.next.ReadEvent(ctx, record)
	s.record(ctx, "read_event", start, err)
	return plaintext, err
}

// Shred records metrics for shred operations.
func (s *shredUseCaseWithMetrics) Shred(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := s.next.Shred(ctx, id)
	s.record(ctx, "shred", start, err)
	return err
}

// ExportWrappedKey records metrics for wrapped key exports.
func (s *shredUseCaseWithMetrics) ExportWrappedKey(
	ctx context.Context,
	id uuid.UUID,
) (*shredderDomain.WrappedKeyBlob, error) {
	start := time.Now()
	blob, err := s.next.ExportWrappedKey(ctx, id)
	s.record(ctx, "export_wrapped_key", start, err)
	return blob, err
}

// RestoreWrappedKey records metrics for wrapped key restores.
func (s *shredUseCaseWithMetrics) RestoreWrappedKey(
	ctx context.Context,
	id uuid.UUID,
	blob shredderDomain.WrappedKeyBlob,
) error {
	start := time.Now()
	err := s.next.RestoreWrappedKey(ctx, id, blob)
	s.record(ctx, "restore_wrapped_key", start, err)
	return err
}

// RotateMasterKey records metrics for master key rotations. The background rewrap is
// not timed here.
func (s *shredUseCaseWithMetrics) RotateMasterKey(ctx context.Context, newKey []byte) (*RewrapJob, error) {
	start := time.Now()
	job, err := s.next.RotateMasterKey(ctx, newKey)
	s.record(ctx, "rotate_master_key", start, err)
	return job, err
}

// RewrapAll records metrics for synchronous rewraps.
func (s *shredUseCaseWithMetrics) RewrapAll(ctx context.Context, fromVersion uint) (RewrapStats, error) {
	start := time.Now()
	stats, err := s.next.RewrapAll(ctx, fromVersion)
	s.record(ctx, "rewrap", start, err)
	s.metrics.RecordRewrapped(ctx, stats.Rewrapped)
	return stats, err
}
