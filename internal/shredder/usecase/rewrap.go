package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

// Rewrap defaults.
const (
	DefaultRewrapConcurrency = 4
	DefaultRewrapMaxPasses   = 5
)

// RewrapConfig tunes the rewrap worker pool.
type RewrapConfig struct {
	// Concurrency bounds the entries rewrapped in parallel.
	Concurrency int
	// RatePerSecond throttles rewraps; 0 disables throttling.
	RatePerSecond float64
	// MaxPasses bounds the scans over the key store before giving up on forgetting.
	MaxPasses int
}

func (c RewrapConfig) withDefaults() RewrapConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultRewrapConcurrency
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = DefaultRewrapMaxPasses
	}
	return c
}

// RewrapStats summarizes a rewrap.
type RewrapStats struct {
	FromVersion uint
	ToVersion   uint
	Scanned     int64
	Rewrapped   int64
	// Skipped counts entries shredded or already moved by the time the worker reached them.
	Skipped  int64
	Passes   int
	Forgot   bool
	Duration time.Duration
}

func (s *RewrapStats) add(other RewrapStats) {
	if s.FromVersion == 0 || (other.FromVersion != 0 && other.FromVersion < s.FromVersion) {
		s.FromVersion = other.FromVersion
	}
	s.ToVersion = other.ToVersion
	s.Scanned += other.Scanned
	s.Rewrapped += other.Rewrapped
	s.Skipped += other.Skipped
	s.Passes += other.Passes
	s.Forgot = s.Forgot && other.Forgot
	s.Duration += other.Duration
}

// RewrapJob is a handle on a background rewrap started by RotateMasterKey.
type RewrapJob struct {
	// FromVersion is the version that was active before the rotation.
	FromVersion uint
	ToVersion   uint
	// RetiredVersions lists every version the job rewraps, FromVersion included.
	RetiredVersions []uint

	cancel context.CancelFunc
	done   chan struct{}
	stats  RewrapStats
	err    error
}

func newRewrapJob(from, to uint, retired []uint, cancel context.CancelFunc) *RewrapJob {
	return &RewrapJob{
		FromVersion:     from,
		ToVersion:       to,
		RetiredVersions: retired,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
}

func (j *RewrapJob) finish(stats RewrapStats, err error) {
	j.stats, j.err = stats, err
	j.cancel()
	close(j.done)
}

func (j *RewrapJob) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Done is closed when the job has finished.
func (j *RewrapJob) Done() <-chan struct{} {
	return j.done
}

// Cancel stops the job. The retired key is kept.
func (j *RewrapJob) Cancel() {
	j.cancel()
}

// Wait blocks until the job finishes or ctx is done. The stats add up every retired
// version; Forgot reports whether all of them were forgotten.
func (j *RewrapJob) Wait(ctx context.Context) (RewrapStats, error) {
	select {
	case <-j.done:
		return j.stats, j.err
	case <-ctx.Done():
		return RewrapStats{}, ctx.Err()
	}
}

// RewrapAll moves every entry under fromVersion to the active version, then forgets
// fromVersion once no wrap under it is in flight and a full pass finds nothing left.
func (s *shredUseCase) RewrapAll(ctx context.Context, fromVersion uint) (RewrapStats, error) {
	start := time.Now()
	stats := RewrapStats{FromVersion: fromVersion, ToVersion: s.masterKeys.ActiveVersion()}
	if fromVersion == stats.ToVersion {
		return stats, shredderDomain.ErrRewrapActiveVersion
	}

	logger := s.logger.With(
		slog.Uint64("from_version", uint64(fromVersion)),
		slog.Uint64("to_version", uint64(stats.ToVersion)),
	)
	logger.Info("rewrap started")

	for stats.Passes < s.rewrap.MaxPasses {
		// Wraps started before the rotation may still land under fromVersion. Once they
		// drain nothing new can appear under it, so an empty pass is conclusive.
		if err := s.masterKeys.WaitIdle(ctx, fromVersion); err != nil {
			return s.abort(logger, stats, start, err)
		}

		pass, err := s.rewrapPass(ctx, fromVersion)
		stats.Passes++
		stats.Scanned += pass.Scanned
		stats.Rewrapped += pass.Rewrapped
		stats.Skipped += pass.Skipped
		if err != nil {
			return s.abort(logger, stats, start, err)
		}

		logger.Info("rewrap pass completed",
			slog.Int("pass", stats.Passes),
			slog.Int64("scanned", pass.Scanned),
			slog.Int64("rewrapped", pass.Rewrapped),
			slog.Int64("skipped", pass.Skipped),
		)

		if pass.Scanned == 0 {
			if err := s.masterKeys.Forget(fromVersion); err != nil {
				return s.abort(logger, stats, start, err)
			}
			stats.Forgot = true
			stats.Duration = time.Since(start)
			logger.Info("retired master key forgotten",
				slog.Int64("rewrapped", stats.Rewrapped),
				slog.Duration("duration", stats.Duration),
			)
			return stats, nil
		}
	}

	return s.abort(logger, stats, start, shredderDomain.ErrRewrapIncomplete)
}

func (s *shredUseCase) abort(
	logger *slog.Logger,
	stats RewrapStats,
	start time.Time,
	err error,
) (RewrapStats, error) {
	stats.Duration = time.Since(start)
	logger.Error("rewrap aborted, retired master key kept",
		slog.Int("passes", stats.Passes),
		slog.Int64("rewrapped", stats.Rewrapped),
		slog.Any("error", err),
	)
	return stats, err
}

type passCounters struct {
	scanned   atomic.Int64
	rewrapped atomic.Int64
	skipped   atomic.Int64
}

// rewrapPass scans the store once and rewraps what it finds with a bounded worker pool.
func (s *shredUseCase) rewrapPass(ctx context.Context, fromVersion uint) (RewrapStats, error) {
	var counters passCounters

	var limiter *rate.Limiter
	if s.rewrap.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rewrap.RatePerSecond), max(1, int(s.rewrap.RatePerSecond)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rewrap.Concurrency)

	var listErr error
	for id, err := range s.keyStore.ListByMasterKeyVersion(gctx, fromVersion) {
		if err != nil {
			listErr = err
			break
		}
		counters.scanned.Inc()
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				listErr = err
				break
			}
		}
		g.Go(func() error {
			return s.rewrapOne(gctx, id, fromVersion, &counters)
		})
	}

	err := g.Wait()
	if err == nil {
		err = listErr
	}

	return RewrapStats{
		Scanned:   counters.scanned.Load(),
		Rewrapped: counters.rewrapped.Load(),
		Skipped:   counters.skipped.Load(),
	}, err
}

// rewrapOne moves a single entry. Entries shredded or rewrapped concurrently are skipped:
// the conditional Replace lets a shred always win.
func (s *shredUseCase) rewrapOne(
	ctx context.Context,
	id uuid.UUID,
	fromVersion uint,
	counters *passCounters,
) error {
	entry, err := s.keyStore.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shredderDomain.ErrEntryNotFound) {
			counters.skipped.Inc()
			return nil
		}
		return err
	}
	defer entry.Zero()

	if entry.MasterKeyVersion != fromVersion {
		counters.skipped.Inc()
		return nil
	}

	dek, err := s.masterKeys.Unwrap(entry.Wrapped(), id[:])
	if err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	defer cryptoDomain.Zero(dek)

	wrapped, release, err := s.masterKeys.Wrap(dek, id[:])
	if err != nil {
		return err
	}
	defer release()

	next := &shredderDomain.WrappedKeyEntry{
		RecordID:         id,
		Algorithm:        entry.Algorithm,
		WrapNonce:        wrapped.Nonce,
		WrappedDek:       wrapped.Ciphertext,
		MasterKeyVersion: wrapped.MasterKeyVersion,
		CreatedAt:        entry.CreatedAt,
	}
	ok, err := s.keyStore.Replace(ctx, next, fromVersion)
	if err != nil {
		return err
	}
	if !ok {
		counters.skipped.Inc()
		return nil
	}
	counters.rewrapped.Inc()
	return nil
}
