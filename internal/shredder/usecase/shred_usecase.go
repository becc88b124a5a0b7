package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	cryptoService "github.com/allisson/cryptoshred/internal/crypto/service"
	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

// shredUseCase implements ShredUseCase.
type shredUseCase struct {
	keyStore   KeyStore
	cipher     cryptoService.EnvelopeCipher
	masterKeys cryptoService.MasterKeyManager
	algorithm  cryptoDomain.Algorithm
	rewrap     RewrapConfig
	logger     *slog.Logger

	mu  sync.Mutex
	job *RewrapJob
}

// NewShredUseCase creates a new ShredUseCase sealing payloads with algorithm.
func NewShredUseCase(
	keyStore KeyStore,
	cipher cryptoService.EnvelopeCipher,
	masterKeys cryptoService.MasterKeyManager,
	algorithm cryptoDomain.Algorithm,
	rewrap RewrapConfig,
	logger *slog.Logger,
) ShredUseCase {
	return &shredUseCase{
		keyStore:   keyStore,
		cipher:     cipher,
		masterKeys: masterKeys,
		algorithm:  algorithm,
		rewrap:     rewrap.withDefaults(),
		logger:     logger,
	}
}

// LogEvent seals payload under a fresh DEK bound to a fresh record id.
func (s *shredUseCase) LogEvent(
	ctx context.Context,
	payload []byte,
) (*shredderDomain.EncryptedRecord, error) {
	id := shredderDomain.NewRecordID()
	aad := id[:]

	dek, err := cryptoService.GenerateKey()
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	nonce, err := cryptoService.GenerateNonce()
	if err != nil {
		return nil, err
	}

	ciphertext, err := s.cipher.Seal(s.algorithm, dek, nonce, payload, aad)
	if err != nil {
		return nil, err
	}

	wrapped, release, err := s.masterKeys.Wrap(dek, aad)
	if err != nil {
		return nil, err
	}
	defer release()

	entry := &shredderDomain.WrappedKeyEntry{
		RecordID:         id,
		Algorithm:        s.algorithm,
		WrapNonce:        wrapped.Nonce,
		WrappedDek:       wrapped.Ciphertext,
		MasterKeyVersion: wrapped.MasterKeyVersion,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.keyStore.Put(ctx, entry); err != nil {
		return nil, err
	}

	return &shredderDomain.EncryptedRecord{
		RecordID:   id,
		Ciphertext: ciphertext,
		Nonce:      nonce,
	}, nil
}

// ReadEvent decrypts record with the DEK currently held for its record id.
func (s *shredUseCase) ReadEvent(
	ctx context.Context,
	record *shredderDomain.EncryptedRecord,
) ([]byte, error) {
	entry, dek, err := s.unwrapDek(ctx, record.RecordID)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	plaintext, err := s.cipher.Open(entry.Algorithm, dek, record.Nonce, record.Ciphertext, record.RecordID[:])
	if err != nil {
		if errors.Is(err, cryptoDomain.ErrInvalidNonceSize) {
			err = cryptoDomain.ErrAuthFailure
		}
		if errors.Is(err, cryptoDomain.ErrAuthFailure) {
			s.logger.Error("record failed authentication",
				slog.String("record_id", record.RecordID.String()),
			)
		}
		return nil, err
	}
	return plaintext, nil
}

// unwrapDek fetches and unwraps the DEK for id. A version that disappeared between the
// fetch and the unwrap means a rewrap moved the entry and the retired key was forgotten,
// so the entry is fetched once more.
func (s *shredUseCase) unwrapDek(
	ctx context.Context,
	id uuid.UUID,
) (*shredderDomain.WrappedKeyEntry, []byte, error) {
	for attempt := 0; ; attempt++ {
		entry, err := s.keyStore.Get(ctx, id)
		if err != nil {
			if errors.Is(err, shredderDomain.ErrEntryNotFound) {
				return nil, nil, shredderDomain.ErrErased
			}
			return nil, nil, err
		}

		dek, err := s.masterKeys.Unwrap(entry.Wrapped(), id[:])
		if err == nil {
			return entry, dek, nil
		}
		if errors.Is(err, cryptoDomain.ErrMasterKeyVersionUnknown) && attempt == 0 {
			continue
		}
		s.logger.Error("wrapped key failed to unwrap",
			slog.String("record_id", id.String()),
			slog.Uint64("master_key_version", uint64(entry.MasterKeyVersion)),
			slog.Any("error", err),
		)
		return nil, nil, err
	}
}

// Shred removes the wrapped DEK for id. Cancellation of ctx is ignored once called.
func (s *shredUseCase) Shred(ctx context.Context, id uuid.UUID) error {
	existed, err := s.keyStore.Remove(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	s.logger.Info("record shredded",
		slog.String("record_id", id.String()),
		slog.Bool("existed", existed),
	)
	return nil
}

// ExportWrappedKey returns the stored wrapped DEK for id.
func (s *shredUseCase) ExportWrappedKey(
	ctx context.Context,
	id uuid.UUID,
) (*shredderDomain.WrappedKeyBlob, error) {
	entry, err := s.keyStore.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shredderDomain.ErrEntryNotFound) {
			return nil, shredderDomain.ErrErased
		}
		return nil, err
	}
	blob := entry.Blob()
	return &blob, nil
}

// RestoreWrappedKey verifies blob against id and stores it under the active master key.
// Blobs wrapped under a retired version are rewrapped before they are stored, so a restore
// never adds work to a rewrap that already passed over the store. A shredded id stays
// erased: the store refuses it.
func (s *shredUseCase) RestoreWrappedKey(
	ctx context.Context,
	id uuid.UUID,
	blob shredderDomain.WrappedKeyBlob,
) error {
	if _, err := cryptoDomain.ParseAlgorithm(string(blob.Algorithm)); err != nil {
		return err
	}

	entry := blob.Entry(id)
	defer entry.Zero()

	dek, err := s.masterKeys.Unwrap(entry.Wrapped(), id[:])
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(dek)

	wrapped, release, err := s.masterKeys.Wrap(dek, id[:])
	if err != nil {
		return err
	}
	defer release()

	restored := &shredderDomain.WrappedKeyEntry{
		RecordID:         id,
		Algorithm:        blob.Algorithm,
		WrapNonce:        wrapped.Nonce,
		WrappedDek:       wrapped.Ciphertext,
		MasterKeyVersion: wrapped.MasterKeyVersion,
		CreatedAt:        entry.CreatedAt,
	}
	if err := s.keyStore.Put(ctx, restored); err != nil {
		if errors.Is(err, shredderDomain.ErrErased) {
			s.logger.Warn("restore of shredded record refused",
				slog.String("record_id", id.String()),
			)
		}
		return err
	}

	s.logger.Info("wrapped key restored",
		slog.String("record_id", id.String()),
		slog.Uint64("blob_version", uint64(blob.MasterKeyVersion)),
		slog.Uint64("master_key_version", uint64(wrapped.MasterKeyVersion)),
	)
	return nil
}

// RotateMasterKey installs newKey and rewraps every retired version in the background,
// oldest first. The job stops when ctx is cancelled or Cancel is called; retired keys not
// yet emptied are then kept.
func (s *shredUseCase) RotateMasterKey(ctx context.Context, newKey []byte) (*RewrapJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && !s.job.finished() {
		return nil, shredderDomain.ErrRewrapInProgress
	}

	from := s.masterKeys.ActiveVersion()
	to, err := s.masterKeys.Rotate(newKey)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate master key: %w", err)
	}
	retired := s.masterKeys.RetiredVersions()
	s.logger.Info("master key rotated",
		slog.Uint64("retired_version", uint64(from)),
		slog.Uint64("active_version", uint64(to)),
		slog.Any("rewrap_versions", retired),
	)

	jobCtx, cancel := context.WithCancel(ctx)
	job := newRewrapJob(from, to, retired, cancel)
	s.job = job

	go func() {
		stats, err := s.rewrapVersions(jobCtx, retired)
		job.finish(stats, err)
	}()

	return job, nil
}

// rewrapVersions runs RewrapAll for each version in turn. A version left incomplete does
// not stop the others; cancellation does.
func (s *shredUseCase) rewrapVersions(ctx context.Context, versions []uint) (RewrapStats, error) {
	total := RewrapStats{Forgot: true}
	var errs []error
	for _, version := range versions {
		stats, err := s.RewrapAll(ctx, version)
		total.add(stats)
		if err != nil {
			errs = append(errs, fmt.Errorf("version %d: %w", version, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	if len(versions) == 0 {
		total.Forgot = false
	}
	return total, errors.Join(errs...)
}
