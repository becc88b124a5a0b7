// Package postgresql implements a durable KeyStore on PostgreSQL.
//
// A shred keeps the row as a tombstone: the key material is overwritten and shredded_at is
// set, so the record id can never be inserted again.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/lib/pq"

	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

// DefaultPageSize is the number of ids fetched per ListByMasterKeyVersion query.
const DefaultPageSize = 500

const uniqueViolation = "23505"

// KeyStore persists wrapped DEKs in the wrapped_keys table using native UUID and BYTEA types.
type KeyStore struct {
	db       *sql.DB
	pageSize int
}

// NewKeyStore creates a new PostgreSQL KeyStore. pageSize <= 0 selects DefaultPageSize.
func NewKeyStore(db *sql.DB, pageSize int) *KeyStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &KeyStore{db: db, pageSize: pageSize}
}

// Put inserts a new wrapped key entry.
func (p *KeyStore) Put(ctx context.Context, entry *shredderDomain.WrappedKeyEntry) error {
	query := `INSERT INTO wrapped_keys (record_id, algorithm, wrap_nonce, wrapped_dek, master_key_version, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := p.db.ExecContext(
		ctx,
		query,
		entry.RecordID,
		entry.Algorithm,
		entry.WrapNonce,
		entry.WrappedDek,
		entry.MasterKeyVersion,
		entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return p.conflict(ctx, entry.RecordID)
		}
		return unavailable(err, "failed to create wrapped key")
	}
	return nil
}

// conflict tells a live duplicate apart from a tombstone. Tombstones are never deleted, so
// the answer cannot go stale.
func (p *KeyStore) conflict(ctx context.Context, id uuid.UUID) error {
	var shredded bool
	err := p.db.QueryRowContext(
		ctx,
		`SELECT shredded_at IS NOT NULL FROM wrapped_keys WHERE record_id = $1`,
		id,
	).Scan(&shredded)
	if err != nil {
		return unavailable(err, "failed to check record id")
	}
	if shredded {
		return shredderDomain.ErrErased
	}
	return shredderDomain.ErrDuplicateRecordID
}

// Get retrieves the wrapped key entry for id.
func (p *KeyStore) Get(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyEntry, error) {
	query := `SELECT record_id, algorithm, wrap_nonce, wrapped_dek, master_key_version, created_at
			  FROM wrapped_keys
			  WHERE record_id = $1 AND shredded_at IS NULL`

	var entry shredderDomain.WrappedKeyEntry
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&entry.RecordID,
		&entry.Algorithm,
		&entry.WrapNonce,
		&entry.WrappedDek,
		&entry.MasterKeyVersion,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shredderDomain.ErrEntryNotFound
		}
		return nil, unavailable(err, "failed to get wrapped key")
	}
	return &entry, nil
}

// Version returns the master key version of the live entry for id.
func (p *KeyStore) Version(ctx context.Context, id uuid.UUID) (uint, error) {
	query := `SELECT master_key_version
			  FROM wrapped_keys
			  WHERE record_id = $1 AND shredded_at IS NULL`

	var version uint
	if err := p.db.QueryRowContext(ctx, query, id).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, shredderDomain.ErrEntryNotFound
		}
		return 0, unavailable(err, "failed to get wrapped key version")
	}
	return version, nil
}

const (
	shredLiveQuery = `UPDATE wrapped_keys
			  SET wrap_nonce = '',
				  wrapped_dek = '',
				  master_key_version = 0,
				  shredded_at = NOW()
			  WHERE record_id = $1 AND shredded_at IS NULL`

	shredAbsentQuery = `INSERT INTO wrapped_keys (record_id, algorithm, wrap_nonce, wrapped_dek, master_key_version, shredded_at)
			  VALUES ($1, '', '', '', 0, NOW())
			  ON CONFLICT (record_id) DO NOTHING`
)

// Remove overwrites the entry for id with a tombstone, inserting one when id was never
// stored. A Put that lands between the two statements is caught by the final update.
func (p *KeyStore) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := p.exec(ctx, shredLiveQuery, id)
	if err != nil || n > 0 {
		return n > 0, err
	}
	n, err = p.exec(ctx, shredAbsentQuery, id)
	if err != nil || n > 0 {
		return false, err
	}
	n, err = p.exec(ctx, shredLiveQuery, id)
	return n > 0, err
}

func (p *KeyStore) exec(ctx context.Context, query string, id uuid.UUID) (int64, error) {
	result, err := p.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, unavailable(err, "failed to shred wrapped key")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable(err, "failed to read affected rows")
	}
	return n, nil
}

// Replace updates the entry only while it is still wrapped under expectedVersion.
func (p *KeyStore) Replace(
	ctx context.Context,
	entry *shredderDomain.WrappedKeyEntry,
	expectedVersion uint,
) (bool, error) {
	query := `UPDATE wrapped_keys
			  SET algorithm = $1,
				  wrap_nonce = $2,
				  wrapped_dek = $3,
				  master_key_version = $4
			  WHERE record_id = $5 AND master_key_version = $6 AND shredded_at IS NULL`

	result, err := p.db.ExecContext(
		ctx,
		query,
		entry.Algorithm,
		entry.WrapNonce,
		entry.WrappedDek,
		entry.MasterKeyVersion,
		entry.RecordID,
		expectedVersion,
	)
	if err != nil {
		return false, unavailable(err, "failed to replace wrapped key")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, unavailable(err, "failed to read affected rows")
	}
	return n == 1, nil
}

// ListByMasterKeyVersion pages through ids under version in record_id order. Each page
// resumes after the last id seen, so rows rewrapped between pages are never revisited.
func (p *KeyStore) ListByMasterKeyVersion(
	ctx context.Context,
	version uint,
) iter.Seq2[uuid.UUID, error] {
	query := `SELECT record_id
			  FROM wrapped_keys
			  WHERE master_key_version = $1 AND record_id > $2 AND shredded_at IS NULL
			  ORDER BY record_id ASC
			  LIMIT $3`

	return func(yield func(uuid.UUID, error) bool) {
		after := uuid.Nil
		for {
			ids, err := p.page(ctx, query, version, after)
			if err != nil {
				yield(uuid.Nil, err)
				return
			}
			for _, id := range ids {
				if !yield(id, nil) {
					return
				}
			}
			if len(ids) < p.pageSize {
				return
			}
			after = ids[len(ids)-1]
		}
	}
}

func (p *KeyStore) page(ctx context.Context, query string, version uint, after uuid.UUID) ([]uuid.UUID, error) {
	rows, err := p.db.QueryContext(ctx, query, version, after, p.pageSize)
	if err != nil {
		return nil, unavailable(err, "failed to list wrapped keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]uuid.UUID, 0, p.pageSize)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable(err, "failed to scan record id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "error iterating wrapped keys")
	}
	return ids, nil
}

// unavailable classifies a driver error as ErrKeyStoreUnavailable, keeping context errors
// as they are so callers can tell cancellation apart from an outage.
func unavailable(err error, message string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", shredderDomain.ErrKeyStoreUnavailable, message, err)
}
