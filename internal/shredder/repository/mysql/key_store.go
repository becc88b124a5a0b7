// Package mysql implements a durable KeyStore on MySQL.
//
// A shred keeps the row as a tombstone: the key material is overwritten and shredded_at is
// set, so the record id can never be inserted again.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

// DefaultPageSize is the number of ids fetched per ListByMasterKeyVersion query.
const DefaultPageSize = 500

const duplicateEntry = 1062

// KeyStore persists wrapped DEKs in the wrapped_keys table. Record ids are stored as
// BINARY(16) and key material as VARBINARY.
type KeyStore struct {
	db       *sql.DB
	pageSize int
}

// NewKeyStore creates a new MySQL KeyStore. pageSize <= 0 selects DefaultPageSize.
func NewKeyStore(db *sql.DB, pageSize int) *KeyStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &KeyStore{db: db, pageSize: pageSize}
}

// Put inserts a new wrapped key entry.
func (m *KeyStore) Put(ctx context.Context, entry *shredderDomain.WrappedKeyEntry) error {
	query := `INSERT INTO wrapped_keys (record_id, algorithm, wrap_nonce, wrapped_dek, master_key_version, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err := m.db.ExecContext(
		ctx,
		query,
		entry.RecordID[:],
		entry.Algorithm,
		entry.WrapNonce,
		entry.WrappedDek,
		entry.MasterKeyVersion,
		entry.CreatedAt,
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == duplicateEntry {
			return m.conflict(ctx, entry.RecordID)
		}
		return unavailable(err, "failed to create wrapped key")
	}
	return nil
}

// conflict tells a live duplicate apart from a tombstone.
func (m *KeyStore) conflict(ctx context.Context, id uuid.UUID) error {
	var shredded bool
	err := m.db.QueryRowContext(
		ctx,
		`SELECT shredded_at IS NOT NULL FROM wrapped_keys WHERE record_id = ?`,
		id[:],
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
func (m *KeyStore) Get(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyEntry, error) {
	query := `SELECT record_id, algorithm, wrap_nonce, wrapped_dek, master_key_version, created_at
			  FROM wrapped_keys
			  WHERE record_id = ? AND shredded_at IS NULL`

	var entry shredderDomain.WrappedKeyEntry
	var idBytes []byte
	err := m.db.QueryRowContext(ctx, query, id[:]).Scan(
		&idBytes,
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

	entry.RecordID, err = uuid.FromBytes(idBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal record id: %w", err)
	}
	return &entry, nil
}

// Version returns the master key version of the live entry for id.
func (m *KeyStore) Version(ctx context.Context, id uuid.UUID) (uint, error) {
	query := `SELECT master_key_version
			  FROM wrapped_keys
			  WHERE record_id = ? AND shredded_at IS NULL`

	var version uint
	if err := m.db.QueryRowContext(ctx, query, id[:]).Scan(&version); err != nil {
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
				  shredded_at = CURRENT_TIMESTAMP(6)
			  WHERE record_id = ? AND shredded_at IS NULL`

	// The no-op update makes a conflicting insert report zero affected rows.
	shredAbsentQuery = `INSERT INTO wrapped_keys (record_id, algorithm, wrap_nonce, wrapped_dek, master_key_version, shredded_at)
			  VALUES (?, '', '', '', 0, CURRENT_TIMESTAMP(6))
			  ON DUPLICATE KEY UPDATE record_id = record_id`
)

// Remove overwrites the entry for id with a tombstone, inserting one when id was never
// stored. A Put that lands between the two statements is caught by the final update.
func (m *KeyStore) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := m.exec(ctx, shredLiveQuery, id)
	if err != nil || n > 0 {
		return n > 0, err
	}
	n, err = m.exec(ctx, shredAbsentQuery, id)
	if err != nil || n > 0 {
		return false, err
	}
	n, err = m.exec(ctx, shredLiveQuery, id)
	return n > 0, err
}

func (m *KeyStore) exec(ctx context.Context, query string, id uuid.UUID) (int64, error) {
	result, err := m.db.ExecContext(ctx, query, id[:])
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
func (m *KeyStore) Replace(
	ctx context.Context,
	entry *shredderDomain.WrappedKeyEntry,
	expectedVersion uint,
) (bool, error) {
	query := `UPDATE wrapped_keys
			  SET algorithm = ?,
				  wrap_nonce = ?,
				  wrapped_dek = ?,
				  master_key_version = ?
			  WHERE record_id = ? AND master_key_version = ? AND shredded_at IS NULL`

	result, err := m.db.ExecContext(
		ctx,
		query,
		entry.Algorithm,
		entry.WrapNonce,
		entry.WrappedDek,
		entry.MasterKeyVersion,
		entry.RecordID[:],
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

// ListByMasterKeyVersion pages through ids under version in record_id order.
func (m *KeyStore) ListByMasterKeyVersion(
	ctx context.Context,
	version uint,
) iter.Seq2[uuid.UUID, error] {
	query := `SELECT record_id
			  FROM wrapped_keys
			  WHERE master_key_version = ? AND record_id > ? AND shredded_at IS NULL
			  ORDER BY record_id ASC
			  LIMIT ?`

	return func(yield func(uuid.UUID, error) bool) {
		after := uuid.Nil
		for {
			ids, err := m.page(ctx, query, version, after)
			if err != nil {
				yield(uuid.Nil, err)
				return
			}
			for _, id := range ids {
				if !yield(id, nil) {
					return
				}
			}
			if len(ids) < m.pageSize {
				return
			}
			after = ids[len(ids)-1]
		}
	}
}

func (m *KeyStore) page(ctx context.Context, query string, version uint, after uuid.UUID) ([]uuid.UUID, error) {
	rows, err := m.db.QueryContext(ctx, query, version, after[:], m.pageSize)
	if err != nil {
		return nil, unavailable(err, "failed to list wrapped keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]uuid.UUID, 0, m.pageSize)
	for rows.Next() {
		var idBytes []byte
		if err := rows.Scan(&idBytes); err != nil {
			return nil, unavailable(err, "failed to scan record id")
		}
		id, err := uuid.FromBytes(idBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "error iterating wrapped keys")
	}
	return ids, nil
}

func unavailable(err error, message string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", shredderDomain.ErrKeyStoreUnavailable, message, err)
}
