// Package mocks provides mock implementations of the shredder use case interfaces.
package mocks

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
	"github.com/allisson/cryptoshred/internal/shredder/usecase"
)

// MockKeyStore is a mock implementation of usecase.KeyStore.
type MockKeyStore struct {
	mock.Mock
}

// Put mocks the Put method of KeyStore.
func (m *MockKeyStore) Put(ctx context.Context, entry *shredderDomain.WrappedKeyEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// Get mocks the Get method of KeyStore.
func (m *MockKeyStore) Get(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shredderDomain.WrappedKeyEntry), args.Error(1)
}

// Remove mocks the Remove method of KeyStore.
func (m *MockKeyStore) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// Replace mocks the Replace method of KeyStore.
func (m *MockKeyStore) Replace(
	ctx context.Context,
	entry *shredderDomain.WrappedKeyEntry,
	expectedVersion uint,
) (bool, error) {
	args := m.Called(ctx, entry, expectedVersion)
	return args.Bool(0), args.Error(1)
}

// ListByMasterKeyVersion mocks the ListByMasterKeyVersion method of KeyStore.
func (m *MockKeyStore) ListByMasterKeyVersion(ctx context.Context, version uint) iter.Seq2[uuid.UUID, error] {
	args := m.Called(ctx, version)
	return args.Get(0).(iter.Seq2[uuid.UUID, error])
}

// MockShredUseCase is a mock implementation of usecase.ShredUseCase.
type MockShredUseCase struct {
	mock.Mock
}

// LogEvent mocks the LogEvent method of ShredUseCase.
func (m *MockShredUseCase) LogEvent(ctx context.Context, payload []byte) (*shredderDomain.EncryptedRecord, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shredderDomain.EncryptedRecord), args.Error(1)
}

// ReadEvent mocks the ReadEvent method of ShredUseCase.
func (m *MockShredUseCase) ReadEvent(ctx context.Context, record *shredderDomain.EncryptedRecord) ([]byte, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Shred mocks the Shred method of ShredUseCase.
func (m *MockShredUseCase) Shred(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ExportWrappedKey mocks the ExportWrappedKey method of ShredUseCase.
func (m *MockShredUseCase) ExportWrappedKey(ctx context.Context, id uuid.UUID) (*shredderDomain.WrappedKeyBlob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shredderDomain.WrappedKeyBlob), args.Error(1)
}

// RestoreWrappedKey mocks the RestoreWrappedKey method of ShredUseCase.
func (m *MockShredUseCase) RestoreWrappedKey(
	ctx context.Context,
	id uuid.UUID,
	blob shredderDomain.WrappedKeyBlob,
) error {
	args := m.Called(ctx, id, blob)
	return args.Error(0)
}

// RotateMasterKey mocks the RotateMasterKey method of ShredUseCase.
func (m *MockShredUseCase) RotateMasterKey(ctx context.Context, newKey []byte) (*usecase.RewrapJob, error) {
	args := m.Called(ctx, newKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RewrapJob), args.Error(1)
}

// RewrapAll mocks the RewrapAll method of ShredUseCase.
func (m *MockShredUseCase) RewrapAll(ctx context.Context, fromVersion uint) (usecase.RewrapStats, error) {
	args := m.Called(ctx, fromVersion)
	return args.Get(0).(usecase.RewrapStats), args.Error(1)
}
