package service

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

const waitIdleInterval = 10 * time.Millisecond

// MasterKeyManagerService wraps and unwraps DEKs with the versioned keys of a
// MasterKeyChain. Master keys always wrap with AES-256-GCM.
type MasterKeyManagerService struct {
	chain  *cryptoDomain.MasterKeyChain
	cipher EnvelopeCipher
}

// NewMasterKeyManager creates a new MasterKeyManagerService over chain.
func NewMasterKeyManager(chain *cryptoDomain.MasterKeyChain, cipher EnvelopeCipher) *MasterKeyManagerService {
	return &MasterKeyManagerService{chain: chain, cipher: cipher}
}

// ActiveVersion returns the version new wraps are performed under.
func (m *MasterKeyManagerService) ActiveVersion() uint {
	return m.chain.ActiveVersion()
}

// RetiredVersions returns the versions still held only for unwrapping.
func (m *MasterKeyManagerService) RetiredVersions() []uint {
	return m.chain.RetiredVersions()
}

// Wrap seals dek under the active master key with a fresh nonce.
func (m *MasterKeyManagerService) Wrap(dek, aad []byte) (cryptoDomain.WrappedDek, func(), error) {
	var wrapped cryptoDomain.WrappedDek

	nonce, err := GenerateNonce()
	if err != nil {
		return wrapped, nil, err
	}

	release, err := m.chain.WithActiveKey(func(mk *cryptoDomain.MasterKey) error {
		ciphertext, err := m.cipher.Seal(cryptoDomain.AESGCM, mk.Key, nonce, dek, aad)
		if err != nil {
			return err
		}
		wrapped = cryptoDomain.WrappedDek{
			Nonce:            nonce,
			Ciphertext:       ciphertext,
			MasterKeyVersion: mk.Version,
		}
		return nil
	})
	if err != nil {
		return cryptoDomain.WrappedDek{}, nil, err
	}

	return wrapped, release, nil
}

// Unwrap opens wrapped with the master key version it names.
//
// Returns ErrMasterKeyVersionUnknown when the version is not held and ErrAuthFailure when
// the wrapped DEK does not verify.
func (m *MasterKeyManagerService) Unwrap(wrapped cryptoDomain.WrappedDek, aad []byte) ([]byte, error) {
	var dek []byte
	err := m.chain.WithKey(wrapped.MasterKeyVersion, func(mk *cryptoDomain.MasterKey) error {
		var err error
		dek, err = m.cipher.Open(cryptoDomain.AESGCM, mk.Key, wrapped.Nonce, wrapped.Ciphertext, aad)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dek, nil
}

// Rotate installs a copy of newKey as the next version and makes it active.
func (m *MasterKeyManagerService) Rotate(newKey []byte) (uint, error) {
	return m.chain.Rotate(newKey)
}

// WaitIdle polls until every wrap registered under version has been released.
func (m *MasterKeyManagerService) WaitIdle(ctx context.Context, version uint) error {
	if m.chain.InFlight(version) == 0 {
		return nil
	}

	ticker := time.NewTicker(waitIdleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.chain.InFlight(version) == 0 {
				return nil
			}
		}
	}
}

// Forget zeroizes and drops a retired version.
func (m *MasterKeyManagerService) Forget(version uint) error {
	return m.chain.Forget(version)
}
