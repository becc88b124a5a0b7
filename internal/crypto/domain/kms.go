package domain

import "context"

// KMSKeeper decrypts master keys held encrypted by an external KMS. *secrets.Keeper
// from gocloud.dev satisfies it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
