package domain

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

// WrappedKeyBlob is a wrapped DEK exported for durable storage outside the key store,
// typically next to the ciphertext. It is useless without the master key version it names.
//
// Text form: "v<version>:<algorithm>:<base64 wrap nonce>:<base64 wrapped dek>"
type WrappedKeyBlob struct {
	MasterKeyVersion uint
	Algorithm        cryptoDomain.Algorithm
	WrapNonce        []byte
	WrappedDek       []byte
}

// ParseWrappedKeyBlob parses the text form produced by String.
func ParseWrappedKeyBlob(content string) (WrappedKeyBlob, error) {
	parts := strings.Split(content, ":")
	if len(parts) != 4 {
		return WrappedKeyBlob{}, fmt.Errorf(
			"%w: expected format 'v<version>:algorithm:nonce:wrapped', got %d parts",
			ErrInvalidBlobFormat,
			len(parts),
		)
	}

	raw, ok := strings.CutPrefix(parts[0], "v")
	if !ok {
		return WrappedKeyBlob{}, fmt.Errorf("%w: missing 'v' prefix", ErrInvalidBlobVersion)
	}
	version, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || version == 0 {
		return WrappedKeyBlob{}, fmt.Errorf("%w: %q", ErrInvalidBlobVersion, raw)
	}

	alg, err := cryptoDomain.ParseAlgorithm(parts[1])
	if err != nil {
		return WrappedKeyBlob{}, err
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return WrappedKeyBlob{}, fmt.Errorf("%w: nonce: %v", ErrInvalidBlobBase64, err)
	}
	if len(nonce) != cryptoDomain.NonceSize {
		return WrappedKeyBlob{}, cryptoDomain.ErrInvalidNonceSize
	}

	wrapped, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return WrappedKeyBlob{}, fmt.Errorf("%w: wrapped dek: %v", ErrInvalidBlobBase64, err)
	}

	return WrappedKeyBlob{
		MasterKeyVersion: uint(version),
		Algorithm:        alg,
		WrapNonce:        nonce,
		WrappedDek:       wrapped,
	}, nil
}

// ParseWrappedKeyBlobBytes splits the binary form produced by Bytes.
func ParseWrappedKeyBlobBytes(
	b []byte,
	version uint,
	alg cryptoDomain.Algorithm,
) (WrappedKeyBlob, error) {
	if len(b) <= cryptoDomain.NonceSize {
		return WrappedKeyBlob{}, fmt.Errorf("%w: %d bytes", ErrInvalidBlobFormat, len(b))
	}
	return WrappedKeyBlob{
		MasterKeyVersion: version,
		Algorithm:        alg,
		WrapNonce:        slices.Clone(b[:cryptoDomain.NonceSize]),
		WrappedDek:       slices.Clone(b[cryptoDomain.NonceSize:]),
	}, nil
}

// String serializes the blob to its text form.
func (b WrappedKeyBlob) String() string {
	return fmt.Sprintf(
		"v%d:%s:%s:%s",
		b.MasterKeyVersion,
		b.Algorithm,
		base64.StdEncoding.EncodeToString(b.WrapNonce),
		base64.StdEncoding.EncodeToString(b.WrappedDek),
	)
}

// Bytes returns the wrap nonce followed by the wrapped DEK.
func (b WrappedKeyBlob) Bytes() []byte {
	out := make([]byte, 0, len(b.WrapNonce)+len(b.WrappedDek))
	out = append(out, b.WrapNonce...)
	return append(out, b.WrappedDek...)
}

// Entry converts the blob back into a key store entry for recordID.
func (b WrappedKeyBlob) Entry(recordID uuid.UUID) *WrappedKeyEntry {
	return &WrappedKeyEntry{
		RecordID:         recordID,
		Algorithm:        b.Algorithm,
		WrapNonce:        slices.Clone(b.WrapNonce),
		WrappedDek:       slices.Clone(b.WrappedDek),
		MasterKeyVersion: b.MasterKeyVersion,
		CreatedAt:        time.Now().UTC(),
	}
}
