package testutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MasterKey returns a deterministic 32-byte key filled with b.
func MasterKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, cryptoDomain.KeySize)
}

// MasterKeysEnv renders keys in the MASTER_KEYS "version:base64" format. Key i gets version i+1.
func MasterKeysEnv(keys ...[]byte) string {
	entries := make([]string, len(keys))
	for i, key := range keys {
		entries[i] = fmt.Sprintf("%d:%s", i+1, base64.StdEncoding.EncodeToString(key))
	}
	return strings.Join(entries, ",")
}

// NewMasterKeyChain returns a chain holding keys as versions 1..n with active as the active
// version. The chain is zeroized when the test ends.
func NewMasterKeyChain(t *testing.T, active uint, keys ...[]byte) *cryptoDomain.MasterKeyChain {
	t.Helper()
	chain, err := cryptoDomain.ParseMasterKeyChain(MasterKeysEnv(keys...), active)
	require.NoError(t, err)
	t.Cleanup(chain.Close)
	return chain
}
