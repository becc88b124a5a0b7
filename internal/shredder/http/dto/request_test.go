package dto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func TestLogEventRequest_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := LogEventRequest{Payload: b64([]byte("hello"))}
		require.NoError(t, req.Validate())
		assert.Equal(t, []byte("hello"), req.DecodedPayload())
	})

	t.Run("empty payload", func(t *testing.T) {
		req := LogEventRequest{}
		require.NoError(t, req.Validate())
		assert.Empty(t, req.DecodedPayload())
	})

	t.Run("invalid base64", func(t *testing.T) {
		req := LogEventRequest{Payload: "***"}
		assert.Error(t, req.Validate())
	})
}

func TestReadEventRequest_Validate(t *testing.T) {
	id := shredderDomain.NewRecordID()
	nonce := make([]byte, cryptoDomain.NonceSize)
	valid := ReadEventRequest{
		RecordID:   id.String(),
		Ciphertext: b64([]byte("ciphertext-bytes")),
		Nonce:      b64(nonce),
	}

	t.Run("valid", func(t *testing.T) {
		req := valid
		require.NoError(t, req.Validate())

		record := req.ToRecord()
		assert.Equal(t, id, record.RecordID)
		assert.Equal(t, []byte("ciphertext-bytes"), record.Ciphertext)
		assert.Equal(t, nonce, record.Nonce)
	})

	tests := []struct {
		name   string
		mutate func(r *ReadEventRequest)
		field  string
	}{
		{name: "missing record id", mutate: func(r *ReadEventRequest) { r.RecordID = "" }, field: "record_id"},
		{name: "invalid record id", mutate: func(r *ReadEventRequest) { r.RecordID = "log_123" }, field: "record_id"},
		{name: "missing ciphertext", mutate: func(r *ReadEventRequest) { r.Ciphertext = "" }, field: "ciphertext"},
		{name: "short nonce", mutate: func(r *ReadEventRequest) { r.Nonce = b64([]byte("short")) }, field: "nonce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestRestoreWrappedKeyRequest_Validate(t *testing.T) {
	blob := shredderDomain.WrappedKeyBlob{
		MasterKeyVersion: 2,
		Algorithm:        cryptoDomain.AESGCM,
		WrapNonce:        make([]byte, cryptoDomain.NonceSize),
		WrappedDek:       make([]byte, cryptoDomain.KeySize+cryptoDomain.TagSize),
	}

	t.Run("valid", func(t *testing.T) {
		req := RestoreWrappedKeyRequest{WrappedKey: blob.String()}
		require.NoError(t, req.Validate())

		parsed, err := req.Blob()
		require.NoError(t, err)
		assert.Equal(t, blob, parsed)
	})

	t.Run("missing", func(t *testing.T) {
		req := RestoreWrappedKeyRequest{}
		assert.Error(t, req.Validate())
	})

	t.Run("malformed", func(t *testing.T) {
		req := RestoreWrappedKeyRequest{WrappedKey: "v2:aes-gcm:only-three"}
		assert.Error(t, req.Validate())
	})
}
