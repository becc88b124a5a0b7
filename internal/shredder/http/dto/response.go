package dto

import (
	"encoding/base64"

	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

// EncryptedRecordResponse is the caller-held part of a logged event.
type EncryptedRecordResponse struct {
	RecordID   string `json:"record_id"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// MapRecordToResponse converts an EncryptedRecord to its response form.
func MapRecordToResponse(record *shredderDomain.EncryptedRecord) EncryptedRecordResponse {
	return EncryptedRecordResponse{
		RecordID:   record.RecordID.String(),
		Ciphertext: base64.StdEncoding.EncodeToString(record.Ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(record.Nonce),
	}
}

// ReadEventResponse carries the decrypted payload.
type ReadEventResponse struct {
	Payload string `json:"payload"`
}

// MapPayloadToResponse base64-encodes a decrypted payload.
func MapPayloadToResponse(payload []byte) ReadEventResponse {
	return ReadEventResponse{Payload: base64.StdEncoding.EncodeToString(payload)}
}

// WrappedKeyResponse carries an exported wrapped key.
type WrappedKeyResponse struct {
	RecordID         string `json:"record_id"`
	WrappedKey       string `json:"wrapped_key"`
	MasterKeyVersion uint   `json:"master_key_version"`
	Algorithm        string `json:"algorithm"`
}

// MapBlobToResponse converts an exported blob to its response form.
func MapBlobToResponse(recordID string, blob *shredderDomain.WrappedKeyBlob) WrappedKeyResponse {
	return WrappedKeyResponse{
		RecordID:         recordID,
		WrappedKey:       blob.String(),
		MasterKeyVersion: blob.MasterKeyVersion,
		Algorithm:        string(blob.Algorithm),
	}
}
