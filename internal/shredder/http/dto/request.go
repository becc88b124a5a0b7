// Package dto provides data transfer objects for the record API.
package dto

import (
	"encoding/base64"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
	customValidation "github.com/allisson/cryptoshred/internal/validation"
)

// LogEventRequest carries a base64 payload to encrypt. An empty payload is allowed.
type LogEventRequest struct {
	Payload string `json:"payload"`
}

// Validate checks if the log event request is valid.
func (r *LogEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Payload, customValidation.Base64),
	)
}

// DecodedPayload returns the raw payload. Call Validate first.
func (r *LogEventRequest) DecodedPayload() []byte {
	payload, _ := base64.StdEncoding.DecodeString(r.Payload)
	return payload
}

// ReadEventRequest carries an encrypted record back for decryption.
type ReadEventRequest struct {
	RecordID   string `json:"record_id"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// Validate checks if the read event request is valid.
func (r *ReadEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RecordID,
			validation.Required,
			customValidation.UUID,
		),
		validation.Field(&r.Ciphertext,
			validation.Required,
			customValidation.Base64,
		),
		validation.Field(&r.Nonce,
			validation.Required,
			customValidation.Base64Len(cryptoDomain.NonceSize),
		),
	)
}

// ToRecord converts the request into an EncryptedRecord. Call Validate first.
func (r *ReadEventRequest) ToRecord() *shredderDomain.EncryptedRecord {
	id, _ := shredderDomain.ParseRecordID(r.RecordID)
	ciphertext, _ := base64.StdEncoding.DecodeString(r.Ciphertext)
	nonce, _ := base64.StdEncoding.DecodeString(r.Nonce)
	return &shredderDomain.EncryptedRecord{
		RecordID:   id,
		Ciphertext: ciphertext,
		Nonce:      nonce,
	}
}

// RestoreWrappedKeyRequest carries a wrapped key blob in its text form.
type RestoreWrappedKeyRequest struct {
	WrappedKey string `json:"wrapped_key"`
}

// Validate checks if the restore request is valid.
func (r *RestoreWrappedKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.WrappedKey,
			validation.Required,
			customValidation.NotBlank,
			validation.By(validateWrappedKeyBlob),
		),
	)
}

// Blob parses the wrapped key. Call Validate first.
func (r *RestoreWrappedKeyRequest) Blob() (shredderDomain.WrappedKeyBlob, error) {
	return shredderDomain.ParseWrappedKeyBlob(r.WrappedKey)
}

func validateWrappedKeyBlob(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_wrapped_key_type", "must be a string")
	}
	if s == "" {
		return nil
	}
	if _, err := shredderDomain.ParseWrappedKeyBlob(s); err != nil {
		return validation.NewError("validation_wrapped_key", "must be a valid wrapped key blob")
	}
	return nil
}
