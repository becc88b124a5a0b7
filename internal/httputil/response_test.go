package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

func TestHandleErrorGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name:           "erased",
			err:            shredderDomain.ErrErased,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "erased",
			expectedMsg:    "The record has been erased",
		},
		{
			name:           "entry not found",
			err:            shredderDomain.ErrEntryNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "not_found",
		},
		{
			name:           "auth failure hides details",
			err:            fmt.Errorf("record abc: %w", cryptoDomain.ErrAuthFailure),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "integrity_failure",
			expectedMsg:    "The request could not be processed",
		},
		{
			name:           "unknown master key version",
			err:            cryptoDomain.ErrMasterKeyVersionUnknown,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "integrity_failure",
		},
		{
			name:           "duplicate record id",
			err:            shredderDomain.ErrDuplicateRecordID,
			expectedStatus: http.StatusConflict,
			expectedCode:   "conflict",
		},
		{
			name:           "invalid blob",
			err:            shredderDomain.ErrInvalidBlobFormat,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "invalid_input",
			expectedMsg:    shredderDomain.ErrInvalidBlobFormat.Error(),
		},
		{
			name:           "key store unavailable",
			err:            fmt.Errorf("%w: dial tcp", shredderDomain.ErrKeyStoreUnavailable),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "unavailable",
		},
		{
			name:           "unknown error",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "internal_error",
			expectedMsg:    "An internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			HandleErrorGin(c, tt.err, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedCode, response.Error)
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, response.Message)
			}
		})
	}
}

func TestHandleErrorGin_NilError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleErrorGin(c, nil, nil)

	assert.Equal(t, 0, w.Body.Len())
}

func TestHandleErrorGin_UnavailableSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleErrorGin(c, shredderDomain.ErrKeyStoreUnavailable, nil)

	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestHandleBadRequestAndValidationErrorGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	HandleBadRequestGin(c, errors.New("unexpected EOF"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"bad_request","message":"unexpected EOF"}`, w.Body.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	HandleValidationErrorGin(c, errors.New("nonce: cannot be blank."), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"validation_error","message":"nonce: cannot be blank."}`, w.Body.String())
}
