// Package http provides HTTP handlers for the crypto-shred record API.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/cryptoshred/internal/httputil"
	"github.com/allisson/cryptoshred/internal/shredder/http/dto"
	shredderUseCase "github.com/allisson/cryptoshred/internal/shredder/usecase"
	customValidation "github.com/allisson/cryptoshred/internal/validation"
)

// RecordHandler handles HTTP requests for record encryption, erasure and wrapped key backup.
type RecordHandler struct {
	useCase shredderUseCase.ShredUseCase
	logger  *slog.Logger
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(useCase shredderUseCase.ShredUseCase, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// RegisterRoutes mounts the record routes on router.
func (h *RecordHandler) RegisterRoutes(router gin.IRouter) {
	records := router.Group("/records")
	records.POST("", h.LogEventHandler)
	records.POST("/read", h.ReadEventHandler)
	records.DELETE("/:id", h.ShredHandler)
	records.GET("/:id/wrapped-key", h.ExportWrappedKeyHandler)
	records.PUT("/:id/wrapped-key", h.RestoreWrappedKeyHandler)
}

// LogEventHandler encrypts a payload under a fresh record id.
// POST /v1/records - Returns 201 Created with the encrypted record.
func (h *RecordHandler) LogEventHandler(c *gin.Context) {
	var req dto.LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	record, err := h.useCase.LogEvent(c.Request.Context(), req.DecodedPayload())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapRecordToResponse(record))
}

// ReadEventHandler decrypts a record.
// POST /v1/records/read - Returns 200 OK with the payload, 404 when erased.
func (h *RecordHandler) ReadEventHandler(c *gin.Context) {
	var req dto.ReadEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	payload, err := h.useCase.ReadEvent(c.Request.Context(), req.ToRecord())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPayloadToResponse(payload))
}

// ShredHandler erases a record.
// DELETE /v1/records/:id - Returns 204 No Content whether or not the record existed.
func (h *RecordHandler) ShredHandler(c *gin.Context) {
	id, ok := h.parseRecordID(c)
	if !ok {
		return
	}

	if err := h.useCase.Shred(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ExportWrappedKeyHandler returns the wrapped DEK of a record for external backup.
// GET /v1/records/:id/wrapped-key - Returns 200 OK, 404 when erased.
func (h *RecordHandler) ExportWrappedKeyHandler(c *gin.Context) {
	id, ok := h.parseRecordID(c)
	if !ok {
		return
	}

	blob, err := h.useCase.ExportWrappedKey(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapBlobToResponse(id.String(), blob))
}

// RestoreWrappedKeyHandler re-inserts an exported wrapped DEK.
// PUT /v1/records/:id/wrapped-key - Returns 204 No Content, 409 when already present and
// 404 when the record was shredded.
func (h *RecordHandler) RestoreWrappedKeyHandler(c *gin.Context) {
	id, ok := h.parseRecordID(c)
	if !ok {
		return
	}

	var req dto.RestoreWrappedKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	blob, err := req.Blob()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if err := h.useCase.RestoreWrappedKey(c.Request.Context(), id, blob); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RecordHandler) parseRecordID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid record ID format: must be a valid UUID"),
			h.logger)
		return uuid.Nil, false
	}
	return id, true
}
