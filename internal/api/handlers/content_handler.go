package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/karasuemlak/backend/internal/domain/entities"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

// ContentService defines the direct CMS write operation
type ContentService interface {
	UpdateField(ctx context.Context, ref entities.ContentRef, value string) (*entities.QualityAnalysis, error)
}

// ContentHandler handles direct content field updates from the CMS
type ContentHandler struct {
	service ContentService
}

// NewContentHandler creates a new content handler
func NewContentHandler(service ContentService) *ContentHandler {
	return &ContentHandler{service: service}
}

type updateFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// UpdateField handles PATCH /api/admin/content/{type}/{id}
func (h *ContentHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	contentType, err := entities.ParseContentType(r.PathValue("type"))
	if err != nil {
		respondWithAppError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	var payload updateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Geçersiz istek gövdesi")
		return
	}

	ref := entities.ContentRef{Type: contentType, ID: r.PathValue("id"), Field: payload.Field}
	analysis, err := h.service.UpdateField(r.Context(), ref, payload.Value)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"content_type":  ref.Type,
		"content_id":    ref.ID,
		"field":         ref.Field,
		"quality_score": analysis.Score,
		"analysis":      analysis,
	})
}
