package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

const (
	unavailableRetryAfter = 5
	rateLimitRetryAfter   = 60
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: message})
}

// respondWithAppError maps err onto its status code. Messages of typed
// errors are user-facing and returned verbatim; anything else is hidden.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	kind := apperrors.TypeOf(err)

	message := "Beklenmeyen bir hata oluştu"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}

	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(unavailableRetryAfter))
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", strconv.Itoa(rateLimitRetryAfter))
	}

	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}

	respondWithJSON(w, status, errorResponse{Error: message, Kind: string(kind)})
}
