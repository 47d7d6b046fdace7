package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/melkor648/apple-e-commerce/internal/apperror"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

// respondWithAppError maps a service error onto its status code.
func (h *Handler) respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.HTTPStatus(err)

	entry := h.logger.WithError(err).WithFields(logrus.Fields{
		"request_id": RequestIDFromContext(r.Context()),
		"op":         apperror.OpOf(err),
		"kind":       apperror.KindOf(err).String(),
		"status":     status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	respondWithError(w, status, err.Error())
}

// decodeJSON reads a single JSON document of at most maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.Validation("decode request", "request body too large")
		case errors.Is(err, io.EOF):
			return apperror.Validation("decode request", "request body is required")
		default:
			return apperror.Validation("decode request", "Invalid request body")
		}
	}
	if decoder.More() {
		return apperror.Validation("decode request", "Invalid request body")
	}
	return nil
}
