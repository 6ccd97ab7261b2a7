package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"gemini-relay/internal/models"
	"gemini-relay/internal/services"
)

const (
	ProviderFailureMessage = "Errore interno del server durante la comunicazione con l'API."

	// StatusClientClosedRequest records requests whose caller disconnected
	// before the reply was ready.
	StatusClientClosedRequest = 499
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(message string) models.ErrorResponse {
	return models.ErrorResponse{Error: message}
}

// handleServiceError is the single place where relay errors become HTTP
// responses. Provider detail goes to the log only.
func (h *ChatHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := chimiddleware.GetReqID(r.Context())

	var validationErr *services.ValidationError
	var providerErr *services.ProviderError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResp(validationErr.Message))
	case errors.Is(err, context.Canceled):
		h.logger.Info("client went away before the reply was ready", "request_id", requestID)
		w.WriteHeader(StatusClientClosedRequest)
	case errors.As(err, &providerErr):
		h.logger.Error("provider call failed",
			"provider", providerErr.Provider,
			"error", providerErr.Err,
			"request_id", requestID,
		)
		writeJSON(w, http.StatusInternalServerError, errorResp(ProviderFailureMessage))
	default:
		h.logger.Error("relay request failed", "error", err, "request_id", requestID)
		writeJSON(w, http.StatusInternalServerError, errorResp(ProviderFailureMessage))
	}
}
