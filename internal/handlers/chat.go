package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gemini-relay/internal/models"
	"gemini-relay/internal/services"
)

const (
	maxBodyBytes = 64 << 10

	InvalidBodyMessage = "Corpo della richiesta non valido"
)

type relayService interface {
	Reply(ctx context.Context, req services.ReplyRequest) (*services.Reply, error)
	EndSession(ctx context.Context, sessionID string) error
}

type ChatHandler struct {
	relay  relayService
	logger *slog.Logger
}

func NewChatHandler(relay relayService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		relay:  relay,
		logger: logger,
	}
}

// Generate handles POST /api/chat.
func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp(InvalidBodyMessage))
		return
	}

	reply, err := h.relay.Reply(r.Context(), services.ReplyRequest{
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if reply.SessionID != "" {
		w.Header().Set(models.SessionIDHeader, reply.SessionID)
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{
		Text:      reply.Text,
		SessionID: reply.SessionID,
	})
}

// EndSession handles DELETE /api/sessions/{id}.
func (h *ChatHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResp(services.InvalidSessionIDMessage))
		return
	}

	if err := h.relay.EndSession(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads exactly one JSON value. An empty body leaves dst zeroed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after the JSON body")
	}
	return nil
}
