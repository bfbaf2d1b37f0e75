package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"llm-gateway/internal/requestctx"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler is the http api layer for the LLMGatewayService.
type Handler struct {
	service Service
	logger  zerolog.Logger
}

// NewHandler creates a new handler injecting the service.
func NewHandler(s Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger.With().Str("component", "llm_handler").Logger(),
	}
}

// RegisterRoutes attaches the llm endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	// Blocking completion, answered with a single json body
	r.Post("/chat", h.handleChat)

	// Streaming completion, answered with server-sent events
	r.Post("/chat/stream", h.handleChatStream)
}

// --- DTOs ---

// chatRequestBody is the DTO for what the client sends. nucleus_p is accepted
// as an alias of top_p; top_p wins when both are set.
type chatRequestBody struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature"`
	TopP        *float64      `json:"top_p"`
	NucleusP    *float64      `json:"nucleus_p"`
}

func (b *chatRequestBody) toRequest() *ChatRequest {
	topP := b.TopP
	if topP == nil {
		topP = b.NucleusP
	}
	return &ChatRequest{
		Messages:    b.Messages,
		Temperature: b.Temperature,
		TopP:        topP,
	}
}

func decodeChatRequest(r *http.Request) (*ChatRequest, error) {
	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: invalid request payload", ErrInvalidRequest)
	}
	return body.toRequest(), nil
}

// --- Handlers ---

// handleChat runs a blocking completion.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := h.service.Complete(r.Context(), req)
	if err != nil {
		status := StatusFromError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error().
				Err(err).
				Str("request_id", requestctx.GetRequestID(r.Context())).
				Msg("Chat completion failed")
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// handleChatStream runs a streaming completion. Once the stream has started
// every outcome, including a bad request, is reported in-band as an error
// event.
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	sse := newSSEWriter(w)

	req, err := decodeChatRequest(r)
	if err != nil {
		if werr := sse.WriteEvent(errorEvent(err)); werr != nil {
			h.logger.Debug().
				Err(werr).
				Str("request_id", requestctx.GetRequestID(r.Context())).
				Msg("Could not report invalid stream request")
		}
		return
	}

	// Cancelling stops the service pulling from the backend when the client
	// can no longer be written to.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for event := range h.service.Stream(ctx, req) {
		if err := sse.WriteEvent(event); err != nil {
			h.logger.Debug().
				Err(err).
				Str("request_id", requestctx.GetRequestID(ctx)).
				Msg("Client went away during stream")
			return
		}
		if event.Terminal() {
			return
		}
	}
}

// writeJSON is a helper function for sending json responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for sending a standardized json error.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
