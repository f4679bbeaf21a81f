package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxAudioBytes = 25 << 20

// Handler serves the HTTP surface of the gateway
type Handler struct {
	connectionManager *ConnectionManager
	controller        Controller
}

// NewHandler creates a new gateway HTTP handler
func NewHandler(cm *ConnectionManager, controller Controller) *Handler {
	return &Handler{connectionManager: cm, controller: controller}
}

// HandleWebSocket upgrades the request to a snapshot stream
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		// Upgrade has already written an HTTP error response.
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleGetState returns the current replica snapshot
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.controller.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get session state")
		writeError(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleAction runs the action named in the path. The body may carry the
// action's arguments.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	msg := ClientMessage{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&msg); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	msg.Action = Action(r.PathValue("action"))

	if err := Dispatch(r.Context(), h.controller, msg); err != nil {
		if errors.Is(err, ErrUnknownAction) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Warn().Err(err).Str("action", string(msg.Action)).Msg("action failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.HandleGetState(w, r)
}

// HandleAudioAnswer accepts a recorded answer as the raw request body.
func (h *Handler) HandleAudioAnswer(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "no audio provided")
		return
	}
	if len(audio) > maxAudioBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "audio exceeds 25MB")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "answer.webm"
	}
	if err := h.controller.SubmitAudio(r.Context(), audio, filename); err != nil {
		log.Warn().Err(err).Msg("audio answer failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.HandleGetState(w, r)
}

// HandleStats returns statistics about active connections
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":          h.controller.Identity(),
		"total_connections": h.connectionManager.ConnectionCount(),
	})
}

// HandleHealth reports liveness
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
