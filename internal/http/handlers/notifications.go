package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easylink/server/internal/middleware"
	"github.com/easylink/server/internal/notify"
	"github.com/easylink/server/internal/repo"
)

// NotificationHandler serves the notification feed and the SSE stream. All
// routes sit behind the access-token middleware; the subject claim scopes
// every query.
type NotificationHandler struct {
	svc *notify.Service
	log *zap.Logger
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(svc *notify.Service, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, log: log}
}

type notificationResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// HandleList handles GET /api/notifications.
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	notifications, err := h.svc.List(r.Context(), accountID, 50)
	if err != nil {
		h.log.Error("list notifications", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notificationResponse{
			ID:        n.ID.String(),
			Kind:      n.Kind,
			Payload:   json.RawMessage(n.Payload),
			Read:      n.ReadAt != nil,
			CreatedAt: n.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleMarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.svc.MarkRead(r.Context(), id, accountID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.log.Error("mark notification read", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleStream handles GET /api/notifications/stream as server-sent events.
func (h *NotificationHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := h.svc.Subscribe(accountID)
	defer cancel()

	writeSSE(w, "connected", []byte(`"ok"`))
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				h.log.Error("encode stream event", zap.Error(err))
				continue
			}
			writeSSE(w, ev.Name, data)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
