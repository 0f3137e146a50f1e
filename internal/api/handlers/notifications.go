package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/pipedesk/internal/notify"
)

type NotificationHandler struct {
	notifications *notify.Service
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *notify.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List handles GET /api/organizations/{orgId}/notifications?unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"

	list, err := h.notifications.List(r.Context(), principal(r), unreadOnly)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkRead handles POST /api/organizations/{orgId}/notifications/{notificationId}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "notificationId", notify.ErrNotificationNotFound)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), principal(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}
