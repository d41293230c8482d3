package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/service"
)

// NotificationHandler serves in-app notifications and the reminder job trigger
type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notes *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{notificationService: notes, logger: logger}
}

// RunRemindersRequest optionally names the period to remind for.
type RunRemindersRequest struct {
	Period domain.Period `json:"period"`
}

// List handles GET /api/notifications?unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	unread, err := queryBool(r, "unread")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	notes, err := h.notificationService.ListNotifications(r.Context(), id, unread != nil && *unread)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, notes)
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(r.Context(), id, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunReminders handles POST /api/admin/jobs/rent-reminders. Without a
// period the current month is used.
func (h *NotificationHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req RunRemindersRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	run, err := h.notificationService.SendRentReminders(r.Context(), id, req.Period)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, run)
}
