package handler

import (
	"net/http"

	"carpool/internal/booking/domain"
	"carpool/pkg/auth"
	"carpool/pkg/logger"
)

// NotificationHandler handles HTTP requests for in-app notifications
type NotificationHandler struct {
	notifRepo domain.NotificationRepository
	logger    logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifRepo domain.NotificationRepository, logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifRepo: notifRepo,
		logger:    logger,
	}
}

// List handles GET /notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	notifications, err := h.notifRepo.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		h.logger.WithFields(logger.LogFields{"user_id": claims.UserID}).Error("list_notifications_failed", err)
		writeDomainError(w, err)
		return
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

// MarkRead handles POST /notifications/{notification_id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	notificationID := r.PathValue("notification_id")

	if err := h.notifRepo.MarkRead(r.Context(), notificationID, claims.UserID); err != nil {
		h.logger.WithFields(logger.LogFields{"user_id": claims.UserID}).Error("mark_notification_read_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MarkAllRead handles POST /notifications/read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	if err := h.notifRepo.MarkAllRead(r.Context(), claims.UserID); err != nil {
		h.logger.WithFields(logger.LogFields{"user_id": claims.UserID}).Error("mark_all_read_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
