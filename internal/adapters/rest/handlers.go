package rest

import (
	"errors"
	"net/http"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
	"github.com/brunomacedo1203/taskcollab/internal/core/port/usecases_port"
	"github.com/brunomacedo1203/taskcollab/internal/core/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	listUnreadUC usecases_port.ListUnreadNotificationsUseCasePort
	markReadUC   usecases_port.MarkNotificationReadUseCasePort
	metrics      port.EventMetricsPort
	serviceName  string
}

func NewNotificationHandler(
	listUnreadUC usecases_port.ListUnreadNotificationsUseCasePort,
	markReadUC usecases_port.MarkNotificationReadUseCasePort,
	metrics port.EventMetricsPort,
	serviceName string,
) *NotificationHandler {
	return &NotificationHandler{
		listUnreadUC: listUnreadUC,
		markReadUC:   markReadUC,
		metrics:      metrics,
		serviceName:  serviceName,
	}
}

// ListUnread - GET /notifications?size=N
func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "ListUnread"})

	userID, ok := contextkeys.UserIDFromContext(r.Context())
	if !ok {
		logger.Error("Invalid or missing user ID in context", nil, nil)
		WriteJSONError(w, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	size, err := GetSizeOrDefault(r, usecase.DefaultUnreadLimit, usecase.MaxUnreadLimit)
	if err != nil {
		logger.Warn("Invalid 'size' query parameter", port.Fields{"provided": r.URL.Query().Get("size")})
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	notifications, err := h.listUnreadUC.Execute(r.Context(), userID, size)
	if err != nil {
		logger.Error("ListUnread use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to retrieve notifications")
		return
	}

	data := make([]NotificationResponse, len(notifications))
	for i, n := range notifications {
		data[i] = toNotificationResponse(n)
	}
	logger.Debug("Unread notifications listed", port.Fields{"count": len(data)})
	RespondWithJSON(w, http.StatusOK, NotificationsListResponse{Data: data, Size: len(data)})
}

// MarkRead - PATCH /notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "MarkRead"})

	userID, ok := contextkeys.UserIDFromContext(r.Context())
	if !ok {
		logger.Error("Invalid or missing user ID in context", nil, nil)
		WriteJSONError(w, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		logger.Warn("Invalid notification ID format in URL", port.Fields{"provided_id": id})
		WriteJSONError(w, http.StatusBadRequest, "Invalid notification ID in URL")
		return
	}

	n, err := h.markReadUC.Execute(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			WriteJSONError(w, http.StatusNotFound, "Notification not found")
			return
		}
		logger.Error("MarkRead use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to mark notification as read")
		return
	}

	RespondWithJSON(w, http.StatusOK, MarkReadResponse{ID: n.ID, ReadAt: n.ReadAt})
}

// Metrics - GET /metrics
func (h *NotificationHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, MetricsResponse{
		Service: h.serviceName,
		Data:    h.metrics.Snapshot(),
	})
}

// Health - GET /health
func (h *NotificationHandler) Health(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
