package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// NotificationHandlers handles a user's notification inbox. Reads and
// mark-read operate on the caller's own notifications; create and delete
// are admin-gated by the policy.
type NotificationHandlers struct {
	notifications *postgres.NotificationStore
	users         *postgres.UserStore
	logger        *observability.Logger
}

// NewNotificationHandlers creates the notification handler group
func NewNotificationHandlers(notifications *postgres.NotificationStore, users *postgres.UserStore, logger *observability.Logger) *NotificationHandlers {
	return &NotificationHandlers{notifications: notifications, users: users, logger: logger}
}

// RegisterRoutes registers notification routes
func (h *NotificationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/notifications", h.list).Methods("GET")
	router.HandleFunc("/api/notifications", h.create).Methods("POST")
	router.HandleFunc("/api/notifications/read_all", h.markAllRead).Methods("PUT")
	router.HandleFunc("/api/notifications/{id}/read", h.markRead).Methods("PUT")
	router.HandleFunc("/api/notifications/{id}", h.delete).Methods("DELETE")
}

// create handles POST /api/notifications (admin only via policy); the
// target user must exist
func (h *NotificationHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w,
		httputil.RequirePositive(req.UserID, "userId"),
		httputil.RequireNonEmpty(req.Message, "message"),
	) {
		return
	}

	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			httputil.WriteNotFound(w, "user not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	created, err := h.notifications.Create(r.Context(), req.UserID, req.Title, req.Message)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("notification request failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, created, "notification created")
}

// delete handles DELETE /api/notifications/{id} (admin only via policy)
func (h *NotificationHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.notifications.Delete(r.Context(), id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.WriteNotFound(w, "notification not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// list handles GET /api/notifications with optional ?unread=true
func (h *NotificationHandlers) list(w http.ResponseWriter, r *http.Request) {
	unreadOnly, err := httputil.ParseQueryBool(r, "unread", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	notifications, err := h.notifications.ListByUser(r.Context(), principal(r).UserID, unreadOnly)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("notification request failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteData(w, notifications, "notifications")
}

// markRead handles PUT /api/notifications/{id}/read
func (h *NotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), id, principal(r).UserID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.WriteNotFound(w, "notification not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteData(w, nil, "notification read")
}

// markAllRead handles PUT /api/notifications/read_all
func (h *NotificationHandlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAllRead(r.Context(), principal(r).UserID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteData(w, nil, "all notifications read")
}
