package notifications

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classboard/classboard/pkg/logger"
)

// userIDHeader carries the recipient identity injected by the gateway after
// authentication. The subsystem trusts it; authn itself is out of scope.
const userIDHeader = "X-User-ID"

// Handler exposes the REST surface of the notification store.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler creates the REST handler for notification history and
// read-state operations.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	respondJSON(w, status, body)
}

// recipient extracts the authenticated identity or writes a 401.
func (h *Handler) recipient(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing recipient identity")
		return "", false
	}
	return userID, true
}

// List handles GET /notifications?page&limit&unreadOnly.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.recipient(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := ListOptions{
		OnlyUnread: q.Get("unreadOnly") == "true",
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		opts.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = limit
	}

	result, err := h.svc.List(r.Context(), userID, opts)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list notifications", logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// MarkRead handles PUT /notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.recipient(w, r)
	if !ok {
		return
	}

	notifID := chi.URLParam(r, "id")
	notif, err := h.svc.MarkRead(r.Context(), userID, notifID)
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "notification not found")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to mark notification read", logger.UserID(userID), logger.NotificationID(notifID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to mark notification read")
		return
	}

	respondJSON(w, http.StatusOK, notif)
}

// MarkAllRead handles PUT /notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.recipient(w, r)
	if !ok {
		return
	}

	unread, err := h.svc.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to mark all notifications read", logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to mark all notifications read")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"unreadCount": unread})
}

// Delete handles DELETE /notifications/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.recipient(w, r)
	if !ok {
		return
	}

	notifID := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), userID, notifID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "notification not found")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to delete notification", logger.UserID(userID), logger.NotificationID(notifID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete notification")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
