package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clubsync/notifier/internal/api/respond"
	"github.com/clubsync/notifier/internal/cache"
	"github.com/clubsync/notifier/internal/notification"
	"github.com/clubsync/notifier/internal/scheduler"
)

func cacheKey(id string) string { return "notification:" + id }

// GetNotification returns one notification.
// @Summary Get a notification
// @Tags notifications
// @Produce json
// @Param id path string true "Notification id"
// @Success 200 {object} notification.Response
// @Failure 404 {object} respond.ErrorResponse
// @Router /notifications/{id} [get]
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key := cacheKey(id)
	ttl := cache.TTLNotification

	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	n, err := h.store.Get(r.Context(), id)
	if errors.Is(err, notification.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No notification with id "+id)
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load notification")
		return
	}

	body, err := json.Marshal(n.ToResponse())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to encode notification")
		return
	}
	etag := h.cache.Set(key, body, ttl)
	respond.WriteJSON(w, body, etag, ttl, false)
}

// PutNotification replaces one notification. Updates are full-replace; the
// new descriptor supersedes the old one in the scheduling core in the same
// transition.
// @Summary Replace a notification
// @Tags notifications
// @Accept json
// @Param id path string true "Notification id"
// @Param body body notification.Request true "Full replacement payload"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Router /notifications/{id} [put]
func (h *Handler) PutNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req notification.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity,
			"VALIDATION_ERROR", "Malformed notification body", err.Error())
		return
	}
	if err := req.Validate(h.cfg.UnitKnown); err != nil {
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity,
			"VALIDATION_ERROR", "Notification failed validation", err.Error())
		return
	}

	prev, err := h.store.Get(r.Context(), id)
	if errors.Is(err, notification.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No notification with id "+id)
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load notification")
		return
	}

	n := req.ToNotification(id, &prev)
	if err := h.store.Put(r.Context(), n); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to store notification")
		return
	}
	if err := h.sched.Register(n); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to arm notification")
		return
	}
	h.cache.Delete(cacheKey(id))

	w.WriteHeader(http.StatusNoContent)
}

// triggerEventRequest is the POST body for trigger event ingestion. Both
// fields are optional: a missing event id gets a generated one, a missing
// timestamp means "now".
type triggerEventRequest struct {
	EventID    string     `json:"eventId,omitempty"`
	OccurredAt *time.Time `json:"occurredAt,omitempty"`
}

// PostTriggerEvent ingests one external trigger event over HTTP; the
// LISTEN/NOTIFY consumer is the other ingestion path.
// @Summary Ingest a trigger event
// @Tags triggers
// @Accept json
// @Produce json
// @Param triggerID path string true "Trigger class id"
// @Success 202 {object} scheduler.TriggerEvent
// @Failure 422 {object} respond.ErrorResponse
// @Router /triggers/{triggerID}/events [post]
func (h *Handler) PostTriggerEvent(w http.ResponseWriter, r *http.Request) {
	triggerID := chi.URLParam(r, "triggerID")

	var req triggerEventRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.WriteErrorDetail(w, http.StatusUnprocessableEntity,
				"VALIDATION_ERROR", "Malformed trigger event body", err.Error())
			return
		}
	}

	ev := scheduler.TriggerEvent{
		TriggerID:  triggerID,
		EventID:    req.EventID,
		OccurredAt: time.Now().UTC(),
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = req.OccurredAt.UTC()
	}

	h.sched.HandleTriggerEvent(r.Context(), ev)
	respond.WriteJSONObject(w, http.StatusAccepted, ev)
}
