package event_api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-admission/internal/admission"
	events "ms-admission/internal/events/service"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/qr"
	"ms-admission/internal/utils"
)

type Handler struct {
	EventService *events.EventService
	QRGenerator  *qr.Generator
	Logger       *logger.Logger
}

func NewHandler(service *events.EventService, qrGen *qr.Generator, log *logger.Logger) *Handler {
	return &Handler{EventService: service, QRGenerator: qrGen, Logger: log}
}

type eventPayload struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	Status      string     `json:"status"`
}

// eventView adds the derived URLs the admin dashboard needs.
type eventView struct {
	models.Event
	PublicURL string `json:"public_url"`
	QRURL     string `json:"qr_url"`
}

func (h *Handler) view(ev *models.Event) eventView {
	return eventView{
		Event:     *ev,
		PublicURL: h.EventService.PublicURL(ev),
		QRURL:     "/api/events/" + strconv.FormatInt(ev.ID, 10) + "/qr",
	}
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	items, err := h.EventService.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}

	views := make([]eventView, 0, len(items))
	for i := range items {
		views = append(views, h.view(&items[i]))
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": views})
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var body eventPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.StartAt == nil || body.EndAt == nil {
		http.Error(w, "name, start_at and end_at are required", http.StatusBadRequest)
		return
	}

	event, err := h.EventService.Create(r.Context(), events.CreateEventInput{
		Name:        body.Name,
		Description: body.Description,
		StartAt:     *body.StartAt,
		EndAt:       *body.EndAt,
		Status:      body.Status,
	})
	if err != nil {
		if reason, ok := admission.DenialReason(err); ok {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("event creation failed", string(reason)))
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, h.view(event))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	event, err := h.EventService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "NOT_FOUND", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load event", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.view(event))
}

func (h *Handler) GetEventByPublicCode(w http.ResponseWriter, r *http.Request) {
	publicCode := chi.URLParam(r, "publicCode")

	event, err := h.EventService.GetByPublicCode(r.Context(), publicCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "NOT_FOUND", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load event", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.view(event))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	var body eventPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	in := events.UpdateEventInput{StartAt: body.StartAt, EndAt: body.EndAt}
	if body.Name != "" {
		in.Name = &body.Name
	}
	if body.Description != "" {
		in.Description = &body.Description
	}
	if body.Status != "" {
		in.Status = &body.Status
	}

	event, err := h.EventService.Update(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "NOT_FOUND", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.view(event))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	if err := h.EventService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "NOT_FOUND", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete event", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EventQR renders the public event URL as a PNG.
func (h *Handler) EventQR(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	event, err := h.EventService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "NOT_FOUND", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load event", http.StatusInternalServerError)
		return
	}

	png, err := h.QRGenerator.PNG(h.EventService.PublicURL(event))
	if err != nil {
		http.Error(w, "failed to render QR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
