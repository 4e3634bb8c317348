package access_api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	access "ms-admission/internal/access/service"
	"ms-admission/internal/admission"
	"ms-admission/internal/auth"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/utils"
)

type Handler struct {
	AccessService *access.AccessService
	Logger        *logger.Logger
}

func NewHandler(service *access.AccessService, log *logger.Logger) *Handler {
	return &Handler{AccessService: service, Logger: log}
}

type accessCodeView struct {
	models.AccessCode
	AccessURL string `json:"access_url"`
	QRURL     string `json:"qr_url"`
}

func (h *Handler) view(a *models.AccessCode) accessCodeView {
	return accessCodeView{
		AccessCode: *a,
		AccessURL:  h.AccessService.AccessURL(a.AccessCode),
		QRURL: "/api/events/" + strconv.FormatInt(a.EventID, 10) +
			"/access-codes/" + strconv.FormatInt(a.ID, 10) + "/qr",
	}
}

func (h *Handler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	items, err := h.AccessService.ListByEvent(r.Context(), eventID)
	if err != nil {
		if reason, ok := admission.DenialReason(err); ok {
			http.Error(w, string(reason), http.StatusNotFound)
			return
		}
		http.Error(w, "SERVER_ERROR", http.StatusInternalServerError)
		return
	}

	views := make([]accessCodeView, 0, len(items))
	for i := range items {
		views = append(views, h.view(&items[i]))
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": views})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	var body struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var createdBy *int64
	if id, ok := auth.FromContext(r.Context()); ok {
		createdBy = &id.UserID
	}

	accessCode, err := h.AccessService.Create(r.Context(), eventID, body.Label, createdBy)
	if err != nil {
		if reason, ok := admission.DenialReason(err); ok {
			status := http.StatusBadRequest
			if reason == admission.ReasonEventNotFound {
				status = http.StatusNotFound
			}
			utils.WriteJSON(w, status, utils.ErrorResponse("access code creation failed", string(reason)))
			return
		}
		http.Error(w, "SERVER_ERROR", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, h.view(accessCode))
}

// SetEnabled flips the enable flag; history stays untouched.
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	accessID, err := strconv.ParseInt(chi.URLParam(r, "accessID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid access code id", http.StatusBadRequest)
		return
	}

	var body struct {
		IsEnabled *bool `json:"is_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsEnabled == nil {
		http.Error(w, "is_enabled is required", http.StatusBadRequest)
		return
	}

	accessCode, err := h.AccessService.SetEnabled(r.Context(), eventID, accessID, *body.IsEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "NOT_FOUND", http.StatusNotFound)
			return
		}
		http.Error(w, "SERVER_ERROR", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.view(accessCode))
}

type checkResponse struct {
	OK      bool             `json:"ok"`
	Message admission.Reason `json:"message"`
	Event   *checkEvent      `json:"event,omitempty"`
	Access  *checkAccess     `json:"access,omitempty"`
}

type checkEvent struct {
	ID      int64              `json:"id"`
	Name    string             `json:"name"`
	Status  models.EventStatus `json:"status"`
	StartAt time.Time          `json:"start_at"`
	EndAt   time.Time          `json:"end_at"`
}

type checkAccess struct {
	ID         int64      `json:"id"`
	EventID    int64      `json:"event_id"`
	Label      string     `json:"label,omitempty"`
	ScanCount  int        `json:"scan_count"`
	LastScanAt *time.Time `json:"last_scan_at,omitempty"`
	IsEnabled  bool       `json:"is_enabled"`
}

// Check authorizes a reusable code and counts the scan. Denials are
// results: always 200 with ok=false and the stable reason.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "accessCode")

	granted, event, accessCode, reason, err := h.AccessService.CheckAccess(r.Context(), code)
	if err != nil {
		http.Error(w, "SERVER_ERROR", http.StatusInternalServerError)
		return
	}

	resp := checkResponse{OK: granted, Message: reason}
	if event != nil {
		resp.Event = &checkEvent{
			ID:      event.ID,
			Name:    event.Name,
			Status:  event.Status,
			StartAt: event.StartAt,
			EndAt:   event.EndAt,
		}
	}
	if accessCode != nil {
		resp.Access = &checkAccess{
			ID:         accessCode.ID,
			EventID:    accessCode.EventID,
			Label:      accessCode.Label,
			ScanCount:  accessCode.ScanCount,
			LastScanAt: accessCode.LastScanAt,
			IsEnabled:  accessCode.IsEnabled,
		}
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

// AccessQR serves the printable PNG for a code.
func (h *Handler) AccessQR(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	accessID, err := strconv.ParseInt(chi.URLParam(r, "accessID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid access code id", http.StatusBadRequest)
		return
	}

	png, err := h.AccessService.QRPNGForAccess(r.Context(), eventID, accessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "NOT_FOUND", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to render QR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
