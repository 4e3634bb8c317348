package reservation_api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-admission/internal/admission"
	"ms-admission/internal/auth"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	reservations "ms-admission/internal/reservations/service"
	"ms-admission/internal/utils"
)

type Handler struct {
	ReservationService *reservations.ReservationService
	Logger             *logger.Logger
}

func NewHandler(service *reservations.ReservationService, log *logger.Logger) *Handler {
	return &Handler{ReservationService: service, Logger: log}
}

type createRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Instagram string `json:"instagram"`
}

type reservationView struct {
	models.Reservation
	CheckinURL string `json:"checkin_url"`
	QRURL      string `json:"qr_url"`
}

func (h *Handler) view(r *models.Reservation) reservationView {
	return reservationView{
		Reservation: *r,
		CheckinURL:  h.ReservationService.CheckinURL(r.ReservationCode),
		QRURL:       "/api/reservations/" + strconv.FormatInt(r.ID, 10) + "/qr",
	}
}

// CreatePublicReservation handles the unauthenticated reservation form.
func (h *Handler) CreatePublicReservation(w http.ResponseWriter, r *http.Request) {
	publicCode := chi.URLParam(r, "publicCode")

	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.FirstName == "" || body.LastName == "" || body.Email == "" || body.Phone == "" {
		http.Error(w, "first_name, last_name, email and phone are required", http.StatusBadRequest)
		return
	}

	reservation, err := h.ReservationService.CreateReservation(r.Context(), publicCode, reservations.GuestInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Phone:     body.Phone,
		Instagram: body.Instagram,
	})
	if err != nil {
		if reason, ok := admission.DenialReason(err); ok {
			status := http.StatusBadRequest
			if reason == admission.ReasonEventNotFound {
				status = http.StatusNotFound
			}
			utils.WriteJSON(w, status, utils.ErrorResponse("reservation failed", string(reason)))
			return
		}
		http.Error(w, "SERVER_ERROR", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, h.view(reservation))
}

type checkinResponse struct {
	OK            bool                `json:"ok"`
	Message       admission.Reason    `json:"message"`
	ReservationID *int64              `json:"reservation_id,omitempty"`
	UsedAt        *time.Time          `json:"used_at,omitempty"`
	Reservation   *checkinReservation `json:"reservation,omitempty"`
}

type checkinReservation struct {
	ID        int64                    `json:"id"`
	FirstName string                   `json:"first_name"`
	LastName  string                   `json:"last_name"`
	Status    models.ReservationStatus `json:"status"`
	UsedAt    *time.Time               `json:"used_at,omitempty"`
}

// Checkin redeems a single-use code. Denials are results, so the response
// is always 200 with ok=false and the stable reason string.
func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "reservationCode")

	var scannedBy *int64
	if id, ok := auth.FromContext(r.Context()); ok {
		scannedBy = &id.UserID
	}

	granted, reservation, reason, err := h.ReservationService.Checkin(r.Context(), code, scannedBy)
	if err != nil {
		http.Error(w, "SERVER_ERROR", http.StatusInternalServerError)
		return
	}

	resp := checkinResponse{OK: granted, Message: reason}
	if reservation != nil {
		resp.ReservationID = &reservation.ID
		resp.UsedAt = reservation.UsedAt
		resp.Reservation = &checkinReservation{
			ID:        reservation.ID,
			FirstName: reservation.FirstName,
			LastName:  reservation.LastName,
			Status:    reservation.Status,
			UsedAt:    reservation.UsedAt,
		}
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	items, err := h.ReservationService.ListByEvent(r.Context(), eventID)
	if err != nil {
		if reason, ok := admission.DenialReason(err); ok && reason == admission.ReasonEventNotFound {
			http.Error(w, string(reason), http.StatusNotFound)
			return
		}
		http.Error(w, "SERVER_ERROR", http.StatusInternalServerError)
		return
	}

	views := make([]reservationView, 0, len(items))
	for i := range items {
		views = append(views, h.view(&items[i]))
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(views),
		"items": views,
	})
}

// ReservationQR serves the scannable PNG for download or preview.
func (h *Handler) ReservationQR(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	png, err := h.ReservationService.QRPNGForReservation(r.Context(), id)
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
