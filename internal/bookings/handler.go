package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/grooming-booking/internal/pricing"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const (
	maxRequestBytes         = 64 << 10
	idempotencyHeader       = "Idempotency-Key"
	idempotencyWriteTimeout = 2 * time.Second
	defaultListLimit        = 20
	maxListLimit            = 100
	invalidBodyMessage      = "Invalid request body."
)

// CreateResponse is the booking-creation result returned to web callers.
type CreateResponse struct {
	Success       bool   `json:"success"`
	BookingNumber string `json:"bookingNumber,omitempty"`
	BookingID     string `json:"bookingId,omitempty"`
	Price         int64  `json:"price,omitempty"`
	Currency      string `json:"currency,omitempty"`
	SyncStatus    string `json:"syncStatus,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ToolResponse is the result shape returned to the conversational agent.
type ToolResponse struct {
	Success        bool   `json:"success"`
	BookingNumber  string `json:"bookingNumber,omitempty"`
	BookingID      string `json:"bookingId,omitempty"`
	PetName        string `json:"petName,omitempty"`
	Package        string `json:"package,omitempty"`
	Price          int64  `json:"price,omitempty"`
	PriceFormatted string `json:"priceFormatted,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ListResponse wraps a caller's bookings.
type ListResponse struct {
	Bookings []*Booking `json:"bookings"`
	Count    int        `json:"count"`
}

// Handler exposes booking creation and lookups over HTTP.
type Handler struct {
	service     *Service
	idempotency *IdempotencyStore
	logger      *logging.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("bookings: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// WithIdempotency enables Idempotency-Key handling on CreateBooking.
func (h *Handler) WithIdempotency(store *IdempotencyStore) *Handler {
	h.idempotency = store
	return h
}

// CreateBooking handles POST /api/grooming/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.logger.Warn("failed to decode booking request", "error", err)
		writeJSON(w, http.StatusBadRequest, CreateResponse{Error: invalidBodyMessage})
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key != "" && h.idempotency != nil {
		cached, err := h.idempotency.Begin(r.Context(), key)
		switch {
		case errors.Is(err, ErrIdempotencyInFlight):
			writeJSON(w, http.StatusConflict, CreateResponse{Error: "A booking with this Idempotency-Key is already being processed."})
			return
		case err != nil:
			h.logger.Warn("idempotency cache unavailable, continuing without it", "error", err)
			key = ""
		case cached != nil:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(cached.Status)
			_, _ = w.Write(cached.Body)
			return
		}
	} else {
		key = ""
	}

	result, err := h.service.Create(r.Context(), req)
	status, resp := createOutcome(result, err)
	if err != nil && status >= http.StatusInternalServerError {
		h.logger.Error("booking creation failed", "error", err, "stage", stageOf(result))
	}

	body, encErr := json.Marshal(resp)
	if encErr != nil {
		h.logger.Error("failed to encode booking response", "error", encErr)
		http.Error(w, MessageGeneric, http.StatusInternalServerError)
		return
	}

	if key != "" {
		h.finishIdempotent(r, key, status, body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// finishIdempotent records the outcome even when the client has already
// hung up; otherwise the key would stay claimed until it expires.
func (h *Handler) finishIdempotent(r *http.Request, key string, status int, body []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), idempotencyWriteTimeout)
	defer cancel()
	if status >= http.StatusInternalServerError {
		if err := h.idempotency.Release(ctx, key); err != nil {
			h.logger.Warn("failed to release idempotency key", "error", err)
		}
		return
	}
	if err := h.idempotency.Complete(ctx, key, CachedResponse{Status: status, Body: body}); err != nil {
		h.logger.Warn("failed to cache idempotent response", "error", err)
	}
}

// BookGroomingTool handles POST /api/agent/tools/book-grooming. Tool callers
// always get 200 with a success flag so the agent can relay the message.
func (h *Handler) BookGroomingTool(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeJSON(w, http.StatusOK, ToolResponse{Error: invalidBodyMessage})
		return
	}

	result, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			h.logger.Error("tool booking failed", "error", err)
		}
		writeJSON(w, http.StatusOK, ToolResponse{Error: PublicMessage(err)})
		return
	}

	b := result.Booking
	label := pricing.TierLabel(b.PackageTier)
	writeJSON(w, http.StatusOK, ToolResponse{
		Success:        true,
		BookingNumber:  b.BookingNumber,
		BookingID:      b.ID,
		PetName:        b.PetName,
		Package:        label,
		Price:          b.Price,
		PriceFormatted: pricing.FormatPrice(b.Price),
		Message:        fmt.Sprintf("Booking confirmed! %s's %s grooming appointment is scheduled.", b.PetName, label),
	})
}

// GetBooking handles GET /api/grooming/bookings/{bookingNumber}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(chi.URLParam(r, "bookingNumber"))
	if number == "" {
		http.Error(w, "missing booking number", http.StatusBadRequest)
		return
	}
	booking, err := h.service.Store().GetByNumber(r.Context(), number)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			http.Error(w, MessageNotFound, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load booking", "booking_number", number, "error", err)
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// ListUserBookings handles GET /api/grooming/users/{userID}/bookings
func (h *Handler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= maxListLimit {
			limit = n
		}
	}

	list, err := h.service.Store().ListForCaller(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list bookings", "user_id", userID, "error", err)
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*Booking{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Bookings: list, Count: len(list)})
}

func createOutcome(result *CreateResult, err error) (int, CreateResponse) {
	if err != nil {
		var verr *ValidationError
		status := http.StatusServiceUnavailable
		switch {
		case errors.As(err, &verr):
			status = http.StatusBadRequest
		case errors.Is(err, ErrPricingUnavailable):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, ErrSlotUnavailable):
			status = http.StatusConflict
		}
		return status, CreateResponse{Error: PublicMessage(err)}
	}
	b := result.Booking
	return http.StatusCreated, CreateResponse{
		Success:       true,
		BookingNumber: b.BookingNumber,
		BookingID:     b.ID,
		Price:         b.Price,
		Currency:      b.Currency,
		SyncStatus:    string(b.SyncStatus),
	}
}

func stageOf(result *CreateResult) Stage {
	if result == nil {
		return ""
	}
	return result.Stage
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
