package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/services"
)

// BookingService is the lifecycle surface the handler drives.
type BookingService interface {
	Create(ctx context.Context, in services.CreateBookingInput) (*models.Booking, error)
	Accept(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
	Reject(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
	Complete(ctx context.Context, bookingID, actorID uuid.UUID, as models.Role) (*models.Booking, error)
	Get(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error)
	List(ctx context.Context, userID uuid.UUID, f models.BookingFilter) ([]*models.Booking, error)
	IncomingRequests(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error)
	MyRequests(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error)
	Upcoming(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error)
	Completed(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error)
	CleanupOrphaned(ctx context.Context, learnerID uuid.UUID) (*services.SweepResult, error)
	ResetUserBookings(ctx context.Context, learnerID uuid.UUID) (*services.SweepResult, error)
}

// BookingHandler serves /api/v1/bookings endpoints.
type BookingHandler struct {
	Bookings BookingService
	Logger   *slog.Logger
}

func NewBookingHandler(svc BookingService, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{Bookings: svc, Logger: logger}
}

// --- POST /bookings ---

type createBookingRequest struct {
	TeacherID      uuid.UUID        `json:"teacher_id"`
	Skill          string           `json:"skill"`
	SkillID        *uuid.UUID       `json:"skill_id"`
	DateTime       string           `json:"date_time"`
	Duration       *decimal.Decimal `json:"duration"`
	Notes          string           `json:"notes"`
	CreditsPerHour int              `json:"credits_per_hour"`
}

// Create handles POST /bookings. The body has already passed schema
// validation in middleware.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", services.KindValidation)
		return
	}
	at, err := time.Parse(time.RFC3339, req.DateTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date_time must be RFC 3339", services.KindValidation)
		return
	}

	b, err := h.Bookings.Create(r.Context(), services.CreateBookingInput{
		LearnerID:      userID,
		TeacherID:      req.TeacherID,
		Skill:          req.Skill,
		SkillID:        req.SkillID,
		DateTime:       at,
		Duration:       req.Duration,
		Notes:          req.Notes,
		CreditsPerHour: req.CreditsPerHour,
	})
	if err != nil {
		h.fail(w, "create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// --- POST /bookings/{id}/accept|reject|cancel ---

func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept booking", h.Bookings.Accept)
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reject booking", h.Bookings.Reject)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel booking", h.Bookings.Cancel)
}

// --- POST /bookings/{id}/complete ---

type completeRequest struct {
	As string `json:"as"`
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", services.KindValidation)
		return
	}
	role, ok := models.ParseRole(req.As)
	if !ok {
		writeError(w, http.StatusBadRequest, `"as" must be "learner" or "teacher"`, services.KindValidation)
		return
	}
	h.transition(w, r, "complete booking", func(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
		return h.Bookings.Complete(ctx, bookingID, actorID, role)
	})
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, uuid.UUID, uuid.UUID) (*models.Booking, error)) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	bookingID, ok := bookingIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id", services.KindValidation)
		return
	}
	b, err := fn(r.Context(), bookingID, userID)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// --- GET /bookings/{id} ---

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	bookingID, ok := bookingIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id", services.KindValidation)
		return
	}
	b, err := h.Bookings.Get(r.Context(), bookingID, userID)
	if err != nil {
		h.fail(w, "get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// --- GET /bookings?role=&status=&when= ---

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f models.BookingFilter
	if v := q.Get("role"); v != "" {
		role, ok := models.ParseRole(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "role must be learner or teacher", services.KindValidation)
			return
		}
		f.Role = role
	}
	switch v := q.Get("status"); v {
	case "", models.BookingStatusRequested, models.BookingStatusConfirmed, models.BookingStatusCompleted, models.BookingStatusCancelled:
		f.Status = v
	default:
		writeError(w, http.StatusBadRequest, "unknown status", services.KindValidation)
		return
	}
	switch v := q.Get("when"); v {
	case "", models.WhenUpcoming, models.WhenPast:
		f.When = v
	default:
		writeError(w, http.StatusBadRequest, "when must be upcoming or past", services.KindValidation)
		return
	}
	h.list(w, r, func(ctx context.Context, id uuid.UUID) ([]*models.Booking, error) {
		return h.Bookings.List(ctx, id, f)
	})
}

func (h *BookingHandler) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Bookings.IncomingRequests)
}

func (h *BookingHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Bookings.MyRequests)
}

func (h *BookingHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Bookings.Upcoming)
}

func (h *BookingHandler) Completed(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Bookings.Completed)
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) ([]*models.Booking, error)) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := fn(r.Context(), userID)
	if err != nil {
		h.fail(w, "list bookings", err)
		return
	}
	if list == nil {
		list = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": list})
}

// --- POST /bookings/cleanup-orphaned, POST /bookings/reset ---

func (h *BookingHandler) CleanupOrphaned(w http.ResponseWriter, r *http.Request) {
	h.sweep(w, r, "cleanup orphaned bookings", h.Bookings.CleanupOrphaned)
}

func (h *BookingHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.sweep(w, r, "reset bookings", h.Bookings.ResetUserBookings)
}

func (h *BookingHandler) sweep(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, uuid.UUID) (*services.SweepResult, error)) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	res, err := fn(r.Context(), userID)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fail maps a service error to its HTTP status. Unknown errors are logged
// and reported without detail.
func (h *BookingHandler) fail(w http.ResponseWriter, op string, err error) {
	kind := services.KindOf(err)
	status := StatusForKind(kind)
	if status == http.StatusInternalServerError {
		h.Logger.Error(op, "error", err)
		writeError(w, status, "internal error", kind)
		return
	}
	writeError(w, status, err.Error(), kind)
}

// StatusForKind maps a service error kind to an HTTP status.
func StatusForKind(kind string) int {
	switch kind {
	case services.KindValidation, services.KindSelfBooking:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusForbidden
	case services.KindNotFound, services.KindTeacherNotFound, services.KindLearnerNotFound:
		return http.StatusNotFound
	case services.KindInvalidState, services.KindAlreadyCompleted, services.KindRateMismatch:
		return http.StatusConflict
	case services.KindInsufficientCredits:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func bookingIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}
