/*
handlers.go - HTTP API handlers for the customer financing system

PURPOSE:
  Exposes the financing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Applications:
    GET    /api/applications              List applications
    POST   /api/applications              Create application
    GET    /api/applications/{id}         Get application
    POST   /api/applications/{id}/approve Approve and create the schedule

  Schedules:
    GET    /api/schedules                 List schedules
    GET    /api/schedules/{id}            Get full schedule state
    POST   /api/schedules/{id}/payments   Commit a payment
    POST   /api/schedules/{id}/simulate   Preview a hypothetical payment

  Reporting:
    GET    /api/overdue                   Overdue schedules, most overdue first

  Admin:
    POST   /api/admin/penalties/run       Trigger the penalty accrual batch

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate payment, double approval)
  - 500: Internal errors, allocation invariant violations

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/financing-engine/engine"
	"github.com/warp/financing-engine/financing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *financing.Service
	Terms   financing.Terms
	Penalty engine.PenaltyConfig
	Logger  *zap.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewHandler creates the handler with its dependencies.
func NewHandler(service *financing.Service, terms financing.Terms, penalty engine.PenaltyConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: service,
		Terms:   terms,
		Penalty: penalty,
		Logger:  logger,
		now:     time.Now,
	}
}

// =============================================================================
// APPLICATION ENDPOINTS
// =============================================================================

// CreateApplication creates a finance application with a planned schedule.
// POST /api/applications
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Customer == "" {
		writeError(w, http.StatusBadRequest, "customer is required", nil)
		return
	}
	if req.InstallmentCount <= 0 {
		writeError(w, http.StatusBadRequest, "installment_count must be positive", nil)
		return
	}
	firstDue, err := time.Parse(dateLayout, req.FirstDueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "first_due_date must be YYYY-MM-DD", err)
		return
	}

	app, err := h.Service.CreateApplication(r.Context(), financing.CreateApplicationRequest{
		Customer:         req.Customer,
		Quotation:        req.Quotation,
		TotalToFinance:   decimal.NewFromFloat(req.TotalToFinance),
		Interest:         decimal.NewFromFloat(req.Interest),
		Terms:            h.Terms,
		InstallmentCount: req.InstallmentCount,
		FirstDueDate:     firstDue,
	}, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to create application", err)
		return
	}

	writeJSON(w, http.StatusCreated, toApplicationDTO(app))
}

// ListApplications returns all applications.
// GET /api/applications
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Service.ListApplications(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list applications", err)
		return
	}
	dtos := make([]ApplicationDTO, 0, len(apps))
	for _, app := range apps {
		dtos = append(dtos, toApplicationDTO(app))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetApplication returns one application.
// GET /api/applications/{id}
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id := financing.ApplicationID(chi.URLParam(r, "id"))
	app, err := h.Service.GetApplication(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get application", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// ApproveApplication approves an application and creates its schedule.
// POST /api/applications/{id}/approve
func (h *Handler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	id := financing.ApplicationID(chi.URLParam(r, "id"))
	schedule, err := h.Service.ApproveApplication(r.Context(), id, h.now())
	if err != nil {
		writeDomainError(w, "Failed to approve application", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleDTO(schedule))
}

// =============================================================================
// SCHEDULE ENDPOINTS
// =============================================================================

// ListSchedules returns all schedules.
// GET /api/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Service.ListSchedules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schedules", err)
		return
	}
	dtos := make([]ScheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		dtos = append(dtos, toScheduleDTO(schedule))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSchedule returns the full state of one schedule.
// GET /api/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := financing.ScheduleID(chi.URLParam(r, "id"))
	schedule, err := h.Service.GetSchedule(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(schedule))
}

// CommitPayment records a payment against a schedule and reallocates.
// POST /api/schedules/{id}/payments
func (h *Handler) CommitPayment(w http.ResponseWriter, r *http.Request) {
	id := financing.ScheduleID(chi.URLParam(r, "id"))

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := h.now()
	if req.Date != "" {
		parsed, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
			return
		}
		date = parsed
	}

	schedule, err := h.Service.CommitPayment(r.Context(), id, financing.PaymentRecord{
		PaymentEntry: req.PaymentEntry,
		Amount:       decimal.NewFromFloat(req.Amount),
		Date:         date,
	}, h.now())
	if err != nil {
		writeDomainError(w, "Failed to commit payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toScheduleDTO(schedule))
}

// SimulatePayment previews a hypothetical payment without recording it.
// POST /api/schedules/{id}/simulate
func (h *Handler) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	id := financing.ScheduleID(chi.URLParam(r, "id"))

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sim, err := h.Service.SimulatePayment(r.Context(), id, decimal.NewFromFloat(req.Amount))
	if err != nil {
		writeDomainError(w, "Failed to simulate payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toSimulationDTO(sim))
}

// =============================================================================
// REPORTING ENDPOINTS
// =============================================================================

// OverdueReport lists overdue schedules, most overdue first.
// GET /api/overdue
func (h *Handler) OverdueReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.OverdueReport(r.Context(), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build overdue report", err)
		return
	}
	writeJSON(w, http.StatusOK, toOverdueDTOs(report))
}

// RunPenaltyBatch triggers the penalty accrual batch immediately.
// POST /api/admin/penalties/run
func (h *Handler) RunPenaltyBatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.RunPenaltyBatch(r.Context(), h.Penalty, h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Penalty batch failed", err)
		return
	}
	writeJSON(w, http.StatusOK, BatchSummaryDTO{
		Processed: summary.Processed,
		Updated:   summary.Updated,
		Failed:    summary.Failed,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, financing.ErrApplicationNotFound),
		errors.Is(err, financing.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, financing.ErrDuplicatePayment),
		errors.Is(err, financing.ErrAlreadyApproved):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, financing.ErrInvalidPayment),
		errors.Is(err, financing.ErrScheduleNotOpen),
		errors.Is(err, financing.ErrNoInstallments):
		writeError(w, http.StatusBadRequest, message, err)
	case engine.IsInvariantViolation(err):
		writeError(w, http.StatusInternalServerError, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
