/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY IN JSON:
  Amounts cross the wire as float64 for client convenience. Internally they
  are parsed into decimals immediately and floats never touch allocation
  arithmetic.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/financing-engine/engine"
	"github.com/warp/financing-engine/financing"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreateApplicationRequest opens a finance application.
type CreateApplicationRequest struct {
	Customer         string  `json:"customer"`
	Quotation        string  `json:"quotation,omitempty"`
	TotalToFinance   float64 `json:"total_to_finance"`
	Interest         float64 `json:"interest"`
	InstallmentCount int     `json:"installment_count"`
	FirstDueDate     string  `json:"first_due_date"` // YYYY-MM-DD
}

// ApplicationDTO represents a finance application in API responses.
type ApplicationDTO struct {
	ID           string                  `json:"id"`
	Customer     string                  `json:"customer"`
	Quotation    string                  `json:"quotation,omitempty"`
	Status       string                  `json:"status"`
	Total        float64                 `json:"total_to_finance"`
	Interest     float64                 `json:"interest"`
	DownPayment  float64                 `json:"down_payment"`
	Installments []PlannedInstallmentDTO `json:"installments"`
	CreatedAt    string                  `json:"created_at"`
	ApprovedAt   string                  `json:"approved_at,omitempty"`
}

// PlannedInstallmentDTO is one planned obligation on an application.
type PlannedInstallmentDTO struct {
	DueDate string  `json:"due_date"`
	Amount  float64 `json:"amount"`
}

// PaymentRequest records a payment against a schedule.
type PaymentRequest struct {
	PaymentEntry string  `json:"payment_entry"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date,omitempty"` // YYYY-MM-DD, default today
}

// SimulateRequest previews a hypothetical payment.
type SimulateRequest struct {
	Amount float64 `json:"amount"`
}

// PaymentRefDTO is an obligation's payment history: absent when nothing is
// allocated, a single reference, or a grouped list.
type PaymentRefDTO struct {
	Kind      string          `json:"kind"` // "none" | "single" | "group"
	PaymentID string          `json:"payment_id,omitempty"`
	Amount    float64         `json:"amount,omitempty"`
	Entries   []AllocationDTO `json:"entries,omitempty"`
}

// AllocationDTO is one payment's contribution to one obligation.
type AllocationDTO struct {
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
}

// InstallmentDTO is one obligation on a live schedule.
type InstallmentDTO struct {
	DueDate string        `json:"due_date"`
	Amount  float64       `json:"amount"`
	Penalty float64       `json:"penalty"`
	Paid    float64       `json:"paid"`
	Pending float64       `json:"pending"`
	Ref     PaymentRefDTO `json:"ref"`
}

// PaymentDTO is one accepted payment record.
type PaymentDTO struct {
	PaymentEntry string  `json:"payment_entry"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
}

// ScheduleDTO represents a payment schedule in API responses.
type ScheduleDTO struct {
	ID                 string           `json:"id"`
	ApplicationID      string           `json:"application_id"`
	Customer           string           `json:"customer"`
	Status             string           `json:"status"`
	DownPaymentAmount  float64          `json:"down_payment_amount"`
	PaidDownPayment    float64          `json:"paid_down_payment"`
	PendingDownPayment float64          `json:"pending_down_payment"`
	DownPaymentPercent float64          `json:"down_payment_percent_paid"`
	DownPaymentRef     PaymentRefDTO    `json:"down_payment_ref"`
	Installments       []InstallmentDTO `json:"installments"`
	Payments           []PaymentDTO     `json:"payments"`
	CreatedAt          string           `json:"created_at"`
	UpdatedAt          string           `json:"updated_at"`
}

// SimulationDTO is the principal/penalty preview for a hypothetical payment.
type SimulationDTO struct {
	Principal float64             `json:"principal"`
	Penalty   float64             `json:"penalty"`
	Lines     []SimulationLineDTO `json:"lines"`
}

type SimulationLineDTO struct {
	InstallmentIndex int     `json:"installment_index"`
	Principal        float64 `json:"principal"`
	Penalty          float64 `json:"penalty"`
}

// OverdueEntryDTO is one schedule in the overdue report.
type OverdueEntryDTO struct {
	ScheduleID    string  `json:"schedule_id"`
	Customer      string  `json:"customer"`
	TotalPending  float64 `json:"total_pending"`
	OverdueCount  int     `json:"overdue_count"`
	OldestDueDate string  `json:"oldest_due_date"`
	DaysOverdue   int     `json:"days_overdue"`
}

// BatchSummaryDTO reports a penalty accrual run.
type BatchSummaryDTO struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const dateLayout = "2006-01-02"

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toApplicationDTO(app *financing.Application) ApplicationDTO {
	dto := ApplicationDTO{
		ID:          string(app.ID),
		Customer:    app.Customer,
		Quotation:   app.Quotation,
		Status:      string(app.Status),
		Total:       money(app.TotalToFinance),
		Interest:    money(app.Interest),
		DownPayment: money(app.DownPayment),
		CreatedAt:   app.CreatedAt.Format(time.RFC3339),
	}
	if !app.ApprovedAt.IsZero() {
		dto.ApprovedAt = app.ApprovedAt.Format(time.RFC3339)
	}
	dto.Installments = make([]PlannedInstallmentDTO, 0, len(app.Installments))
	for _, inst := range app.Installments {
		dto.Installments = append(dto.Installments, PlannedInstallmentDTO{
			DueDate: inst.DueDate.Format(dateLayout),
			Amount:  money(inst.Amount),
		})
	}
	return dto
}

func toRefDTO(ref engine.PaymentRef) PaymentRefDTO {
	switch ref.Kind {
	case engine.RefSingle:
		return PaymentRefDTO{
			Kind:      "single",
			PaymentID: ref.PaymentID,
			Amount:    money(engine.FromCents(ref.Amount)),
		}
	case engine.RefGroup:
		entries := make([]AllocationDTO, 0, len(ref.Entries))
		for _, e := range ref.Entries {
			entries = append(entries, AllocationDTO{
				PaymentID: e.PaymentID,
				Amount:    money(engine.FromCents(e.Amount)),
			})
		}
		return PaymentRefDTO{Kind: "group", Entries: entries}
	default:
		return PaymentRefDTO{Kind: "none"}
	}
}

func toScheduleDTO(schedule *financing.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:                 string(schedule.ID),
		ApplicationID:      string(schedule.ApplicationID),
		Customer:           schedule.Customer,
		Status:             string(schedule.Status),
		DownPaymentAmount:  money(schedule.DownPaymentAmount),
		PaidDownPayment:    money(schedule.PaidDownPayment),
		PendingDownPayment: money(schedule.PendingDownPayment),
		DownPaymentPercent: money(schedule.DownPaymentPercentPaid()),
		DownPaymentRef:     toRefDTO(schedule.DownPaymentRef),
		CreatedAt:          schedule.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          schedule.UpdatedAt.Format(time.RFC3339),
	}
	dto.Installments = make([]InstallmentDTO, 0, len(schedule.Installments))
	for _, inst := range schedule.Installments {
		dto.Installments = append(dto.Installments, InstallmentDTO{
			DueDate: inst.DueDate.Format(dateLayout),
			Amount:  money(inst.Amount),
			Penalty: money(inst.PenaltyAmount),
			Paid:    money(inst.PaidAmount),
			Pending: money(inst.PendingAmount),
			Ref:     toRefDTO(inst.Ref),
		})
	}
	dto.Payments = make([]PaymentDTO, 0, len(schedule.Payments))
	for _, rec := range schedule.Payments {
		dto.Payments = append(dto.Payments, PaymentDTO{
			PaymentEntry: rec.PaymentEntry,
			Amount:       money(rec.Amount),
			Date:         rec.Date.Format(dateLayout),
		})
	}
	return dto
}

func toSimulationDTO(sim financing.Simulation) SimulationDTO {
	dto := SimulationDTO{
		Principal: money(sim.Principal),
		Penalty:   money(sim.Penalty),
		Lines:     make([]SimulationLineDTO, 0, len(sim.Lines)),
	}
	for _, line := range sim.Lines {
		dto.Lines = append(dto.Lines, SimulationLineDTO{
			InstallmentIndex: line.InstallmentIndex,
			Principal:        money(line.Principal),
			Penalty:          money(line.Penalty),
		})
	}
	return dto
}

func toOverdueDTOs(report []financing.OverdueEntry) []OverdueEntryDTO {
	dtos := make([]OverdueEntryDTO, 0, len(report))
	for _, entry := range report {
		dtos = append(dtos, OverdueEntryDTO{
			ScheduleID:    string(entry.ScheduleID),
			Customer:      entry.Customer,
			TotalPending:  money(entry.TotalPending),
			OverdueCount:  entry.OverdueCount,
			OldestDueDate: entry.OldestDueDate.Format(dateLayout),
			DaysOverdue:   entry.DaysOverdue,
		})
	}
	return dtos
}
