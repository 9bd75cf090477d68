/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  internal domain model. This is also where the read-model enrichment
  lives: beneficiary payloads carry days_remaining and program_progress,
  computed at serialization time by toDisplay and never persisted.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - program/progress.go: the pure derivations toDisplay applies
*/
package api

import (
	"time"

	"github.com/careflow/nutrition-engine/inventory"
	"github.com/careflow/nutrition-engine/program"
)

// =============================================================================
// BENEFICIARY
// =============================================================================

// BeneficiaryDTO is the enriched outbound shape. DaysRemaining and
// ProgramProgress are derived display fields, computed per response.
type BeneficiaryDTO struct {
	ID               string `json:"id"`
	NationalID       string `json:"national_id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	WorkerID         string `json:"worker_id"`
	TotalProgramDays int    `json:"total_program_days"`
	CompletedDays    int    `json:"completed_days"`
	AttendanceRate   int    `json:"attendance_rate"`
	DaysRemaining    int    `json:"days_remaining"`
	ProgramProgress  int    `json:"program_progress"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// toDisplay is the read-model transform applied to every outbound
// beneficiary payload. Pure; the derived fields never touch the store.
func toDisplay(b program.Beneficiary) BeneficiaryDTO {
	return BeneficiaryDTO{
		ID:               string(b.ID),
		NationalID:       b.NationalID,
		Name:             b.Name,
		Type:             string(b.Type),
		Status:           string(b.Status),
		WorkerID:         string(b.WorkerID),
		TotalProgramDays: b.TotalProgramDays,
		CompletedDays:    b.CompletedDays,
		AttendanceRate:   b.AttendanceRate,
		DaysRemaining:    program.DaysRemaining(b),
		ProgramProgress:  program.AttendanceRate(b.CompletedDays, b.TotalProgramDays),
		CreatedAt:        formatTimestamp(b.CreatedAt),
	}
}

// toDisplayList applies the same transform to an array payload.
func toDisplayList(bs []program.Beneficiary) []BeneficiaryDTO {
	dtos := make([]BeneficiaryDTO, len(bs))
	for i, b := range bs {
		dtos[i] = toDisplay(b)
	}
	return dtos
}

// CreateBeneficiaryRequest is the request to enroll a beneficiary.
type CreateBeneficiaryRequest struct {
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	WorkerID   string `json:"worker_id"`
}

// UpdateStatusRequest toggles active/inactive.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// PROGRAM DAYS
// =============================================================================

type DayDTO struct {
	ID            string `json:"id"`
	BeneficiaryID string `json:"beneficiary_id"`
	DayNumber     int    `json:"day_number"`
	Date          string `json:"date"`
	Attended      bool   `json:"attended"`
	ActivityType  string `json:"activity_type"`
	Notes         string `json:"notes,omitempty"`
}

func toDayDTO(d program.ProgramDay) DayDTO {
	return DayDTO{
		ID:            string(d.ID),
		BeneficiaryID: string(d.BeneficiaryID),
		DayNumber:     d.DayNumber,
		Date:          d.Date.Format("2006-01-02"),
		Attended:      d.Attended,
		ActivityType:  string(d.ActivityType),
		Notes:         d.Notes,
	}
}

// AddDayRequest enrolls a new program day.
type AddDayRequest struct {
	DayNumber    int    `json:"day_number"`
	Date         string `json:"date"`
	ActivityType string `json:"activity_type"`
	Notes        string `json:"notes"`
}

// SetAttendanceRequest toggles attendance on a day.
type SetAttendanceRequest struct {
	Attended bool    `json:"attended"`
	Notes    *string `json:"notes,omitempty"`
}

// =============================================================================
// STOCK AND DISTRIBUTIONS
// =============================================================================

type StockDTO struct {
	ID        string  `json:"id"`
	WorkerID  string  `json:"worker_id"`
	ProductID string  `json:"product_id"`
	TotalKg   float64 `json:"total_kg"`
}

func toStockDTO(s inventory.Stock) StockDTO {
	kg, _ := s.TotalKg.Float64()
	return StockDTO{
		ID:        s.ID,
		WorkerID:  string(s.WorkerID),
		ProductID: string(s.ProductID),
		TotalKg:   kg,
	}
}

type MainStockDTO struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	TotalKg   float64 `json:"total_kg"`
}

func toMainStockDTO(ms inventory.MainStock) MainStockDTO {
	kg, _ := ms.TotalKg.Float64()
	return MainStockDTO{
		ID:        ms.ID,
		ProductID: string(ms.ProductID),
		TotalKg:   kg,
	}
}

type DistributionDTO struct {
	ID            string  `json:"id"`
	BeneficiaryID string  `json:"beneficiary_id"`
	ProductID     string  `json:"product_id"`
	WorkerID      string  `json:"worker_id"`
	QuantityKg    float64 `json:"quantity_kg"`
	DistributedAt string  `json:"distributed_at"`
}

func toDistributionDTO(d inventory.Distribution) DistributionDTO {
	kg, _ := d.QuantityKg.Float64()
	return DistributionDTO{
		ID:            d.ID,
		BeneficiaryID: string(d.BeneficiaryID),
		ProductID:     string(d.ProductID),
		WorkerID:      string(d.WorkerID),
		QuantityKg:    kg,
		DistributedAt: d.DistributedAt.Format(time.RFC3339),
	}
}

type StockTransactionDTO struct {
	ID         string  `json:"id"`
	ProductID  string  `json:"product_id"`
	QuantityKg float64 `json:"quantity_kg"`
	Type       string  `json:"type"`
	Reference  string  `json:"reference,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func toTransactionDTO(tx inventory.StockTransaction) StockTransactionDTO {
	kg, _ := tx.QuantityKg.Float64()
	return StockTransactionDTO{
		ID:         tx.ID,
		ProductID:  string(tx.ProductID),
		QuantityKg: kg,
		Type:       string(tx.Type),
		Reference:  tx.Reference,
		CreatedAt:  tx.CreatedAt.Format(time.RFC3339),
	}
}

// DistributeRequest creates a distribution.
type DistributeRequest struct {
	BeneficiaryID string  `json:"beneficiary_id"`
	ProductID     string  `json:"product_id"`
	WorkerID      string  `json:"worker_id"`
	QuantityKg    float64 `json:"quantity_kg"`
}

// RestockRequest adds to the central pool.
type RestockRequest struct {
	ProductID string  `json:"product_id"`
	TotalKg   float64 `json:"total_stock"`
}

// TransferRequest moves central stock to a field worker.
type TransferRequest struct {
	ProductID  string  `json:"product_id"`
	WorkerID   string  `json:"worker_id"`
	QuantityKg float64 `json:"quantity_kg"`
}

// =============================================================================
// MISC
// =============================================================================

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
