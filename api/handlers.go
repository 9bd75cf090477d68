/*
handlers.go - HTTP API handlers for the nutrition program engine

PURPOSE:
  Exposes the beneficiary tracking and stock distribution engine via REST.
  Handles HTTP request/response and JSON serialization, delegates to the
  day manager and distribution processor for all invariant-bearing logic.

ENDPOINTS:
  Beneficiaries:
    GET    /api/beneficiaries                     List (enriched)
    POST   /api/beneficiaries                     Enroll beneficiary
    GET    /api/beneficiaries/{id}                Get (enriched)
    PUT    /api/beneficiaries/{id}/status         Set active/inactive
    GET    /api/beneficiaries/{id}/days           List program days
    POST   /api/beneficiaries/{id}/days           Add program day
    PUT    /api/beneficiaries/{id}/days/{dayId}   Set attendance
    DELETE /api/beneficiaries/{id}/days/{dayId}   Remove day

  Stock:
    POST   /api/distributions                     Distribute to beneficiary
    GET    /api/distributions                     List distributions
    POST   /api/main-stock                        Central restock
    GET    /api/main-stock                        Central pools + ledger
    POST   /api/stock-transfers                   Central -> worker transfer
    GET    /api/workers/{id}/stock                Worker pools

  Admin:
    POST   /api/admin/reconcile                   Manual status sweep

ERROR HANDLING:
  Domain errors map to HTTP status via statusForError:
  - 400: InvalidArgument, OutOfStock, ProgramOverrun
  - 404: NotFound
  - 409: Conflict
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/careflow/nutrition-engine/inventory"
	"github.com/careflow/nutrition-engine/program"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Programs  program.Store
	Inventory inventory.Store
	Manager   *program.DayManager
	Processor *inventory.Processor
}

// NewHandler creates a new handler over the given stores.
func NewHandler(programs program.Store, inv inventory.Store) *Handler {
	return &Handler{
		Programs:  programs,
		Inventory: inv,
		Manager:   program.NewDayManager(programs),
		Processor: inventory.NewProcessor(programs, inv),
	}
}

// =============================================================================
// BENEFICIARY HANDLERS
// =============================================================================

// ListBeneficiaries returns all beneficiaries with display enrichment.
func (h *Handler) ListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	beneficiaries, err := h.Programs.ListBeneficiaries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list beneficiaries", err)
		return
	}
	writeJSON(w, http.StatusOK, toDisplayList(beneficiaries))
}

// GetBeneficiary returns a single enriched beneficiary.
func (h *Handler) GetBeneficiary(w http.ResponseWriter, r *http.Request) {
	id := program.BeneficiaryID(chi.URLParam(r, "id"))

	b, err := h.Programs.GetBeneficiary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get beneficiary", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Beneficiary not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toDisplay(*b))
}

// CreateBeneficiary enrolls a new beneficiary, created active with empty
// counters.
func (h *Handler) CreateBeneficiary(w http.ResponseWriter, r *http.Request) {
	var req CreateBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.NationalID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "national_id and name are required", nil)
		return
	}
	if !program.ValidBeneficiaryType(program.BeneficiaryType(req.Type)) {
		writeError(w, http.StatusBadRequest, "type must be pregnant, breastfeeding or child", nil)
		return
	}

	now := time.Now().UTC()
	b := program.Beneficiary{
		ID:         program.BeneficiaryID(uuid.NewString()),
		NationalID: req.NationalID,
		Name:       req.Name,
		Type:       program.BeneficiaryType(req.Type),
		Status:     program.StatusActive,
		WorkerID:   program.WorkerID(req.WorkerID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.Programs.CreateBeneficiary(r.Context(), b); err != nil {
		writeDomainError(w, "Failed to create beneficiary", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisplay(b))
}

// UpdateBeneficiaryStatus toggles active/inactive. Completed is owned by
// the reconciliation path and cannot be set here.
func (h *Handler) UpdateBeneficiaryStatus(w http.ResponseWriter, r *http.Request) {
	id := program.BeneficiaryID(chi.URLParam(r, "id"))

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := program.Status(req.Status)
	if status != program.StatusActive && status != program.StatusInactive {
		writeError(w, http.StatusBadRequest, "status must be active or inactive", nil)
		return
	}

	b, err := h.Programs.GetBeneficiary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get beneficiary", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Beneficiary not found", nil)
		return
	}
	if b.Status == program.StatusCompleted {
		writeError(w, http.StatusConflict, "Completed beneficiaries cannot change status", nil)
		return
	}

	if err := h.Programs.UpdateStatus(r.Context(), id, status); err != nil {
		writeDomainError(w, "Failed to update status", err)
		return
	}

	b.Status = status
	writeJSON(w, http.StatusOK, toDisplay(*b))
}

// =============================================================================
// PROGRAM DAY HANDLERS
// =============================================================================

// ListDays returns a beneficiary's program days ordered by day number.
func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	id := program.BeneficiaryID(chi.URLParam(r, "id"))

	b, err := h.Programs.GetBeneficiary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get beneficiary", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Beneficiary not found", nil)
		return
	}

	days, err := h.Programs.ListDays(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list days", err)
		return
	}

	dtos := make([]DayDTO, len(days))
	for i, d := range days {
		dtos[i] = toDayDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddDay enrolls a new program day.
func (h *Handler) AddDay(w http.ResponseWriter, r *http.Request) {
	id := program.BeneficiaryID(chi.URLParam(r, "id"))

	var req AddDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	day, beneficiary, err := h.Manager.AddDay(r.Context(), program.AddDayInput{
		BeneficiaryID: id,
		DayNumber:     req.DayNumber,
		Date:          date,
		ActivityType:  program.ActivityType(req.ActivityType),
		Notes:         req.Notes,
	})
	if err != nil {
		writeDomainError(w, "Failed to add program day", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"day":         toDayDTO(*day),
		"beneficiary": toDisplay(*beneficiary),
	})
}

// SetAttendance toggles attendance on a day.
func (h *Handler) SetAttendance(w http.ResponseWriter, r *http.Request) {
	id := program.BeneficiaryID(chi.URLParam(r, "id"))
	dayID := program.DayID(chi.URLParam(r, "dayId"))

	var req SetAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	day, beneficiary, err := h.Manager.SetAttendance(r.Context(), id, dayID, req.Attended, req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to set attendance", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"day":         toDayDTO(*day),
		"beneficiary": toDisplay(*beneficiary),
	})
}

// RemoveDay deletes a program day and walks the counters back.
func (h *Handler) RemoveDay(w http.ResponseWriter, r *http.Request) {
	id := program.BeneficiaryID(chi.URLParam(r, "id"))
	dayID := program.DayID(chi.URLParam(r, "dayId"))

	beneficiary, err := h.Manager.RemoveDay(r.Context(), id, dayID)
	if err != nil {
		writeDomainError(w, "Failed to remove program day", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Program day removed",
		"beneficiary": toDisplay(*beneficiary),
	})
}

// =============================================================================
// DISTRIBUTION HANDLERS
// =============================================================================

// CreateDistribution executes the distribute transaction.
func (h *Handler) CreateDistribution(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Processor.Distribute(r.Context(), inventory.DistributeInput{
		BeneficiaryID: program.BeneficiaryID(req.BeneficiaryID),
		ProductID:     inventory.ProductID(req.ProductID),
		WorkerID:      program.WorkerID(req.WorkerID),
		QuantityKg:    decimal.NewFromFloat(req.QuantityKg),
	})
	if err != nil {
		writeDomainError(w, "Failed to distribute", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"distribution": toDistributionDTO(result.Distribution),
		"beneficiary":  toDisplay(result.Beneficiary),
	})
}

// ListDistributions returns all distribution records.
func (h *Handler) ListDistributions(w http.ResponseWriter, r *http.Request) {
	dists, err := h.Inventory.ListDistributions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list distributions", err)
		return
	}

	dtos := make([]DistributionDTO, len(dists))
	for i, d := range dists {
		dtos[i] = toDistributionDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// Restock adds to the central pool and appends an IN ledger entry.
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Processor.Restock(r.Context(),
		inventory.ProductID(req.ProductID), decimal.NewFromFloat(req.TotalKg))
	if err != nil {
		writeDomainError(w, "Failed to restock", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"main_stock":  toMainStockDTO(result.MainStock),
		"transaction": toTransactionDTO(result.Transaction),
	})
}

// ListMainStock returns the central pools with their ledgers.
func (h *Handler) ListMainStock(w http.ResponseWriter, r *http.Request) {
	pools, err := h.Inventory.ListMainStock(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list main stock", err)
		return
	}

	type PoolDTO struct {
		MainStockDTO
		Transactions []StockTransactionDTO `json:"transactions"`
	}

	dtos := make([]PoolDTO, 0, len(pools))
	for _, ms := range pools {
		txs, err := h.Inventory.ListTransactions(r.Context(), ms.ProductID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list stock transactions", err)
			return
		}
		txDTOs := make([]StockTransactionDTO, len(txs))
		for i, tx := range txs {
			txDTOs[i] = toTransactionDTO(tx)
		}
		dtos = append(dtos, PoolDTO{MainStockDTO: toMainStockDTO(ms), Transactions: txDTOs})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TransferStock moves central stock to a worker's pool.
func (h *Handler) TransferStock(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Processor.TransferStock(r.Context(),
		inventory.ProductID(req.ProductID),
		program.WorkerID(req.WorkerID),
		decimal.NewFromFloat(req.QuantityKg))
	if err != nil {
		writeDomainError(w, "Failed to transfer stock", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"main_stock":  toMainStockDTO(result.MainStock),
		"stock":       toStockDTO(result.Stock),
		"transaction": toTransactionDTO(result.Transaction),
	})
}

// GetWorkerStock returns a field worker's pools.
func (h *Handler) GetWorkerStock(w http.ResponseWriter, r *http.Request) {
	workerID := program.WorkerID(chi.URLParam(r, "id"))

	stocks, err := h.Inventory.ListWorkerStock(r.Context(), workerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list worker stock", err)
		return
	}

	dtos := make([]StockDTO, len(stocks))
	for i, s := range stocks {
		dtos[i] = toStockDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerReconcile runs the status sweep on demand.
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := program.ReconcileAll(r.Context(), h.Programs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation sweep failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"examined": res.Examined,
		"flipped":  res.Flipped,
		"failed":   res.Failed,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case program.IsNotFound(err):
		return http.StatusNotFound
	case program.IsConflict(err):
		return http.StatusConflict
	case program.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusForError(err), message, err)
}

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
