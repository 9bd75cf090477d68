/*
handlers_test.go - HTTP-level tests over the full router

Tests for:
- Beneficiary enrollment and response enrichment
- Program day lifecycle through the REST surface
- Inline status reconciliation on the beneficiary routes
- Stock endpoints and domain error to status-code mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/careflow/nutrition-engine/inventory"
	"github.com/careflow/nutrition-engine/program"
	"github.com/careflow/nutrition-engine/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	srv := httptest.NewServer(NewRouter(NewHandler(store, store)))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// =============================================================================
// BENEFICIARIES
// =============================================================================

func TestCreateBeneficiary_EnrichedResponse(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/beneficiaries", CreateBeneficiaryRequest{
		NationalID: "nid-1",
		Name:       "Amina",
		Type:       "child",
		WorkerID:   "w-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var dto BeneficiaryDTO
	decodeBody(t, resp, &dto)

	if dto.ID == "" {
		t.Error("Expected a generated id")
	}
	if dto.Status != "active" {
		t.Errorf("New beneficiaries should start active, got %q", dto.Status)
	}
	if dto.DaysRemaining != 0 || dto.ProgramProgress != 0 {
		t.Errorf("Fresh enrollment should have zero derived fields, got remaining=%d progress=%d",
			dto.DaysRemaining, dto.ProgramProgress)
	}
}

func TestCreateBeneficiary_DuplicateNationalID_Conflict(t *testing.T) {
	srv, _ := newTestServer(t)

	req := CreateBeneficiaryRequest{NationalID: "nid-1", Name: "Amina", Type: "pregnant", WorkerID: "w-1"}
	if resp := doJSON(t, "POST", srv.URL+"/api/beneficiaries", req); resp.StatusCode != http.StatusCreated {
		t.Fatalf("First enrollment should succeed, got %d", resp.StatusCode)
	}

	req.Name = "Someone Else"
	resp := doJSON(t, "POST", srv.URL+"/api/beneficiaries", req)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Duplicate national id should give 409, got %d", resp.StatusCode)
	}
}

func TestCreateBeneficiary_InvalidType(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/beneficiaries", CreateBeneficiaryRequest{
		NationalID: "nid-1", Name: "Amina", Type: "adult", WorkerID: "w-1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Unknown type should give 400, got %d", resp.StatusCode)
	}
}

func TestGetBeneficiary_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, "GET", srv.URL+"/api/beneficiaries/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

// =============================================================================
// PROGRAM DAY LIFECYCLE + INLINE RECONCILIATION
// =============================================================================

func TestProgramLifecycle_InlineCompletion(t *testing.T) {
	// A beneficiary attends a full two-day program through the REST
	// surface. The status flip to completed happens on the next
	// beneficiary-path request via the inline sweep, without waiting for
	// the daily scheduler.

	srv, _ := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/beneficiaries", CreateBeneficiaryRequest{
		NationalID: "nid-1", Name: "Amina", Type: "child", WorkerID: "w-1",
	})
	var created BeneficiaryDTO
	decodeBody(t, resp, &created)

	type dayResponse struct {
		Day         DayDTO         `json:"day"`
		Beneficiary BeneficiaryDTO `json:"beneficiary"`
	}

	var dayIDs []string
	for n := 1; n <= 2; n++ {
		resp := doJSON(t, "POST", fmt.Sprintf("%s/api/beneficiaries/%s/days", srv.URL, created.ID), AddDayRequest{
			DayNumber:    n,
			Date:         fmt.Sprintf("2026-03-0%d", n),
			ActivityType: "attendance",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("Add day %d: expected 201, got %d", n, resp.StatusCode)
		}
		var dr dayResponse
		decodeBody(t, resp, &dr)
		dayIDs = append(dayIDs, dr.Day.ID)
	}

	// Attend day 1: 1 of 2 done.
	resp = doJSON(t, "PUT", fmt.Sprintf("%s/api/beneficiaries/%s/days/%s", srv.URL, created.ID, dayIDs[0]),
		SetAttendanceRequest{Attended: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Set attendance: expected 200, got %d", resp.StatusCode)
	}
	var dr dayResponse
	decodeBody(t, resp, &dr)
	if dr.Beneficiary.CompletedDays != 1 || dr.Beneficiary.DaysRemaining != 1 {
		t.Errorf("Expected 1 completed / 1 remaining, got %d / %d",
			dr.Beneficiary.CompletedDays, dr.Beneficiary.DaysRemaining)
	}
	if dr.Beneficiary.ProgramProgress != 50 {
		t.Errorf("Expected 50%% progress, got %d", dr.Beneficiary.ProgramProgress)
	}

	// Attend day 2: program finished.
	doJSON(t, "PUT", fmt.Sprintf("%s/api/beneficiaries/%s/days/%s", srv.URL, created.ID, dayIDs[1]),
		SetAttendanceRequest{Attended: true})

	// The next read sees the completed status via the inline sweep.
	resp = doJSON(t, "GET", srv.URL+"/api/beneficiaries/"+created.ID, nil)
	var final BeneficiaryDTO
	decodeBody(t, resp, &final)
	if final.Status != "completed" {
		t.Errorf("Expected completed after full attendance, got %q", final.Status)
	}
	if final.ProgramProgress != 100 || final.DaysRemaining != 0 {
		t.Errorf("Expected 100%% / 0 remaining, got %d / %d", final.ProgramProgress, final.DaysRemaining)
	}

	// Completed beneficiaries cannot be toggled back.
	resp = doJSON(t, "PUT", srv.URL+"/api/beneficiaries/"+created.ID+"/status",
		UpdateStatusRequest{Status: "inactive"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Status change on completed should give 409, got %d", resp.StatusCode)
	}
}

func TestRemoveDay_ReturnsUpdatedCounters(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/beneficiaries", CreateBeneficiaryRequest{
		NationalID: "nid-1", Name: "Amina", Type: "child", WorkerID: "w-1",
	})
	var created BeneficiaryDTO
	decodeBody(t, resp, &created)

	resp = doJSON(t, "POST", fmt.Sprintf("%s/api/beneficiaries/%s/days", srv.URL, created.ID), AddDayRequest{
		DayNumber: 1, Date: "2026-03-01", ActivityType: "check-in",
	})
	var dr struct {
		Day DayDTO `json:"day"`
	}
	decodeBody(t, resp, &dr)

	resp = doJSON(t, "DELETE", fmt.Sprintf("%s/api/beneficiaries/%s/days/%s", srv.URL, created.ID, dr.Day.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var removed struct {
		Beneficiary BeneficiaryDTO `json:"beneficiary"`
	}
	decodeBody(t, resp, &removed)
	if removed.Beneficiary.TotalProgramDays != 0 {
		t.Errorf("Expected counters walked back to 0, got %d", removed.Beneficiary.TotalProgramDays)
	}
}

// =============================================================================
// STOCK ENDPOINTS
// =============================================================================

func seedStockWorld(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveProduct(ctx, inventory.Product{ID: "p-1", Name: "Fortified flour"}); err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	if err := store.SaveWorker(ctx, inventory.Worker{ID: "w-1", Name: "Field Worker"}); err != nil {
		t.Fatalf("Failed to seed worker: %v", err)
	}
}

func TestRestockEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedStockWorld(t, store)

	resp := doJSON(t, "POST", srv.URL+"/api/main-stock", RestockRequest{ProductID: "p-1", TotalKg: 10})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		MainStock   MainStockDTO        `json:"main_stock"`
		Transaction StockTransactionDTO `json:"transaction"`
	}
	decodeBody(t, resp, &body)
	if body.MainStock.TotalKg != 10 {
		t.Errorf("Expected 10 kg pool, got %v", body.MainStock.TotalKg)
	}
	if body.Transaction.Type != "IN" {
		t.Errorf("Expected IN ledger entry, got %q", body.Transaction.Type)
	}

	// Unknown product maps to 404.
	resp = doJSON(t, "POST", srv.URL+"/api/main-stock", RestockRequest{ProductID: "ghost", TotalKg: 10})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown product, got %d", resp.StatusCode)
	}
}

func TestDistributionEndpoint_FullChain(t *testing.T) {
	// Restock central, transfer to the worker, then distribute to a
	// beneficiary. This walks the complete chain of custody.

	srv, store := newTestServer(t)
	seedStockWorld(t, store)
	ctx := context.Background()

	if err := store.CreateBeneficiary(ctx, program.Beneficiary{
		ID: "b-1", NationalID: "nid-1", Name: "Amina",
		Type: program.TypeChild, Status: program.StatusActive, WorkerID: "w-1",
		TotalProgramDays: 30,
	}); err != nil {
		t.Fatalf("Failed to seed beneficiary: %v", err)
	}

	if resp := doJSON(t, "POST", srv.URL+"/api/main-stock", RestockRequest{ProductID: "p-1", TotalKg: 20}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("Restock failed: %d", resp.StatusCode)
	}
	if resp := doJSON(t, "POST", srv.URL+"/api/stock-transfers", TransferRequest{ProductID: "p-1", WorkerID: "w-1", QuantityKg: 8}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("Transfer failed: %d", resp.StatusCode)
	}

	resp := doJSON(t, "POST", srv.URL+"/api/distributions", DistributeRequest{
		BeneficiaryID: "b-1", ProductID: "p-1", WorkerID: "w-1", QuantityKg: 2.5,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		Distribution DistributionDTO `json:"distribution"`
		Beneficiary  BeneficiaryDTO  `json:"beneficiary"`
	}
	decodeBody(t, resp, &body)
	if body.Beneficiary.CompletedDays != 1 {
		t.Errorf("Distribution should count as a completed day, got %d", body.Beneficiary.CompletedDays)
	}

	stock, err := store.GetStock(ctx, "w-1", "p-1")
	if err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}
	if !stock.TotalKg.Equal(decimal.RequireFromString("5.5")) {
		t.Errorf("Expected 5.5 kg left, got %s", stock.TotalKg)
	}
}

func TestDistributionEndpoint_OutOfStock_BadRequest(t *testing.T) {
	srv, store := newTestServer(t)
	seedStockWorld(t, store)

	if err := store.CreateBeneficiary(context.Background(), program.Beneficiary{
		ID: "b-1", NationalID: "nid-1", Name: "Amina",
		Type: program.TypeChild, Status: program.StatusActive, WorkerID: "w-1",
		TotalProgramDays: 30,
	}); err != nil {
		t.Fatalf("Failed to seed beneficiary: %v", err)
	}

	resp := doJSON(t, "POST", srv.URL+"/api/distributions", DistributeRequest{
		BeneficiaryID: "b-1", ProductID: "p-1", WorkerID: "w-1", QuantityKg: 2,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Out-of-stock should give 400, got %d", resp.StatusCode)
	}
}

// =============================================================================
// ADMIN
// =============================================================================

func TestTriggerReconcile_ReportsCounts(t *testing.T) {
	srv, store := newTestServer(t)

	if err := store.CreateBeneficiary(context.Background(), program.Beneficiary{
		ID: "b-1", NationalID: "nid-1", Name: "Amina",
		Type: program.TypeChild, Status: program.StatusActive, WorkerID: "w-1",
		TotalProgramDays: 5, CompletedDays: 5,
	}); err != nil {
		t.Fatalf("Failed to seed beneficiary: %v", err)
	}

	resp := doJSON(t, "POST", srv.URL+"/api/admin/reconcile", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Examined int `json:"examined"`
		Flipped  int `json:"flipped"`
		Failed   int `json:"failed"`
	}
	decodeBody(t, resp, &body)
	if body.Flipped != 1 {
		t.Errorf("Expected 1 flipped, got %d", body.Flipped)
	}
}
