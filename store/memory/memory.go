/*
Package memory provides an in-memory implementation of the storage
interfaces, for tests and development.

PURPOSE:
  Implements program.Store and inventory.Store with the exact same
  conditional-update semantics as the SQLite store: counter adjustments
  are clamped and rate-recomputed under the store lock, and stock
  decrements fail atomically when the pool is short. Tests exercising the
  concurrency invariants run against this store.

SEE ALSO:
  - store/sqlite: the production implementation
  - program/store.go, inventory/store.go: interface contracts
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/careflow/nutrition-engine/inventory"
	"github.com/careflow/nutrition-engine/program"
)

type stockKey struct {
	WorkerID  program.WorkerID
	ProductID inventory.ProductID
}

// Store is a mutex-guarded in-memory store.
type Store struct {
	mu sync.RWMutex

	beneficiaries map[program.BeneficiaryID]program.Beneficiary
	nationalIDs   map[string]program.BeneficiaryID
	days          map[program.DayID]program.ProgramDay

	products      map[inventory.ProductID]inventory.Product
	workers       map[program.WorkerID]inventory.Worker
	stocks        map[stockKey]inventory.Stock
	mainStocks    map[inventory.ProductID]inventory.MainStock
	distributions map[string]inventory.Distribution
	ledger        []inventory.StockTransaction
}

func New() *Store {
	return &Store{
		beneficiaries: make(map[program.BeneficiaryID]program.Beneficiary),
		nationalIDs:   make(map[string]program.BeneficiaryID),
		days:          make(map[program.DayID]program.ProgramDay),
		products:      make(map[inventory.ProductID]inventory.Product),
		workers:       make(map[program.WorkerID]inventory.Worker),
		stocks:        make(map[stockKey]inventory.Stock),
		mainStocks:    make(map[inventory.ProductID]inventory.MainStock),
		distributions: make(map[string]inventory.Distribution),
	}
}

// =============================================================================
// BENEFICIARY STORE (program.BeneficiaryStore)
// =============================================================================

func (s *Store) CreateBeneficiary(_ context.Context, b program.Beneficiary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.beneficiaries[b.ID]; ok {
		return fmt.Errorf("beneficiary %s already exists: %w", b.ID, program.ErrConflict)
	}
	if existing, ok := s.nationalIDs[b.NationalID]; ok {
		return fmt.Errorf("national id %s already registered to %s: %w", b.NationalID, existing, program.ErrConflict)
	}

	s.beneficiaries[b.ID] = b
	s.nationalIDs[b.NationalID] = b.ID
	return nil
}

func (s *Store) GetBeneficiary(_ context.Context, id program.BeneficiaryID) (*program.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.beneficiaries[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *Store) ListBeneficiaries(_ context.Context) ([]program.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]program.Beneficiary, 0, len(s.beneficiaries))
	for _, b := range s.beneficiaries {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id program.BeneficiaryID, status program.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.beneficiaries[id]
	if !ok {
		return fmt.Errorf("beneficiary %s: %w", id, program.ErrNotFound)
	}
	// Completed is terminal; checked under the same lock as the write.
	if b.Status == program.StatusCompleted {
		return fmt.Errorf("beneficiary %s is completed: %w", id, program.ErrConflict)
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	s.beneficiaries[id] = b
	return nil
}

func (s *Store) AdjustCounters(_ context.Context, id program.BeneficiaryID, totalDelta, completedDelta int) (*program.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.beneficiaries[id]
	if !ok {
		return nil, fmt.Errorf("beneficiary %s: %w", id, program.ErrNotFound)
	}

	total, completed := program.ClampCounters(b.TotalProgramDays+totalDelta, b.CompletedDays+completedDelta)
	b.TotalProgramDays = total
	b.CompletedDays = completed
	b.AttendanceRate = program.AttendanceRate(completed, total)
	b.UpdatedAt = time.Now().UTC()
	s.beneficiaries[id] = b
	return &b, nil
}

func (s *Store) IncrementCompletedIfCapacity(_ context.Context, id program.BeneficiaryID) (*program.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.beneficiaries[id]
	if !ok {
		return nil, fmt.Errorf("beneficiary %s: %w", id, program.ErrNotFound)
	}
	if b.CompletedDays >= b.TotalProgramDays {
		return nil, &program.ProgramOverrunError{
			BeneficiaryID:    id,
			CompletedDays:    b.CompletedDays,
			TotalProgramDays: b.TotalProgramDays,
		}
	}

	b.CompletedDays++
	b.AttendanceRate = program.AttendanceRate(b.CompletedDays, b.TotalProgramDays)
	b.UpdatedAt = time.Now().UTC()
	s.beneficiaries[id] = b
	return &b, nil
}

func (s *Store) DeleteBeneficiary(_ context.Context, id program.BeneficiaryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.beneficiaries[id]
	if !ok {
		return fmt.Errorf("beneficiary %s: %w", id, program.ErrNotFound)
	}

	delete(s.beneficiaries, id)
	delete(s.nationalIDs, b.NationalID)
	// Cascade: a beneficiary is never deleted independently of its days.
	for dayID, day := range s.days {
		if day.BeneficiaryID == id {
			delete(s.days, dayID)
		}
	}
	return nil
}

// =============================================================================
// PROGRAM DAY STORE (program.ProgramDayStore)
// =============================================================================

func (s *Store) InsertDay(_ context.Context, d program.ProgramDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.beneficiaries[d.BeneficiaryID]; !ok {
		return fmt.Errorf("beneficiary %s: %w", d.BeneficiaryID, program.ErrNotFound)
	}
	if _, ok := s.days[d.ID]; ok {
		return fmt.Errorf("day %s already exists: %w", d.ID, program.ErrConflict)
	}
	for _, existing := range s.days {
		if existing.BeneficiaryID == d.BeneficiaryID && existing.DayNumber == d.DayNumber {
			return &program.DuplicateDayError{BeneficiaryID: d.BeneficiaryID, DayNumber: d.DayNumber}
		}
	}

	s.days[d.ID] = d
	return nil
}

func (s *Store) GetDay(_ context.Context, beneficiaryID program.BeneficiaryID, dayID program.DayID) (*program.ProgramDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[dayID]
	if !ok || d.BeneficiaryID != beneficiaryID {
		return nil, nil
	}
	return &d, nil
}

func (s *Store) UpdateDay(_ context.Context, d program.ProgramDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.days[d.ID]
	if !ok || existing.BeneficiaryID != d.BeneficiaryID {
		return fmt.Errorf("day %s: %w", d.ID, program.ErrNotFound)
	}
	s.days[d.ID] = d
	return nil
}

func (s *Store) DeleteDay(_ context.Context, beneficiaryID program.BeneficiaryID, dayID program.DayID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.days[dayID]
	if !ok || d.BeneficiaryID != beneficiaryID {
		return fmt.Errorf("day %s: %w", dayID, program.ErrNotFound)
	}
	delete(s.days, dayID)
	return nil
}

func (s *Store) ListDays(_ context.Context, beneficiaryID program.BeneficiaryID) ([]program.ProgramDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []program.ProgramDay
	for _, d := range s.days {
		if d.BeneficiaryID == beneficiaryID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	return out, nil
}

// =============================================================================
// PRODUCT / WORKER DIRECTORIES (inventory.ProductStore, inventory.WorkerStore)
// =============================================================================

func (s *Store) SaveProduct(_ context.Context, p inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *Store) GetProduct(_ context.Context, id inventory.ProductID) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]inventory.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveWorker(_ context.Context, w inventory.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[w.ID] = w
	return nil
}

func (s *Store) GetWorker(_ context.Context, id program.WorkerID) (*inventory.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workers[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// =============================================================================
// STOCK STORE (inventory.StockStore)
// =============================================================================

func (s *Store) GetStock(_ context.Context, workerID program.WorkerID, productID inventory.ProductID) (*inventory.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stocks[stockKey{workerID, productID}]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) ListWorkerStock(_ context.Context, workerID program.WorkerID) ([]inventory.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []inventory.Stock
	for k, st := range s.stocks {
		if k.WorkerID == workerID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *Store) AddStock(_ context.Context, workerID program.WorkerID, productID inventory.ProductID, qty decimal.Decimal) (*inventory.Stock, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: stock addition must be positive", program.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey{workerID, productID}
	st, ok := s.stocks[key]
	if !ok {
		st = inventory.Stock{
			ID:        fmt.Sprintf("stock-%s-%s", workerID, productID),
			WorkerID:  workerID,
			ProductID: productID,
			TotalKg:   decimal.Zero,
		}
	}
	st.TotalKg = st.TotalKg.Add(qty)
	st.UpdatedAt = time.Now().UTC()
	s.stocks[key] = st
	return &st, nil
}

func (s *Store) DecrementStock(_ context.Context, workerID program.WorkerID, productID inventory.ProductID, qty decimal.Decimal) (*inventory.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey{workerID, productID}
	st, ok := s.stocks[key]
	if !ok {
		return nil, &inventory.OutOfStockError{
			ProductID: productID,
			WorkerID:  workerID,
			Available: decimal.Zero,
			Requested: qty,
		}
	}
	if st.TotalKg.LessThan(qty) {
		return nil, &inventory.OutOfStockError{
			ProductID: productID,
			WorkerID:  workerID,
			Available: st.TotalKg,
			Requested: qty,
		}
	}

	st.TotalKg = st.TotalKg.Sub(qty)
	st.UpdatedAt = time.Now().UTC()
	s.stocks[key] = st
	return &st, nil
}

// =============================================================================
// MAIN STOCK STORE (inventory.MainStockStore)
// =============================================================================

func (s *Store) GetMainStock(_ context.Context, productID inventory.ProductID) (*inventory.MainStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.mainStocks[productID]
	if !ok {
		return nil, nil
	}
	return &ms, nil
}

func (s *Store) ListMainStock(_ context.Context) ([]inventory.MainStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]inventory.MainStock, 0, len(s.mainStocks))
	for _, ms := range s.mainStocks {
		out = append(out, ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *Store) AddMainStock(_ context.Context, productID inventory.ProductID, qty decimal.Decimal) (*inventory.MainStock, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: restock quantity must be positive", program.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.mainStocks[productID]
	if !ok {
		ms = inventory.MainStock{
			ID:        fmt.Sprintf("main-%s", productID),
			ProductID: productID,
			TotalKg:   decimal.Zero,
		}
	}
	ms.TotalKg = ms.TotalKg.Add(qty)
	ms.UpdatedAt = time.Now().UTC()
	s.mainStocks[productID] = ms
	return &ms, nil
}

func (s *Store) DecrementMainStock(_ context.Context, productID inventory.ProductID, qty decimal.Decimal) (*inventory.MainStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.mainStocks[productID]
	if !ok {
		return nil, &inventory.OutOfStockError{ProductID: productID, Available: decimal.Zero, Requested: qty}
	}
	if ms.TotalKg.LessThan(qty) {
		return nil, &inventory.OutOfStockError{ProductID: productID, Available: ms.TotalKg, Requested: qty}
	}

	ms.TotalKg = ms.TotalKg.Sub(qty)
	ms.UpdatedAt = time.Now().UTC()
	s.mainStocks[productID] = ms
	return &ms, nil
}

// =============================================================================
// DISTRIBUTION STORE (inventory.DistributionStore)
// =============================================================================

func (s *Store) SaveDistribution(_ context.Context, d inventory.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.distributions[d.ID]; ok {
		return fmt.Errorf("distribution %s already exists: %w", d.ID, program.ErrConflict)
	}
	s.distributions[d.ID] = d
	return nil
}

func (s *Store) DeleteDistribution(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.distributions[id]; !ok {
		return fmt.Errorf("distribution %s: %w", id, program.ErrNotFound)
	}
	delete(s.distributions, id)
	return nil
}

func (s *Store) ListDistributions(_ context.Context) ([]inventory.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]inventory.Distribution, 0, len(s.distributions))
	for _, d := range s.distributions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListDistributionsByBeneficiary(_ context.Context, id program.BeneficiaryID) ([]inventory.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []inventory.Distribution
	for _, d := range s.distributions {
		if d.BeneficiaryID == id {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// LEDGER STORE (inventory.LedgerStore) - append-only
// =============================================================================

func (s *Store) AppendTransaction(_ context.Context, tx inventory.StockTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, tx)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, productID inventory.ProductID) ([]inventory.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []inventory.StockTransaction
	for _, tx := range s.ledger {
		if productID == "" || tx.ProductID == productID {
			out = append(out, tx)
		}
	}
	return out, nil
}
