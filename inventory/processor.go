/*
processor.go - Distribution transaction processor

PURPOSE:
  Executes the stock-decrement + distribution-record + beneficiary-progress
  update as one logical unit, plus the central restock and the
  central-to-worker transfer that complete the chain of custody.

ORDERING:
  Every validation, including the capacity pre-check, runs before any
  write, so a rejected distribution never spends stock. The capacity
  increment itself is still a conditional store update; if a concurrent
  distribution wins the race between pre-check and increment, the
  processor compensates (restores the stock, deletes the distribution
  record) and reports the overrun. Failed attempts leave stock unchanged.

STOCK SCOPING:
  Distribute draws from the distributing worker's own (worker, product)
  pool, never the shared central pool, so concurrent workers only contend
  on their own rows. The central pool is drained exclusively by
  TransferStock.

SEE ALSO:
  - store.go: the conditional decrement contracts
  - program/store.go: IncrementCompletedIfCapacity
*/
package inventory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/careflow/nutrition-engine/program"
)

// OutOfStockError reports an insufficient or missing stock pool.
type OutOfStockError struct {
	ProductID ProductID
	WorkerID  program.WorkerID // empty for the central pool
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *OutOfStockError) Error() string {
	scope := "central stock"
	if e.WorkerID != "" {
		scope = fmt.Sprintf("worker %s stock", e.WorkerID)
	}
	return fmt.Sprintf("%s for product %s: available %s kg, requested %s kg",
		scope, e.ProductID, e.Available, e.Requested)
}

func (e *OutOfStockError) Unwrap() error { return program.ErrOutOfStock }

// Processor coordinates stock movements with beneficiary progress.
type Processor struct {
	Beneficiaries program.BeneficiaryStore
	Inventory     Store

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

func NewProcessor(beneficiaries program.BeneficiaryStore, inventory Store) *Processor {
	return &Processor{
		Beneficiaries: beneficiaries,
		Inventory:     inventory,
		now:           time.Now,
	}
}

// =============================================================================
// DISTRIBUTE
// =============================================================================

// DistributeInput carries the fields for one distribution.
type DistributeInput struct {
	BeneficiaryID program.BeneficiaryID
	ProductID     ProductID
	WorkerID      program.WorkerID
	QuantityKg    decimal.Decimal
	DistributedAt time.Time // zero value means "now"
}

func (in DistributeInput) validate() error {
	if in.BeneficiaryID == "" {
		return fmt.Errorf("%w: beneficiary id is required", program.ErrInvalidArgument)
	}
	if in.ProductID == "" {
		return fmt.Errorf("%w: product id is required", program.ErrInvalidArgument)
	}
	if in.WorkerID == "" {
		return fmt.Errorf("%w: worker id is required", program.ErrInvalidArgument)
	}
	if !in.QuantityKg.IsPositive() {
		return fmt.Errorf("%w: quantity must be a positive number of kg", program.ErrInvalidArgument)
	}
	return nil
}

// DistributeResult returns the created record and the beneficiary with its
// updated counters.
type DistributeResult struct {
	Distribution Distribution
	Beneficiary  program.Beneficiary
}

// Distribute hands QuantityKg of a product to a beneficiary out of the
// worker's own stock and counts the visit as one completed program day.
func (p *Processor) Distribute(ctx context.Context, in DistributeInput) (*DistributeResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	// Capacity pre-check before any write.
	b, err := p.Beneficiaries.GetBeneficiary(ctx, in.BeneficiaryID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("beneficiary %s: %w", in.BeneficiaryID, program.ErrNotFound)
	}
	if b.CompletedDays >= b.TotalProgramDays {
		return nil, &program.ProgramOverrunError{
			BeneficiaryID:    b.ID,
			CompletedDays:    b.CompletedDays,
			TotalProgramDays: b.TotalProgramDays,
		}
	}

	// Atomic conditional decrement of the worker's pool.
	if _, err := p.Inventory.DecrementStock(ctx, in.WorkerID, in.ProductID, in.QuantityKg); err != nil {
		return nil, err
	}

	distributedAt := in.DistributedAt
	if distributedAt.IsZero() {
		distributedAt = p.now().UTC()
	}
	dist := Distribution{
		ID:            uuid.NewString(),
		BeneficiaryID: in.BeneficiaryID,
		ProductID:     in.ProductID,
		WorkerID:      in.WorkerID,
		QuantityKg:    in.QuantityKg,
		DistributedAt: distributedAt,
		CreatedAt:     p.now().UTC(),
	}

	if err := p.Inventory.SaveDistribution(ctx, dist); err != nil {
		p.compensateStock(ctx, in)
		return nil, err
	}

	// Conditional increment: a concurrent distribution may have consumed
	// the last slot since the pre-check.
	updated, err := p.Beneficiaries.IncrementCompletedIfCapacity(ctx, in.BeneficiaryID)
	if err != nil {
		if delErr := p.Inventory.DeleteDistribution(ctx, dist.ID); delErr != nil {
			log.Printf("[Distribute] distribution rollback failed for %s: %v", dist.ID, delErr)
		}
		p.compensateStock(ctx, in)
		return nil, err
	}

	return &DistributeResult{Distribution: dist, Beneficiary: *updated}, nil
}

// compensateStock reverses a committed stock decrement after a later step
// failed.
func (p *Processor) compensateStock(ctx context.Context, in DistributeInput) {
	if _, err := p.Inventory.AddStock(ctx, in.WorkerID, in.ProductID, in.QuantityKg); err != nil {
		log.Printf("[Distribute] stock compensation failed for worker %s product %s: %v",
			in.WorkerID, in.ProductID, err)
	}
}

// =============================================================================
// RESTOCK (central)
// =============================================================================

// RestockResult returns the updated central pool and the ledger entry
// recording the delta.
type RestockResult struct {
	MainStock   MainStock
	Transaction StockTransaction
}

// Restock adds qty to the central pool for a product, creating the pool if
// it does not exist, and appends an IN ledger entry for the delta. Repeated
// restocks append separate entries; the ledger is never merged.
func (p *Processor) Restock(ctx context.Context, productID ProductID, qty decimal.Decimal) (*RestockResult, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", program.ErrInvalidArgument)
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: restock quantity must be a positive number of kg", program.ErrInvalidArgument)
	}

	product, err := p.Inventory.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, program.ErrNotFound)
	}

	ms, err := p.Inventory.AddMainStock(ctx, productID, qty)
	if err != nil {
		return nil, err
	}

	tx := StockTransaction{
		ID:         uuid.NewString(),
		ProductID:  productID,
		QuantityKg: qty,
		Type:       TxIn,
		CreatedAt:  p.now().UTC(),
	}
	if err := p.Inventory.AppendTransaction(ctx, tx); err != nil {
		// Every pool change carries a ledger entry; without one the
		// addition is undone.
		if _, decErr := p.Inventory.DecrementMainStock(ctx, productID, qty); decErr != nil {
			log.Printf("[Restock] ledger compensation failed for product %s: %v", productID, decErr)
		}
		return nil, err
	}

	return &RestockResult{MainStock: *ms, Transaction: tx}, nil
}

// =============================================================================
// TRANSFER (central -> worker)
// =============================================================================

// TransferResult returns both sides of a central-to-worker stock movement
// and the OUT ledger entry.
type TransferResult struct {
	MainStock   MainStock
	Stock       Stock
	Transaction StockTransaction
}

// TransferStock moves qty from the central pool to a field worker's pool.
// The central decrement is conditional, so a transfer can never overdraw
// the central pool.
func (p *Processor) TransferStock(ctx context.Context, productID ProductID, workerID program.WorkerID, qty decimal.Decimal) (*TransferResult, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", program.ErrInvalidArgument)
	}
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", program.ErrInvalidArgument)
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: transfer quantity must be a positive number of kg", program.ErrInvalidArgument)
	}

	worker, err := p.Inventory.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, fmt.Errorf("worker %s: %w", workerID, program.ErrNotFound)
	}

	ms, err := p.Inventory.DecrementMainStock(ctx, productID, qty)
	if err != nil {
		return nil, err
	}

	stock, err := p.Inventory.AddStock(ctx, workerID, productID, qty)
	if err != nil {
		// Put the central pool back; the worker never received the stock.
		if _, addErr := p.Inventory.AddMainStock(ctx, productID, qty); addErr != nil {
			log.Printf("[Transfer] central compensation failed for product %s: %v", productID, addErr)
		}
		return nil, err
	}

	tx := StockTransaction{
		ID:         uuid.NewString(),
		ProductID:  productID,
		QuantityKg: qty,
		Type:       TxOut,
		Reference:  string(workerID),
		CreatedAt:  p.now().UTC(),
	}
	if err := p.Inventory.AppendTransaction(ctx, tx); err != nil {
		// Unwind the whole movement; a transfer without its OUT entry
		// would leave the ledger silent about a central pool change.
		if _, decErr := p.Inventory.DecrementStock(ctx, workerID, productID, qty); decErr != nil {
			log.Printf("[Transfer] worker compensation failed for product %s: %v", productID, decErr)
		} else if _, addErr := p.Inventory.AddMainStock(ctx, productID, qty); addErr != nil {
			log.Printf("[Transfer] central compensation failed for product %s: %v", productID, addErr)
		}
		return nil, err
	}

	return &TransferResult{MainStock: *ms, Stock: *stock, Transaction: tx}, nil
}
