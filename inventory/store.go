/*
store.go - Persistence interfaces for stock and distributions

PURPOSE:
  Storage contracts for the distribution processor. The decrement methods
  are the load-bearing part: "subtract N only if current >= N" must be a
  single atomic store operation so that concurrent distributions cannot
  collectively overdraw a pool.

APPEND-ONLY LEDGER:
  LedgerStore has no update or delete. Corrections are new entries.

SEE ALSO:
  - store/sqlite: conditional UPDATE ... WHERE total_kg >= ? implementation
  - store/memory: mutex-guarded equivalent
*/
package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/careflow/nutrition-engine/program"
)

// ProductStore is the read side of the external product catalog.
type ProductStore interface {
	SaveProduct(ctx context.Context, p Product) error
	// GetProduct returns (nil, nil) when the product is unknown.
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// WorkerStore is the read side of the external user directory.
type WorkerStore interface {
	SaveWorker(ctx context.Context, w Worker) error
	// GetWorker returns (nil, nil) when the worker is unknown.
	GetWorker(ctx context.Context, id program.WorkerID) (*Worker, error)
}

// StockStore persists per-worker stock pools.
type StockStore interface {
	// GetStock returns the (worker, product) pool or (nil, nil).
	GetStock(ctx context.Context, workerID program.WorkerID, productID ProductID) (*Stock, error)

	// ListWorkerStock returns all pools held by one worker.
	ListWorkerStock(ctx context.Context, workerID program.WorkerID) ([]Stock, error)

	// AddStock adds qty to the pool, creating it at qty if absent, and
	// returns the updated record. qty must be positive.
	AddStock(ctx context.Context, workerID program.WorkerID, productID ProductID, qty decimal.Decimal) (*Stock, error)

	// DecrementStock subtracts qty only if the pool exists and currently
	// holds at least qty, as one atomic step. Returns the updated record,
	// or ErrOutOfStock (wrapped in OutOfStockError) when the pool is
	// missing or short.
	DecrementStock(ctx context.Context, workerID program.WorkerID, productID ProductID, qty decimal.Decimal) (*Stock, error)
}

// MainStockStore persists the central pools.
type MainStockStore interface {
	// GetMainStock returns the central pool for a product or (nil, nil).
	GetMainStock(ctx context.Context, productID ProductID) (*MainStock, error)

	ListMainStock(ctx context.Context) ([]MainStock, error)

	// AddMainStock adds qty to the central pool, creating it if absent.
	AddMainStock(ctx context.Context, productID ProductID, qty decimal.Decimal) (*MainStock, error)

	// DecrementMainStock mirrors StockStore.DecrementStock for the central
	// pool.
	DecrementMainStock(ctx context.Context, productID ProductID, qty decimal.Decimal) (*MainStock, error)
}

// DistributionStore persists distribution records.
type DistributionStore interface {
	SaveDistribution(ctx context.Context, d Distribution) error

	// DeleteDistribution exists only for compensation: rolling back a
	// distribution whose follow-up beneficiary update lost a capacity race.
	DeleteDistribution(ctx context.Context, id string) error

	ListDistributions(ctx context.Context) ([]Distribution, error)
	ListDistributionsByBeneficiary(ctx context.Context, id program.BeneficiaryID) ([]Distribution, error)
}

// LedgerStore persists the append-only central-stock ledger.
type LedgerStore interface {
	AppendTransaction(ctx context.Context, tx StockTransaction) error
	ListTransactions(ctx context.Context, productID ProductID) ([]StockTransaction, error)
}

// Store combines the inventory persistence interfaces.
type Store interface {
	ProductStore
	WorkerStore
	StockStore
	MainStockStore
	DistributionStore
	LedgerStore
}
