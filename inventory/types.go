/*
Package inventory manages the physical stock distributed to beneficiaries.

PURPOSE:
  Models the chain of custody for flour/supplement stock:
  central MainStock -> per-field-worker Stock -> beneficiary Distribution,
  plus the append-only StockTransaction ledger auditing every central
  stock movement.

KEY CONCEPTS IN THIS FILE (types.go):
  - MainStock: One record per product at the central level
  - Stock: One record per (field worker, product) pair
  - Distribution: A quantity of product handed to a beneficiary
  - StockTransaction: Immutable IN/OUT ledger entry

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for kilogram quantities, never float64
  2. Non-negativity: stock quantities can never go below zero;
     decrements are conditional store operations, not read-modify-write
  3. Auditability: the ledger is append-only, an audit trail rather than
     a source of truth for current quantity

SEE ALSO:
  - processor.go: Distribute/Restock/TransferStock
  - store.go: Persistence contracts with conditional decrements
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/careflow/nutrition-engine/program"
)

// =============================================================================
// IDENTIFIERS AND REFERENCES
// =============================================================================

type ProductID string

// Product is a reference record from the external catalog; only identity
// and display name are consumed here.
type Product struct {
	ID   ProductID
	Name string
}

// Worker is a reference record from the external user directory.
type Worker struct {
	ID   program.WorkerID
	Name string
	Role string
}

// =============================================================================
// STOCK
// =============================================================================

// MainStock is the central pool for one product. TotalKg >= 0 always.
type MainStock struct {
	ID        string
	ProductID ProductID
	TotalKg   decimal.Decimal
	UpdatedAt time.Time
}

// Stock is one field worker's pool for one product; the (worker, product)
// pair is unique. TotalKg >= 0 always.
type Stock struct {
	ID        string
	WorkerID  program.WorkerID
	ProductID ProductID
	TotalKg   decimal.Decimal
	UpdatedAt time.Time
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

// Distribution records a quantity of product given to a beneficiary by a
// field worker. Creating one is the trigger for the stock decrement and
// the beneficiary progress increment to be applied together.
type Distribution struct {
	ID            string
	BeneficiaryID program.BeneficiaryID
	ProductID     ProductID
	WorkerID      program.WorkerID
	QuantityKg    decimal.Decimal // > 0
	DistributedAt time.Time
	CreatedAt     time.Time
}

// =============================================================================
// STOCK TRANSACTION - Append-only central-stock ledger
// =============================================================================

type TransactionType string

const (
	TxIn  TransactionType = "IN"  // central restock
	TxOut TransactionType = "OUT" // transfer out to a field worker
)

// StockTransaction is an immutable ledger entry written whenever MainStock
// changes. Entries are never mutated or deleted.
type StockTransaction struct {
	ID         string
	ProductID  ProductID
	QuantityKg decimal.Decimal
	Type       TransactionType
	Reference  string // worker ID for transfers, free-form otherwise
	CreatedAt  time.Time
}
