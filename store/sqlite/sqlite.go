/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements program.Store and inventory.Store using SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

CONDITIONAL UPDATES:
  Counter writes are single guarded statements checked via RowsAffected:

    UPDATE beneficiaries SET completed_days = completed_days + 1
    WHERE id = ? AND completed_days < total_program_days

  so two concurrent distributions cannot push completed_days past
  total_program_days. Status writes carry the same discipline: completed
  is terminal, enforced by the UPDATE's WHERE clause.

DECIMAL QUANTITIES:
  Kilogram quantities are stored as canonical decimal strings
  (decimal.Decimal.String()) in TEXT columns, so a read gives back exactly
  what was written. Stock decrements compare and subtract exact values in
  Go while holding the store lock (the pool is pinned to one connection),
  so concurrent decrements cannot collectively overdraw a pool, no float
  residue accumulates, and a mathematically valid decrement is never
  rejected.

APPEND-ONLY ENFORCEMENT:
  stock_transactions has INSERT and SELECT statements only. No UPDATE or
  DELETE exists anywhere in this package.

CONCURRENCY:
  Uses sync.RWMutex for in-process serialization plus WAL mode. Multi-step
  units (counter clamp + rate recompute) run inside SQL transactions.

USAGE:
  store, err := sqlite.New("./data/nutrition.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()

SEE ALSO:
  - program/store.go, inventory/store.go: interface contracts
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/careflow/nutrition-engine/inventory"
	"github.com/careflow/nutrition-engine/program"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: every ":memory:" connection would otherwise see its
	// own empty database, and the store serializes writes anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS beneficiaries (
		id TEXT PRIMARY KEY,
		national_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		total_program_days INTEGER NOT NULL DEFAULT 0,
		completed_days INTEGER NOT NULL DEFAULT 0,
		attendance_rate INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (completed_days >= 0),
		CHECK (completed_days <= total_program_days)
	);

	CREATE INDEX IF NOT EXISTS idx_beneficiaries_status
		ON beneficiaries(status);
	CREATE INDEX IF NOT EXISTS idx_beneficiaries_worker
		ON beneficiaries(worker_id);

	-- Owned children; deleting a beneficiary cascades here.
	CREATE TABLE IF NOT EXISTS program_days (
		id TEXT PRIMARY KEY,
		beneficiary_id TEXT NOT NULL REFERENCES beneficiaries(id) ON DELETE CASCADE,
		day_number INTEGER NOT NULL,
		date TEXT NOT NULL,
		attended INTEGER NOT NULL DEFAULT 0,
		activity_type TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(beneficiary_id, day_number)
	);

	CREATE INDEX IF NOT EXISTS idx_program_days_beneficiary
		ON program_days(beneficiary_id);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT
	);

	-- Quantities are canonical decimal strings; non-negativity is enforced
	-- by the store's guarded writes, not by a lexical CHECK.
	CREATE TABLE IF NOT EXISTS stocks (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		total_kg TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL,
		UNIQUE(worker_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS main_stocks (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL UNIQUE,
		total_kg TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS distributions (
		id TEXT PRIMARY KEY,
		beneficiary_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		quantity_kg TEXT NOT NULL,
		distributed_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_distributions_beneficiary
		ON distributions(beneficiary_id);

	-- Append-only audit ledger for central stock movements.
	CREATE TABLE IF NOT EXISTS stock_transactions (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		quantity_kg TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_transactions_product
		ON stock_transactions(product_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BENEFICIARY STORE (program.BeneficiaryStore)
// =============================================================================

func (s *Store) CreateBeneficiary(ctx context.Context, b program.Beneficiary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beneficiaries
		(id, national_id, name, type, status, worker_id,
		 total_program_days, completed_days, attendance_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.NationalID, b.Name, b.Type, b.Status, b.WorkerID,
		b.TotalProgramDays, b.CompletedDays, b.AttendanceRate,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("beneficiary with national id %s: %w", b.NationalID, program.ErrConflict)
		}
		return fmt.Errorf("failed to create beneficiary: %w", err)
	}
	return nil
}

func (s *Store) GetBeneficiary(ctx context.Context, id program.BeneficiaryID) (*program.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getBeneficiary(ctx, s.db, id)
}

func (s *Store) getBeneficiary(ctx context.Context, q queryer, id program.BeneficiaryID) (*program.Beneficiary, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, national_id, name, type, status, worker_id,
		       total_program_days, completed_days, attendance_rate, created_at, updated_at
		FROM beneficiaries WHERE id = ?`, id)

	b, err := scanBeneficiary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beneficiary: %w", err)
	}
	return b, nil
}

func (s *Store) ListBeneficiaries(ctx context.Context) ([]program.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, national_id, name, type, status, worker_id,
		       total_program_days, completed_days, attendance_rate, created_at, updated_at
		FROM beneficiaries ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list beneficiaries: %w", err)
	}
	defer rows.Close()

	var out []program.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id program.BeneficiaryID, status program.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Completed is terminal. The guard rides in the same statement so a
	// sweep flipping the row between a caller's read and this write cannot
	// be overwritten.
	res, err := s.db.ExecContext(ctx, `
		UPDATE beneficiaries SET status = ?, updated_at = ?
		WHERE id = ? AND status != ?`,
		status, formatTime(time.Now().UTC()), id, program.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		b, err := s.getBeneficiary(ctx, s.db, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("beneficiary %s: %w", id, program.ErrNotFound)
		}
		return fmt.Errorf("beneficiary %s is completed: %w", id, program.ErrConflict)
	}
	return nil
}

func (s *Store) AdjustCounters(ctx context.Context, id program.BeneficiaryID, totalDelta, completedDelta int) (*program.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	b, err := s.getBeneficiary(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("beneficiary %s: %w", id, program.ErrNotFound)
	}

	total, completed := program.ClampCounters(b.TotalProgramDays+totalDelta, b.CompletedDays+completedDelta)
	rate := program.AttendanceRate(completed, total)
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE beneficiaries
		SET total_program_days = ?, completed_days = ?, attendance_rate = ?, updated_at = ?
		WHERE id = ?`,
		total, completed, rate, formatTime(now), id); err != nil {
		return nil, fmt.Errorf("failed to adjust counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit counter adjustment: %w", err)
	}

	b.TotalProgramDays = total
	b.CompletedDays = completed
	b.AttendanceRate = rate
	b.UpdatedAt = now
	return b, nil
}

func (s *Store) IncrementCompletedIfCapacity(ctx context.Context, id program.BeneficiaryID) (*program.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The guard and the increment are one statement; RowsAffected tells us
	// whether we won the capacity race.
	res, err := tx.ExecContext(ctx, `
		UPDATE beneficiaries
		SET completed_days = completed_days + 1, updated_at = ?
		WHERE id = ? AND completed_days < total_program_days`,
		formatTime(time.Now().UTC()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to increment completed days: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		b, err := s.getBeneficiary(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, fmt.Errorf("beneficiary %s: %w", id, program.ErrNotFound)
		}
		return nil, &program.ProgramOverrunError{
			BeneficiaryID:    id,
			CompletedDays:    b.CompletedDays,
			TotalProgramDays: b.TotalProgramDays,
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE beneficiaries
		SET attendance_rate = CAST(ROUND(completed_days * 100.0 / total_program_days) AS INTEGER)
		WHERE id = ? AND total_program_days > 0`, id); err != nil {
		return nil, fmt.Errorf("failed to recompute attendance rate: %w", err)
	}

	b, err := s.getBeneficiary(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit increment: %w", err)
	}
	return b, nil
}

func (s *Store) DeleteBeneficiary(ctx context.Context, id program.BeneficiaryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// program_days rows go with the parent via ON DELETE CASCADE.
	res, err := s.db.ExecContext(ctx, `DELETE FROM beneficiaries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete beneficiary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("beneficiary %s: %w", id, program.ErrNotFound)
	}
	return nil
}

// =============================================================================
// PROGRAM DAY STORE (program.ProgramDayStore)
// =============================================================================

func (s *Store) InsertDay(ctx context.Context, d program.ProgramDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO program_days
		(id, beneficiary_id, day_number, date, attended, activity_type, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.BeneficiaryID, d.DayNumber, formatTime(d.Date),
		boolToInt(d.Attended), d.ActivityType, d.Notes, formatTime(d.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("beneficiary %s: %w", d.BeneficiaryID, program.ErrNotFound)
		}
		if isUniqueConstraintError(err) {
			return &program.DuplicateDayError{BeneficiaryID: d.BeneficiaryID, DayNumber: d.DayNumber}
		}
		return fmt.Errorf("failed to insert day: %w", err)
	}
	return nil
}

func (s *Store) GetDay(ctx context.Context, beneficiaryID program.BeneficiaryID, dayID program.DayID) (*program.ProgramDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, beneficiary_id, day_number, date, attended, activity_type, notes, created_at
		FROM program_days WHERE id = ? AND beneficiary_id = ?`, dayID, beneficiaryID)

	d, err := scanDay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day: %w", err)
	}
	return d, nil
}

func (s *Store) UpdateDay(ctx context.Context, d program.ProgramDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE program_days SET attended = ?, notes = ?, activity_type = ?, date = ?
		WHERE id = ? AND beneficiary_id = ?`,
		boolToInt(d.Attended), d.Notes, d.ActivityType, formatTime(d.Date),
		d.ID, d.BeneficiaryID)
	if err != nil {
		return fmt.Errorf("failed to update day: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("day %s: %w", d.ID, program.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteDay(ctx context.Context, beneficiaryID program.BeneficiaryID, dayID program.DayID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM program_days WHERE id = ? AND beneficiary_id = ?`, dayID, beneficiaryID)
	if err != nil {
		return fmt.Errorf("failed to delete day: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("day %s: %w", dayID, program.ErrNotFound)
	}
	return nil
}

func (s *Store) ListDays(ctx context.Context, beneficiaryID program.BeneficiaryID) ([]program.ProgramDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, beneficiary_id, day_number, date, attended, activity_type, notes, created_at
		FROM program_days WHERE beneficiary_id = ? ORDER BY day_number ASC`, beneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list days: %w", err)
	}
	defer rows.Close()

	var out []program.ProgramDay
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// =============================================================================
// PRODUCT / WORKER DIRECTORIES
// =============================================================================

func (s *Store) SaveProduct(ctx context.Context, p inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p inventory.Product
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []inventory.Product
	for rows.Next() {
		var p inventory.Product
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveWorker(ctx context.Context, w inventory.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (id, name, role) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role`,
		w.ID, w.Name, w.Role)
	if err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}

func (s *Store) GetWorker(ctx context.Context, id program.WorkerID) (*inventory.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w inventory.Worker
	var role sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, name, role FROM workers WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	w.Role = role.String
	return &w, nil
}

// =============================================================================
// STOCK STORE (inventory.StockStore)
// =============================================================================

func (s *Store) GetStock(ctx context.Context, workerID program.WorkerID, productID inventory.ProductID) (*inventory.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getStockLocked(ctx, workerID, productID)
}

func (s *Store) ListWorkerStock(ctx context.Context, workerID program.WorkerID) ([]inventory.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, product_id, total_kg, updated_at
		FROM stocks WHERE worker_id = ? ORDER BY product_id ASC`, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list worker stock: %w", err)
	}
	defer rows.Close()

	var out []inventory.Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *Store) AddStock(ctx context.Context, workerID program.WorkerID, productID inventory.ProductID, qty decimal.Decimal) (*inventory.Stock, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: stock addition must be positive", program.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getStockLocked(ctx, workerID, productID)
	if err != nil {
		return nil, err
	}

	now := formatTime(time.Now().UTC())
	if current == nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO stocks (id, worker_id, product_id, total_kg, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			fmt.Sprintf("stock-%s-%s", workerID, productID), workerID, productID,
			qty.String(), now)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE stocks SET total_kg = ?, updated_at = ?
			WHERE worker_id = ? AND product_id = ?`,
			current.TotalKg.Add(qty).String(), now, workerID, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add stock: %w", err)
	}

	return s.getStockLocked(ctx, workerID, productID)
}

func (s *Store) DecrementStock(ctx context.Context, workerID program.WorkerID, productID inventory.ProductID, qty decimal.Decimal) (*inventory.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Exact compare-and-subtract under the store lock: the guard and the
	// write cannot interleave with another decrement.
	current, err := s.getStockLocked(ctx, workerID, productID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.TotalKg.LessThan(qty) {
		available := decimal.Zero
		if current != nil {
			available = current.TotalKg
		}
		return nil, &inventory.OutOfStockError{
			ProductID: productID,
			WorkerID:  workerID,
			Available: available,
			Requested: qty,
		}
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE stocks SET total_kg = ?, updated_at = ?
		WHERE worker_id = ? AND product_id = ?`,
		current.TotalKg.Sub(qty).String(), formatTime(time.Now().UTC()),
		workerID, productID); err != nil {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}

	return s.getStockLocked(ctx, workerID, productID)
}

func (s *Store) getStockLocked(ctx context.Context, workerID program.WorkerID, productID inventory.ProductID) (*inventory.Stock, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, worker_id, product_id, total_kg, updated_at
		FROM stocks WHERE worker_id = ? AND product_id = ?`, workerID, productID)
	st, err := scanStock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return st, nil
}

// =============================================================================
// MAIN STOCK STORE (inventory.MainStockStore)
// =============================================================================

func (s *Store) GetMainStock(ctx context.Context, productID inventory.ProductID) (*inventory.MainStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getMainStockLocked(ctx, productID)
}

func (s *Store) ListMainStock(ctx context.Context) ([]inventory.MainStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, total_kg, updated_at FROM main_stocks ORDER BY product_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list main stock: %w", err)
	}
	defer rows.Close()

	var out []inventory.MainStock
	for rows.Next() {
		ms, err := scanMainStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ms)
	}
	return out, rows.Err()
}

func (s *Store) AddMainStock(ctx context.Context, productID inventory.ProductID, qty decimal.Decimal) (*inventory.MainStock, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: restock quantity must be positive", program.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getMainStockLocked(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := formatTime(time.Now().UTC())
	if current == nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO main_stocks (id, product_id, total_kg, updated_at)
			VALUES (?, ?, ?, ?)`,
			fmt.Sprintf("main-%s", productID), productID, qty.String(), now)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE main_stocks SET total_kg = ?, updated_at = ? WHERE product_id = ?`,
			current.TotalKg.Add(qty).String(), now, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add main stock: %w", err)
	}

	return s.getMainStockLocked(ctx, productID)
}

func (s *Store) DecrementMainStock(ctx context.Context, productID inventory.ProductID, qty decimal.Decimal) (*inventory.MainStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getMainStockLocked(ctx, productID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.TotalKg.LessThan(qty) {
		available := decimal.Zero
		if current != nil {
			available = current.TotalKg
		}
		return nil, &inventory.OutOfStockError{
			ProductID: productID,
			Available: available,
			Requested: qty,
		}
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE main_stocks SET total_kg = ?, updated_at = ? WHERE product_id = ?`,
		current.TotalKg.Sub(qty).String(), formatTime(time.Now().UTC()), productID); err != nil {
		return nil, fmt.Errorf("failed to decrement main stock: %w", err)
	}

	return s.getMainStockLocked(ctx, productID)
}

func (s *Store) getMainStockLocked(ctx context.Context, productID inventory.ProductID) (*inventory.MainStock, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, total_kg, updated_at FROM main_stocks WHERE product_id = ?`, productID)
	ms, err := scanMainStock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get main stock: %w", err)
	}
	return ms, nil
}

// =============================================================================
// DISTRIBUTION STORE (inventory.DistributionStore)
// =============================================================================

func (s *Store) SaveDistribution(ctx context.Context, d inventory.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO distributions
		(id, beneficiary_id, product_id, worker_id, quantity_kg, distributed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.BeneficiaryID, d.ProductID, d.WorkerID,
		d.QuantityKg.String(), formatTime(d.DistributedAt), formatTime(d.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("distribution %s: %w", d.ID, program.ErrConflict)
		}
		return fmt.Errorf("failed to save distribution: %w", err)
	}
	return nil
}

func (s *Store) DeleteDistribution(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM distributions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete distribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("distribution %s: %w", id, program.ErrNotFound)
	}
	return nil
}

func (s *Store) ListDistributions(ctx context.Context) ([]inventory.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDistributions(ctx, `
		SELECT id, beneficiary_id, product_id, worker_id, quantity_kg, distributed_at, created_at
		FROM distributions ORDER BY created_at ASC`)
}

func (s *Store) ListDistributionsByBeneficiary(ctx context.Context, id program.BeneficiaryID) ([]inventory.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDistributions(ctx, `
		SELECT id, beneficiary_id, product_id, worker_id, quantity_kg, distributed_at, created_at
		FROM distributions WHERE beneficiary_id = ? ORDER BY created_at ASC`, id)
}

func (s *Store) queryDistributions(ctx context.Context, query string, args ...any) ([]inventory.Distribution, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	var out []inventory.Distribution
	for rows.Next() {
		var d inventory.Distribution
		var qty, distributedAt, createdAt string
		if err := rows.Scan(&d.ID, &d.BeneficiaryID, &d.ProductID, &d.WorkerID,
			&qty, &distributedAt, &createdAt); err != nil {
			return nil, err
		}
		kg, err := parseQuantity(qty)
		if err != nil {
			return nil, err
		}
		d.QuantityKg = kg
		d.DistributedAt = parseTime(distributedAt)
		d.CreatedAt = parseTime(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// =============================================================================
// LEDGER STORE (inventory.LedgerStore) - append-only, no UPDATE/DELETE
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx inventory.StockTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_transactions (id, product_id, quantity_kg, tx_type, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.ProductID, tx.QuantityKg.String(), tx.Type, tx.Reference,
		formatTime(tx.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append stock transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, productID inventory.ProductID) ([]inventory.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, product_id, quantity_kg, tx_type, reference, created_at
		FROM stock_transactions`
	var args []any
	if productID != "" {
		query += ` WHERE product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock transactions: %w", err)
	}
	defer rows.Close()

	var out []inventory.StockTransaction
	for rows.Next() {
		var tx inventory.StockTransaction
		var qty, createdAt string
		var reference sql.NullString
		if err := rows.Scan(&tx.ID, &tx.ProductID, &qty, &tx.Type, &reference, &createdAt); err != nil {
			return nil, err
		}
		kg, err := parseQuantity(qty)
		if err != nil {
			return nil, err
		}
		tx.QuantityKg = kg
		tx.Reference = reference.String
		tx.CreatedAt = parseTime(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBeneficiary(row scanner) (*program.Beneficiary, error) {
	var b program.Beneficiary
	var createdAt, updatedAt string
	err := row.Scan(&b.ID, &b.NationalID, &b.Name, &b.Type, &b.Status, &b.WorkerID,
		&b.TotalProgramDays, &b.CompletedDays, &b.AttendanceRate, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

func scanDay(row scanner) (*program.ProgramDay, error) {
	var d program.ProgramDay
	var attended int
	var notes sql.NullString
	var date, createdAt string
	err := row.Scan(&d.ID, &d.BeneficiaryID, &d.DayNumber, &date, &attended,
		&d.ActivityType, &notes, &createdAt)
	if err != nil {
		return nil, err
	}
	d.Attended = attended != 0
	d.Notes = notes.String
	d.Date = parseTime(date)
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

func scanStock(row scanner) (*inventory.Stock, error) {
	var st inventory.Stock
	var kg, updatedAt string
	if err := row.Scan(&st.ID, &st.WorkerID, &st.ProductID, &kg, &updatedAt); err != nil {
		return nil, err
	}
	total, err := parseQuantity(kg)
	if err != nil {
		return nil, err
	}
	st.TotalKg = total
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

func scanMainStock(row scanner) (*inventory.MainStock, error) {
	var ms inventory.MainStock
	var kg, updatedAt string
	if err := row.Scan(&ms.ID, &ms.ProductID, &kg, &updatedAt); err != nil {
		return nil, err
	}
	total, err := parseQuantity(kg)
	if err != nil {
		return nil, err
	}
	ms.TotalKg = total
	ms.UpdatedAt = parseTime(updatedAt)
	return &ms, nil
}

// parseQuantity reads back a canonical decimal string written by the store.
func parseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt quantity %q: %w", s, err)
	}
	return d, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
