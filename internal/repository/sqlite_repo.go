package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harissonmatos/betalent-multigateway/internal/domain"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteRepo struct {
	db *sql.DB

	// Guards the whole read-modify-write-all-priorities sequence in
	// ReprioritizeGateway; two interleaved reorders would both compute
	// insertion positions against a stale ordering.
	reorderMu sync.Mutex
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA foreign_keys = ON;")
	db.Exec("PRAGMA journal_mode = WAL;")
	db.Exec("PRAGMA busy_timeout = 5000;")

	r := &SQLiteRepo{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	if err := r.seedGateways(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS clients(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS products(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			amount_minor INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS gateways(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			priority INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transactions(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL REFERENCES clients(id),
			gateway_id INTEGER REFERENCES gateways(id),
			external_id TEXT,
			amount_minor INTEGER NOT NULL,
			status TEXT NOT NULL,
			card_last_numbers TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transaction_products(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tx_client ON transactions(client_id);
		CREATE INDEX IF NOT EXISTS idx_tx_status ON transactions(status);
		CREATE INDEX IF NOT EXISTS idx_txp_transaction ON transaction_products(transaction_id);
	`
	_, err := r.db.Exec(schema)
	return err
}

// seedGateways inserts the two known gateways when the table is empty, so a
// fresh database starts with a usable routing order.
func (r *SQLiteRepo) seedGateways() error {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM gateways`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.Exec(`
		INSERT INTO gateways(name, slug, priority, is_active, created_at, updated_at) VALUES
			('Gateway 1', 'gateway1', 1, 1, ?, ?),
			('Gateway 2', 'gateway2', 2, 1, ?, ?);
	`, now, now, now, now)
	return err
}

// ---- clients ----

// FirstOrCreateClient looks a client up by email, creating it when missing.
// The insert tolerates a concurrent create of the same email and re-reads.
func (r *SQLiteRepo) FirstOrCreateClient(ctx context.Context, email, name string) (*domain.Client, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients(name, email, created_at, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING;
	`, name, email, now, now)
	if err != nil {
		return nil, err
	}

	return r.getClientByEmail(ctx, email)
}

func (r *SQLiteRepo) getClientByEmail(ctx context.Context, email string) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at, updated_at FROM clients WHERE email = ?
	`, email)
	return scanClient(row)
}

func (r *SQLiteRepo) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at, updated_at FROM clients WHERE id = ?
	`, id)
	return scanClient(row)
}

func (r *SQLiteRepo) ListClients(ctx context.Context, limit, offset int) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM clients ORDER BY id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}

func scanClient(scanner rowScanner) (*domain.Client, error) {
	var c domain.Client
	var createdAt, updatedAt string
	if err := scanner.Scan(&c.ID, &c.Name, &c.Email, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := parseTimes(&c.CreatedAt, &c.UpdatedAt, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- products ----

func (r *SQLiteRepo) InsertProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO products(name, amount_minor, created_at, updated_at)
		VALUES(?, ?, ?, ?);
	`, p.Name, p.AmountMinor, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *SQLiteRepo) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, amount_minor, created_at, updated_at FROM products WHERE id = ?
	`, id)
	return scanProduct(row)
}

// GetProductsByIDs returns the matching products keyed by id; absent ids are
// simply missing from the map.
func (r *SQLiteRepo) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	out := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		p, err := r.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = *p
	}
	return out, nil
}

func (r *SQLiteRepo) UpdateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET name = ?, amount_minor = ?, updated_at = ? WHERE id = ?
	`, p.Name, p.AmountMinor, now.Format(time.RFC3339Nano), p.ID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (r *SQLiteRepo) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepo) ListProducts(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, amount_minor, created_at, updated_at
		FROM products ORDER BY id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, rows.Err()
}

func scanProduct(scanner rowScanner) (*domain.Product, error) {
	var p domain.Product
	var createdAt, updatedAt string
	if err := scanner.Scan(&p.ID, &p.Name, &p.AmountMinor, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := parseTimes(&p.CreatedAt, &p.UpdatedAt, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ---- gateways ----

func (r *SQLiteRepo) GetGateway(ctx context.Context, id int64) (*domain.Gateway, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, priority, is_active, created_at, updated_at
		FROM gateways WHERE id = ?
	`, id)
	return scanGateway(row)
}

func (r *SQLiteRepo) ListGateways(ctx context.Context) ([]domain.Gateway, error) {
	return r.queryGateways(ctx, `
		SELECT id, name, slug, priority, is_active, created_at, updated_at
		FROM gateways ORDER BY priority
	`)
}

// ActiveGatewaysByPriority is the ordering the checkout fallback loop walks.
func (r *SQLiteRepo) ActiveGatewaysByPriority(ctx context.Context) ([]domain.Gateway, error) {
	return r.queryGateways(ctx, `
		SELECT id, name, slug, priority, is_active, created_at, updated_at
		FROM gateways WHERE is_active = 1 ORDER BY priority
	`)
}

func (r *SQLiteRepo) queryGateways(ctx context.Context, query string, args ...any) ([]domain.Gateway, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Gateway
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *g)
	}
	return res, rows.Err()
}

func (r *SQLiteRepo) SetGatewayActive(ctx context.Context, id int64, active bool) (*domain.Gateway, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := r.db.ExecContext(ctx, `
		UPDATE gateways SET is_active = ?, updated_at = ? WHERE id = ?
	`, boolToInt(active), now, id)
	if err != nil {
		return nil, err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return nil, ErrNotFound
	}
	return r.GetGateway(ctx, id)
}

// ReprioritizeGateway moves one gateway to the requested position and
// rewrites every priority so the set is always a dense 1..N sequence: the
// target is removed from the current ordering, requested-1 is clamped to
// [0, len(remaining)], the target is inserted there, and every row gets
// priority = index+1. Requests past the end place the gateway last.
func (r *SQLiteRepo) ReprioritizeGateway(ctx context.Context, id int64, requested int) (*domain.Gateway, error) {
	r.reorderMu.Lock()
	defer r.reorderMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, slug, priority, is_active, created_at, updated_at
		FROM gateways ORDER BY priority
	`)
	if err != nil {
		return nil, err
	}

	var all []domain.Gateway
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		all = append(all, *g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var target *domain.Gateway
	remaining := make([]domain.Gateway, 0, len(all))
	for i := range all {
		if all[i].ID == id {
			target = &all[i]
			continue
		}
		remaining = append(remaining, all[i])
	}
	if target == nil {
		return nil, ErrNotFound
	}

	pos := requested - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(remaining) {
		pos = len(remaining)
	}

	reordered := make([]domain.Gateway, 0, len(all))
	reordered = append(reordered, remaining[:pos]...)
	reordered = append(reordered, *target)
	reordered = append(reordered, remaining[pos:]...)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i := range reordered {
		if _, err := tx.ExecContext(ctx, `
			UPDATE gateways SET priority = ?, updated_at = ? WHERE id = ?
		`, i+1, now, reordered[i].ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reorder: %w", err)
	}

	return r.GetGateway(ctx, id)
}

func scanGateway(scanner rowScanner) (*domain.Gateway, error) {
	var g domain.Gateway
	var active int
	var createdAt, updatedAt string
	if err := scanner.Scan(&g.ID, &g.Name, &g.Slug, &g.Priority, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	g.IsActive = active != 0
	if err := parseTimes(&g.CreatedAt, &g.UpdatedAt, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// ---- transactions ----

// CreateTransactionWithProducts persists the pending record and all its line
// items as one unit; a reader never sees the transaction without them.
func (r *SQLiteRepo) CreateTransactionWithProducts(ctx context.Context, t *domain.Transaction, items []domain.TransactionProduct) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions(client_id, gateway_id, external_id, amount_minor, status, card_last_numbers, created_at, updated_at)
		VALUES(?, NULL, NULL, ?, ?, ?, ?, ?);
	`, t.ClientID, t.AmountMinor, string(t.Status), t.CardLastNumbers,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now

	for i := range items {
		items[i].TransactionID = id
		res, err := tx.ExecContext(ctx, `
			INSERT INTO transaction_products(transaction_id, product_id, quantity)
			VALUES(?, ?, ?);
		`, id, items[i].ProductID, items[i].Quantity)
		if err != nil {
			return err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		items[i].ID = itemID
	}

	return tx.Commit()
}

// FinalizeTransaction applies the single post-fallback status update.
func (r *SQLiteRepo) FinalizeTransaction(ctx context.Context, id int64, status domain.TxStatus, gatewayID *int64, externalID *string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = ?, gateway_id = ?, external_id = ?, updated_at = ? WHERE id = ?
	`, string(status), gatewayID, externalID, now, id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepo) UpdateTransactionStatus(ctx context.Context, id int64, status domain.TxStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), now, id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepo) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, gateway_id, external_id, amount_minor, status, card_last_numbers, created_at, updated_at
		FROM transactions WHERE id = ?
	`, id)
	return scanTransaction(row)
}

func (r *SQLiteRepo) GetTransactionProducts(ctx context.Context, transactionID int64) ([]domain.TransactionProduct, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, transaction_id, product_id, quantity
		FROM transaction_products WHERE transaction_id = ? ORDER BY id
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.TransactionProduct
	for rows.Next() {
		var item domain.TransactionProduct
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

type TxFilter struct {
	ClientID int64
	Status   domain.TxStatus
}

func (r *SQLiteRepo) ListTransactions(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	q := `
		SELECT id, client_id, gateway_id, external_id, amount_minor, status, card_last_numbers, created_at, updated_at
		FROM transactions WHERE 1 = 1
	`
	args := []any{}

	if f.ClientID != 0 {
		q += " AND client_id = ?"
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}

	q += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}
	return res, rows.Err()
}

func scanTransaction(scanner rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var status string
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&t.ID,
		&t.ClientID,
		&t.GatewayID,
		&t.ExternalID,
		&t.AmountMinor,
		&status,
		&t.CardLastNumbers,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	t.Status = domain.TxStatus(status)
	if err := parseTimes(&t.CreatedAt, &t.UpdatedAt, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func parseTimes(createdDst, updatedDst *time.Time, created, updated string) error {
	c, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	u, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}
	*createdDst = c
	*updatedDst = u
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
