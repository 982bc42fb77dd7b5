/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists the four ledger relations (items, stock, purchases,
  purchase_lines) with foreign keys and cascades enforced by the database.

KEY TABLES:
  items:          Catalog entries
  stock:          Received batches, FK items ON DELETE CASCADE
  purchases:      Sales, unique opaque reference
  purchase_lines: PK (item_id, purchase_id), FK items and purchases
                  ON DELETE CASCADE, position keeps insertion order

MONEY:
  Decimal values are stored as TEXT and scanned back into decimal.Decimal.
  Money sums are computed in Go from the selected rows so that they stay
  exact; SQLite would sum TEXT as floating point.

TIMESTAMPS:
  Stored as fixed-width UTC strings (nanosecond precision), so string
  comparison in SQL matches time ordering and window bounds are inclusive.

SEARCH:
  SQLite's LOWER() folds ASCII only. The driver registered here adds
  fold_lower(), backed by strings.ToLower, so item search ignores case for
  any script ("éclair" matches "ÉCLAIR").

INDEXES:
  - idx_stock_item: per-item stock totals
  - idx_purchase_lines_item: per-item sales totals
  - idx_purchase_lines_purchase: receipt loading in line order
  - idx_purchases_added_on: windowed rankings

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; WithTx holds the write lock for
  the whole callback. Busy and locked errors surface as ledger.ErrConflict.

USAGE:
  store, err := sqlite.New("./data/pos.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  catalog := ledger.NewCatalog(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/pos-ledger/ledger"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// driverName is go-sqlite3 with the ledger's SQL functions registered on
// every connection.
const driverName = "sqlite3_ledger"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold_lower", strings.ToLower, true)
		},
	})
}

var _ ledger.TxStore = (*Store)(nil)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  queries
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open(driverName, dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, q: queries{db: db}}
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
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL CHECK (length(name) > 0),
		price TEXT NOT NULL,
		barcode TEXT,
		added_on TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);

	CREATE TABLE IF NOT EXISTS stock (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		cost TEXT,
		per_item_cost TEXT,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		added_on TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_item ON stock(item_id);

	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL UNIQUE,
		discount TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL,
		created_by TEXT,
		added_on TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_added_on ON purchases(added_on);

	CREATE TABLE IF NOT EXISTS purchase_lines (
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		purchase_id INTEGER NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		price TEXT NOT NULL,
		discount TEXT NOT NULL DEFAULT '0',
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		total TEXT NOT NULL,
		PRIMARY KEY (item_id, purchase_id)
	);

	CREATE INDEX IF NOT EXISTS idx_purchase_lines_item ON purchase_lines(item_id);
	CREATE INDEX IF NOT EXISTS idx_purchase_lines_purchase ON purchase_lines(purchase_id, position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOCKED ENTRY POINTS (ledger.Store interface)
// =============================================================================

func (s *Store) CreateItem(ctx context.Context, item *ledger.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.CreateItem(ctx, item)
}

func (s *Store) GetItem(ctx context.Context, id ledger.ItemID) (*ledger.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetItem(ctx, id)
}

func (s *Store) UpdateItem(ctx context.Context, item *ledger.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.UpdateItem(ctx, item)
}

func (s *Store) DeleteItem(ctx context.Context, id ledger.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteItem(ctx, id)
}

func (s *Store) ListItems(ctx context.Context) ([]ledger.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListItems(ctx)
}

func (s *Store) SearchItems(ctx context.Context, query string, limit, offset int) ([]ledger.Item, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.SearchItems(ctx, query, limit, offset)
}

func (s *Store) CreateStock(ctx context.Context, st *ledger.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.CreateStock(ctx, st)
}

func (s *Store) GetStock(ctx context.Context, id ledger.StockID) (*ledger.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetStock(ctx, id)
}

func (s *Store) DeleteStock(ctx context.Context, id ledger.StockID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteStock(ctx, id)
}

func (s *Store) ListStock(ctx context.Context, itemID ledger.ItemID) ([]ledger.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListStock(ctx, itemID)
}

// CreatePurchase writes the purchase and its lines in one transaction.
func (s *Store) CreatePurchase(ctx context.Context, p *ledger.Purchase) error {
	return s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.CreatePurchase(ctx, p)
	})
}

func (s *Store) GetPurchase(ctx context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetPurchase(ctx, id)
}

func (s *Store) GetPurchaseByReference(ctx context.Context, reference string) (*ledger.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetPurchaseByReference(ctx, reference)
}

func (s *Store) ListPurchases(ctx context.Context, w ledger.Window) ([]ledger.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListPurchases(ctx, w)
}

func (s *Store) DeletePurchase(ctx context.Context, id ledger.PurchaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeletePurchase(ctx, id)
}

func (s *Store) DeletePurchaseLine(ctx context.Context, itemID ledger.ItemID, purchaseID ledger.PurchaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeletePurchaseLine(ctx, itemID, purchaseID)
}

func (s *Store) StockTotals(ctx context.Context, itemID ledger.ItemID) (ledger.StockTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.StockTotals(ctx, itemID)
}

func (s *Store) SalesTotals(ctx context.Context, itemID ledger.ItemID, w *ledger.Window) (ledger.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.SalesTotals(ctx, itemID, w)
}

func (s *Store) SalesByItem(ctx context.Context, w ledger.Window) ([]ledger.ItemSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.SalesByItem(ctx, w)
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(queries{db: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// =============================================================================
// QUERIES - shared by Store and WithTx callbacks
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

const itemColumns = `id, name, price, barcode, added_on`

func (q queries) CreateItem(ctx context.Context, item *ledger.Item) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO items (name, price, barcode, added_on) VALUES (?, ?, ?, ?)`,
		item.Name, item.Price, nullString(item.Barcode), formatTime(item.AddedOn),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create item: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read item id: %w", err)
	}
	item.ID = ledger.ItemID(id)
	return nil
}

func (q queries) GetItem(ctx context.Context, id ledger.ItemID) (*ledger.Item, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (q queries) UpdateItem(ctx context.Context, item *ledger.Item) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE items SET name = ?, price = ?, barcode = ? WHERE id = ?`,
		item.Name, item.Price, nullString(item.Barcode), item.ID,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to update item: %w", err))
	}
	return expectRow(res, ledger.ErrItemNotFound)
}

func (q queries) DeleteItem(ctx context.Context, id ledger.ItemID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete item: %w", err))
	}
	return expectRow(res, ledger.ErrItemNotFound)
}

func (q queries) ListItems(ctx context.Context) ([]ledger.Item, error) {
	return q.queryItems(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name, id`)
}

func (q queries) SearchItems(ctx context.Context, query string, limit, offset int) ([]ledger.Item, int, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	where := `WHERE fold_lower(name) LIKE ? ESCAPE '\' OR fold_lower(COALESCE(barcode, '')) LIKE ? ESCAPE '\'`

	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items `+where, pattern, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	items, err := q.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items `+where+` ORDER BY name, id LIMIT ? OFFSET ?`,
		pattern, pattern, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (q queries) queryItems(ctx context.Context, query string, args ...any) ([]ledger.Item, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []ledger.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

const stockColumns = `id, item_id, cost, per_item_cost, quantity, added_on`

func (q queries) CreateStock(ctx context.Context, st *ledger.Stock) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO stock (item_id, cost, per_item_cost, quantity, added_on) VALUES (?, ?, ?, ?, ?)`,
		st.ItemID, st.Cost, st.PerItemCost, st.Quantity, formatTime(st.AddedOn),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create stock: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read stock id: %w", err)
	}
	st.ID = ledger.StockID(id)
	return nil
}

func (q queries) GetStock(ctx context.Context, id ledger.StockID) (*ledger.Stock, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+stockColumns+` FROM stock WHERE id = ?`, id)
	st, err := scanStock(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrStockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return st, nil
}

func (q queries) DeleteStock(ctx context.Context, id ledger.StockID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM stock WHERE id = ?`, id)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete stock: %w", err))
	}
	return expectRow(res, ledger.ErrStockNotFound)
}

func (q queries) ListStock(ctx context.Context, itemID ledger.ItemID) ([]ledger.Stock, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+stockColumns+` FROM stock WHERE item_id = ? ORDER BY id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer rows.Close()

	var batches []ledger.Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		batches = append(batches, *st)
	}
	return batches, rows.Err()
}

// CreatePurchase inserts the purchase then its lines. Callers outside a
// transaction go through Store.CreatePurchase, which opens one.
func (q queries) CreatePurchase(ctx context.Context, p *ledger.Purchase) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO purchases (reference, discount, total, created_by, added_on) VALUES (?, ?, ?, ?, ?)`,
		p.Reference, p.Discount, p.Total, nullString(p.CreatedBy), formatTime(p.AddedOn),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create purchase: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read purchase id: %w", err)
	}
	p.ID = ledger.PurchaseID(id)

	for i := range p.Lines {
		l := &p.Lines[i]
		l.PurchaseID = p.ID
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO purchase_lines (item_id, purchase_id, position, price, discount, quantity, total)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.ItemID, l.PurchaseID, i, l.Price, l.Discount, l.Quantity, l.Total,
		)
		if err != nil {
			return mapError(fmt.Errorf("failed to create purchase line: %w", err))
		}
	}
	return nil
}

const purchaseColumns = `id, reference, discount, total, created_by, added_on`

func (q queries) GetPurchase(ctx context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	return q.getPurchase(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = ?`, id)
}

func (q queries) GetPurchaseByReference(ctx context.Context, reference string) (*ledger.Purchase, error) {
	return q.getPurchase(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE reference = ?`, reference)
}

func (q queries) getPurchase(ctx context.Context, query string, arg any) (*ledger.Purchase, error) {
	p, err := scanPurchase(q.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, ledger.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	lines, err := q.queryLines(ctx, `WHERE purchase_id = ?`, p.ID)
	if err != nil {
		return nil, err
	}
	p.Lines = lines[p.ID]
	if p.Lines == nil {
		p.Lines = []ledger.PurchaseLine{}
	}
	return p, nil
}

func (q queries) ListPurchases(ctx context.Context, w ledger.Window) ([]ledger.Purchase, error) {
	start, end := formatTime(w.Start), formatTime(w.End)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE added_on >= ? AND added_on <= ?
		 ORDER BY added_on, id`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []ledger.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := q.queryLines(ctx,
		`WHERE purchase_id IN (SELECT id FROM purchases WHERE added_on >= ? AND added_on <= ?)`, start, end)
	if err != nil {
		return nil, err
	}
	for i := range purchases {
		purchases[i].Lines = lines[purchases[i].ID]
		if purchases[i].Lines == nil {
			purchases[i].Lines = []ledger.PurchaseLine{}
		}
	}
	return purchases, nil
}

// queryLines loads lines matching where, grouped by purchase in position
// order.
func (q queries) queryLines(ctx context.Context, where string, args ...any) (map[ledger.PurchaseID][]ledger.PurchaseLine, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT item_id, purchase_id, price, discount, quantity, total
		 FROM purchase_lines `+where+` ORDER BY purchase_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[ledger.PurchaseID][]ledger.PurchaseLine)
	for rows.Next() {
		var l ledger.PurchaseLine
		if err := rows.Scan(&l.ItemID, &l.PurchaseID, &l.Price, &l.Discount, &l.Quantity, &l.Total); err != nil {
			return nil, fmt.Errorf("failed to scan purchase line: %w", err)
		}
		lines[l.PurchaseID] = append(lines[l.PurchaseID], l)
	}
	return lines, rows.Err()
}

func (q queries) DeletePurchase(ctx context.Context, id ledger.PurchaseID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete purchase: %w", err))
	}
	return expectRow(res, ledger.ErrPurchaseNotFound)
}

func (q queries) DeletePurchaseLine(ctx context.Context, itemID ledger.ItemID, purchaseID ledger.PurchaseID) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM purchase_lines WHERE item_id = ? AND purchase_id = ?`, itemID, purchaseID)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete purchase line: %w", err))
	}
	return expectRow(res, ledger.ErrNotFound)
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (q queries) StockTotals(ctx context.Context, itemID ledger.ItemID) (ledger.StockTotals, error) {
	totals := ledger.StockTotals{Cost: decimal.Zero}

	rows, err := q.db.QueryContext(ctx, `SELECT quantity, cost FROM stock WHERE item_id = ?`, itemID)
	if err != nil {
		return totals, fmt.Errorf("failed to query stock totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			quantity int
			cost     decimal.NullDecimal
		)
		if err := rows.Scan(&quantity, &cost); err != nil {
			return totals, fmt.Errorf("failed to scan stock totals: %w", err)
		}
		totals.Quantity += quantity
		if cost.Valid {
			totals.Cost = totals.Cost.Add(cost.Decimal)
		}
	}
	return totals, rows.Err()
}

func (q queries) SalesTotals(ctx context.Context, itemID ledger.ItemID, w *ledger.Window) (ledger.SalesTotals, error) {
	totals := ledger.SalesTotals{Total: decimal.Zero}

	query := `SELECT pl.quantity, pl.total FROM purchase_lines pl`
	args := []any{itemID}
	if w != nil {
		query += ` JOIN purchases p ON p.id = pl.purchase_id
		 WHERE pl.item_id = ? AND p.added_on >= ? AND p.added_on <= ?`
		args = append(args, formatTime(w.Start), formatTime(w.End))
	} else {
		query += ` WHERE pl.item_id = ?`
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return totals, fmt.Errorf("failed to query sales totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			quantity int
			total    decimal.Decimal
		)
		if err := rows.Scan(&quantity, &total); err != nil {
			return totals, fmt.Errorf("failed to scan sales totals: %w", err)
		}
		totals.Quantity += quantity
		totals.Total = totals.Total.Add(total)
	}
	return totals, rows.Err()
}

func (q queries) SalesByItem(ctx context.Context, w ledger.Window) ([]ledger.ItemSales, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT pl.item_id, pl.quantity, pl.total
		 FROM purchase_lines pl
		 JOIN purchases p ON p.id = pl.purchase_id
		 WHERE p.added_on >= ? AND p.added_on <= ?
		 ORDER BY pl.item_id`,
		formatTime(w.Start), formatTime(w.End),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales by item: %w", err)
	}
	defer rows.Close()

	var out []ledger.ItemSales
	for rows.Next() {
		var (
			itemID   ledger.ItemID
			quantity int
			total    decimal.Decimal
		)
		if err := rows.Scan(&itemID, &quantity, &total); err != nil {
			return nil, fmt.Errorf("failed to scan sales by item: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ItemID != itemID {
			out = append(out, ledger.ItemSales{ItemID: itemID, Total: decimal.Zero})
		}
		row := &out[len(out)-1]
		row.Quantity += quantity
		row.Total = row.Total.Add(total)
	}
	return out, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*ledger.Item, error) {
	var (
		item    ledger.Item
		barcode sql.NullString
		addedOn string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Price, &barcode, &addedOn); err != nil {
		return nil, err
	}
	item.Barcode = barcode.String
	item.AddedOn = parseTime(addedOn)
	return &item, nil
}

func scanStock(row scanner) (*ledger.Stock, error) {
	var (
		st      ledger.Stock
		addedOn string
	)
	if err := row.Scan(&st.ID, &st.ItemID, &st.Cost, &st.PerItemCost, &st.Quantity, &addedOn); err != nil {
		return nil, err
	}
	st.AddedOn = parseTime(addedOn)
	return &st, nil
}

func scanPurchase(row scanner) (*ledger.Purchase, error) {
	var (
		p         ledger.Purchase
		createdBy sql.NullString
		addedOn   string
	)
	if err := row.Scan(&p.ID, &p.Reference, &p.Discount, &p.Total, &createdBy, &addedOn); err != nil {
		return nil, err
	}
	p.CreatedBy = createdBy.String
	p.AddedOn = parseTime(addedOn)
	return &p, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// mapError translates SQLite failures into ledger errors. Lock contention
// and key violations caused by concurrent writers are transient; CHECK
// violations mean the input slipped past validation.
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	case sqlite3.ErrConstraint:
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey,
			sqlite3.ErrConstraintUnique,
			sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %v", ledger.ErrValidation, err)
		}
	}
	return err
}
