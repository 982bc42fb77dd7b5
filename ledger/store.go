/*
store.go - Persistence interface for the four ledger relations

PURPOSE:
  Defines the boundary between the ledger operations and the database.
  Implementations must enforce the relational rules themselves:
  - stock and purchase lines reference an existing item
  - deleting an item removes its stock and purchase lines
  - deleting a purchase removes its lines
  - (item_id, purchase_id) is unique

ATOMIC WRITES:
  CreatePurchase writes the purchase and all its lines as one unit.
  WithTx groups reads and writes of a whole operation so that validation
  and commit see the same state.

AGGREGATES:
  StockTotals, SalesTotals and SalesByItem are the read paths of the
  metrics engine. Implementations compute them from rows on each call.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via database/sql
  - ledger/store: in-memory, for tests
*/
package ledger

import "context"

// Store persists items, stock batches, purchases and purchase lines.
// Get and Delete methods return the matching ErrXNotFound when the row is
// absent.
type Store interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id ItemID) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id ItemID) error
	// ListItems returns all items ordered by name, then id.
	ListItems(ctx context.Context) ([]Item, error)
	// SearchItems matches query as a case-insensitive substring of the name
	// or barcode. Returns the requested slice and the total match count.
	SearchItems(ctx context.Context, query string, limit, offset int) ([]Item, int, error)

	CreateStock(ctx context.Context, stock *Stock) error
	GetStock(ctx context.Context, id StockID) (*Stock, error)
	DeleteStock(ctx context.Context, id StockID) error
	ListStock(ctx context.Context, itemID ItemID) ([]Stock, error)

	// CreatePurchase assigns IDs and writes the purchase with its lines.
	CreatePurchase(ctx context.Context, p *Purchase) error
	GetPurchase(ctx context.Context, id PurchaseID) (*Purchase, error)
	GetPurchaseByReference(ctx context.Context, reference string) (*Purchase, error)
	// ListPurchases returns purchases whose AddedOn falls in w, oldest first.
	ListPurchases(ctx context.Context, w Window) ([]Purchase, error)
	DeletePurchase(ctx context.Context, id PurchaseID) error
	DeletePurchaseLine(ctx context.Context, itemID ItemID, purchaseID PurchaseID) error

	StockTotals(ctx context.Context, itemID ItemID) (StockTotals, error)
	// SalesTotals sums the item's lines; a nil window means all time.
	SalesTotals(ctx context.Context, itemID ItemID, w *Window) (SalesTotals, error)
	// SalesByItem groups lines of purchases inside w, ordered by item id.
	SalesByItem(ctx context.Context, w Window) ([]ItemSales, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
