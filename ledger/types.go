/*
Package ledger provides the inventory and sales ledger core.

PURPOSE:
  Records stock receipts and purchases for a small retail point of sale,
  and derives inventory and sales metrics from the stored rows. The HTTP
  layer, configuration and persistence drivers live elsewhere; this package
  only knows the four relations and the operations on them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: a sellable catalog entry with a price and optional barcode
  - Stock: one received batch of an item with its cost basis
  - Purchase: one sale, possibly covering several items
  - PurchaseLine: one item within a purchase, with a price snapshot

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Computed totals: line and purchase totals are derived by the
     Processor, callers cannot set them
  3. Snapshots: a line keeps the price at time of sale, independent of
     later price changes on the item
  4. No caches: every metric is recomputed from stored rows

SEE ALSO:
  - catalog.go: Item and stock management
  - purchase.go: Atomic purchase recording
  - metrics.go: Derived metrics
  - store.go: Persistence interface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ItemID int64
type StockID int64
type PurchaseID int64

// =============================================================================
// ENTITIES
// =============================================================================

// Item is a sellable catalog entry.
type Item struct {
	ID      ItemID
	Name    string
	Price   decimal.Decimal
	Barcode string // empty when the item has no barcode
	AddedOn time.Time
}

// Stock is a received batch. Cost and PerItemCost are nullable in storage
// and count as zero in aggregates when absent.
type Stock struct {
	ID          StockID
	ItemID      ItemID
	Cost        decimal.NullDecimal
	PerItemCost decimal.NullDecimal
	Quantity    int
	AddedOn     time.Time
}

// Purchase is one sale transaction. Total is the pre-discount grand total.
type Purchase struct {
	ID        PurchaseID
	Reference string
	Discount  decimal.Decimal
	Total     decimal.Decimal
	CreatedBy string
	AddedOn   time.Time

	// Lines in insertion order.
	Lines []PurchaseLine
}

// DiscountedTotal returns Total minus Total×Discount.
func (p Purchase) DiscountedTotal() decimal.Decimal {
	return discounted(p.Total, p.Discount)
}

// PurchaseLine is one item within a purchase. (ItemID, PurchaseID) is the
// natural key: a purchase holds at most one line per item.
type PurchaseLine struct {
	ItemID     ItemID
	PurchaseID PurchaseID
	Price      decimal.Decimal // snapshot at time of sale
	Discount   decimal.Decimal
	Quantity   int
	Total      decimal.Decimal // Quantity × Price
}

// DiscountedTotal returns Total minus Total×Discount.
func (l PurchaseLine) DiscountedTotal() decimal.Decimal {
	return discounted(l.Total, l.Discount)
}

func discounted(total, discount decimal.Decimal) decimal.Decimal {
	return total.Sub(total.Mul(discount))
}

// lineTotal is the only place a line total is computed.
func lineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// =============================================================================
// AGGREGATES - returned by the store, consumed by Metrics
// =============================================================================

// StockTotals sums the stock batches of one item.
type StockTotals struct {
	Quantity int
	Cost     decimal.Decimal
}

// SalesTotals sums the purchase lines of one item.
type SalesTotals struct {
	Quantity int
	Total    decimal.Decimal
}

// ItemSales is the per-item sum of purchase lines inside a window.
type ItemSales struct {
	ItemID   ItemID
	Quantity int
	Total    decimal.Decimal
}

// =============================================================================
// PAGINATION
// =============================================================================

// PageRequest selects a 1-based page of a given size.
type PageRequest struct {
	Number int
	Size   int
}

func (r PageRequest) normalize() PageRequest {
	if r.Number < 1 {
		r.Number = 1
	}
	if r.Size < 1 {
		r.Size = DefaultPageSize
	}
	return r
}

func (r PageRequest) offset() int { return (r.Number - 1) * r.Size }

// DefaultPageSize applies when a caller passes no page size.
const DefaultPageSize = 10

// Page is one page of a paginated query.
type Page[T any] struct {
	Items  []T
	Number int
	Size   int
	Total  int
}

// Pages returns the number of pages needed for Total items.
func (p Page[T]) Pages() int {
	if p.Size == 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// HasNext reports whether a page follows this one.
func (p Page[T]) HasNext() bool { return p.Number < p.Pages() }

// HasPrev reports whether a page precedes this one.
func (p Page[T]) HasPrev() bool { return p.Number > 1 }
