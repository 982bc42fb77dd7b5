/*
metrics.go - Derived inventory and sales metrics

PURPOSE:
  Read-only aggregation over the store. Nothing is cached or materialized:
  each call runs indexed aggregate queries inside one store transaction,
  so its cost grows with the number of rows for the item (or window) and
  is visible at the call site.

PER-ITEM METRICS:
  total_stock     = sum(stock.quantity)
  total_purchased = sum(purchase_line.quantity)
  in_stock        = total_stock - total_purchased   (may be negative)
  stock_cost      = sum(stock.cost)                 (null cost counts as 0)
  total_sold      = sum(purchase_line.total)
  revenue         = stock_cost - total_sold

  revenue keeps the historical cost-minus-sales sign. It reads backwards
  for "revenue" and stays that way until the product owners decide.

RANKINGS:
  MostSales ranks items by summed line totals, MostSold by summed
  quantities, over purchases inside an inclusive window. Ties go to the
  lowest item id.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ItemMetrics bundles every per-item metric.
type ItemMetrics struct {
	ItemID         ItemID
	TotalStock     int
	TotalPurchased int
	InStock        int
	StockCost      decimal.Decimal
	TotalSold      decimal.Decimal
	Revenue        decimal.Decimal
}

// BestSeller is the result of a ranking query. Item is nil when no
// purchase falls in the window.
type BestSeller struct {
	Item     *Item
	Quantity int
	Total    decimal.Decimal
	Window   Window
}

// Metrics computes derived values from the store. Every public method
// reads inside one store transaction, so its figures come from a single
// consistent state.
type Metrics struct {
	store TxStore
	now   func() time.Time

	// RankingWindow is the span used when no window is supplied.
	RankingWindow time.Duration
}

// NewMetrics creates a metrics engine over store.
func NewMetrics(store TxStore) *Metrics {
	return &Metrics{store: store, now: time.Now, RankingWindow: DefaultRankingWindow}
}

// DefaultWindow returns the ranking window ending now.
func (m *Metrics) DefaultWindow() Window {
	return WindowEndingAt(m.now().UTC(), m.RankingWindow)
}

// =============================================================================
// PER-ITEM METRICS
// =============================================================================

// TotalStock returns the quantity received across all batches.
func (m *Metrics) TotalStock(ctx context.Context, id ItemID) (int, error) {
	s, err := m.Summary(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.TotalStock, nil
}

// TotalPurchased returns the quantity sold across all purchases.
func (m *Metrics) TotalPurchased(ctx context.Context, id ItemID) (int, error) {
	s, err := m.Summary(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.TotalPurchased, nil
}

// InStock returns received minus sold. Not clamped at zero.
func (m *Metrics) InStock(ctx context.Context, id ItemID) (int, error) {
	s, err := m.Summary(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.InStock, nil
}

// StockCost returns the summed cost of all batches.
func (m *Metrics) StockCost(ctx context.Context, id ItemID) (decimal.Decimal, error) {
	s, err := m.Summary(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return s.StockCost, nil
}

// TotalSold returns the summed pre-discount line totals.
func (m *Metrics) TotalSold(ctx context.Context, id ItemID) (decimal.Decimal, error) {
	s, err := m.Summary(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return s.TotalSold, nil
}

// Revenue returns stock cost minus total sold.
func (m *Metrics) Revenue(ctx context.Context, id ItemID) (decimal.Decimal, error) {
	s, err := m.Summary(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Revenue, nil
}

// SoldInWindow returns the quantity of the item sold in purchases whose
// timestamp lies in w.
func (m *Metrics) SoldInWindow(ctx context.Context, id ItemID, w Window) (int, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	w = w.UTC()

	var sold int
	err := m.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetItem(ctx, id); err != nil {
			return err
		}
		t, err := s.SalesTotals(ctx, id, &w)
		if err != nil {
			return err
		}
		sold = t.Quantity
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sold, nil
}

// Summary computes every per-item metric from one stock and one sales
// aggregate read in the same transaction.
func (m *Metrics) Summary(ctx context.Context, id ItemID) (*ItemMetrics, error) {
	var summary *ItemMetrics
	err := m.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetItem(ctx, id); err != nil {
			return err
		}
		stock, err := s.StockTotals(ctx, id)
		if err != nil {
			return err
		}
		sales, err := s.SalesTotals(ctx, id, nil)
		if err != nil {
			return err
		}
		summary = &ItemMetrics{
			ItemID:         id,
			TotalStock:     stock.Quantity,
			TotalPurchased: sales.Quantity,
			InStock:        stock.Quantity - sales.Quantity,
			StockCost:      stock.Cost,
			TotalSold:      sales.Total,
			Revenue:        stock.Cost.Sub(sales.Total),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// =============================================================================
// RANKINGS
// =============================================================================

// MostSales returns the item with the largest summed line totals in w.
// A nil window means DefaultWindow.
func (m *Metrics) MostSales(ctx context.Context, w *Window) (*BestSeller, error) {
	return m.rank(ctx, w, func(a, b ItemSales) bool { return a.Total.GreaterThan(b.Total) })
}

// MostSold returns the item with the largest summed quantity in w.
// A nil window means DefaultWindow.
func (m *Metrics) MostSold(ctx context.Context, w *Window) (*BestSeller, error) {
	return m.rank(ctx, w, func(a, b ItemSales) bool { return a.Quantity > b.Quantity })
}

// rank picks the first row that no later row strictly beats. Rows arrive
// ordered by item id, which makes the lowest id win ties.
func (m *Metrics) rank(ctx context.Context, w *Window, better func(a, b ItemSales) bool) (*BestSeller, error) {
	window := m.DefaultWindow()
	if w != nil {
		if err := w.Validate(); err != nil {
			return nil, err
		}
		window = w.UTC()
	}

	result := &BestSeller{Total: decimal.Zero, Window: window}
	err := m.store.WithTx(ctx, func(s Store) error {
		rows, err := s.SalesByItem(ctx, window)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		best := rows[0]
		for _, row := range rows[1:] {
			if better(row, best) {
				best = row
			}
		}

		item, err := s.GetItem(ctx, best.ItemID)
		if err != nil {
			return err
		}
		result.Item = item
		result.Quantity = best.Quantity
		result.Total = best.Total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
