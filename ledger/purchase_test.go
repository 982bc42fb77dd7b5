package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-ledger/ledger"
)

func TestRecordPurchase_Totals(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		// GIVEN two items
		pen := f.item(t, "Pen", "12.50")
		pad := f.item(t, "Pad", "30")

		// WHEN a basket of 3 pens and 2 pads is recorded
		p := f.buy(t, line(pen.ID, 3), line(pad.ID, 2))

		// THEN totals are computed from the current prices
		assertMoney(t, "97.50", p.Total)
		require.Len(t, p.Lines, 2)
		assert.Equal(t, pen.ID, p.Lines[0].ItemID)
		assertMoney(t, "37.50", p.Lines[0].Total)
		assertMoney(t, "60", p.Lines[1].Total)
		assert.Len(t, p.Reference, ledger.ReferenceLength)
		assert.Equal(t, testCaller.Name, p.CreatedBy)

		// AND the stored purchase matches, with line order kept
		got, err := f.processor.GetPurchase(f.ctx, p.Reference)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assertMoney(t, "97.50", got.Total)
		require.Len(t, got.Lines, 2)
		assert.Equal(t, pen.ID, got.Lines[0].ItemID)
		assert.Equal(t, pad.ID, got.Lines[1].ItemID)

		// Total invariant: header total equals the sum of line totals.
		sum := decimal.Zero
		for _, l := range got.Lines {
			sum = sum.Add(l.Total)
		}
		assertMoney(t, got.Total.String(), sum)
	})
}

func TestRecordPurchase_SnapshotsPrice(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		pen := f.item(t, "Pen", "10")
		p := f.buy(t, line(pen.ID, 3))

		// WHEN the price changes after the sale
		price := decimal.NewFromInt(15)
		_, err := f.catalog.UpdateItem(f.ctx, pen.ID, ledger.ItemPatch{Price: &price})
		require.NoError(t, err)

		// THEN the receipt and the sold total keep the old price
		got, err := f.processor.GetPurchase(f.ctx, p.Reference)
		require.NoError(t, err)
		assertMoney(t, "10", got.Lines[0].Price)
		assertMoney(t, "30", got.Total)

		sold, err := f.metrics.TotalSold(f.ctx, pen.ID)
		require.NoError(t, err)
		assertMoney(t, "30", sold)
	})
}

func TestRecordPurchase_Discounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		big := f.item(t, "Calculator", "100")
		small := f.item(t, "Folder", "40")

		p, err := f.processor.RecordPurchase(f.ctx, ledger.PurchaseRequest{
			Lines: []ledger.LineRequest{
				{ItemID: big.ID, Quantity: 1},
				{ItemID: small.ID, Quantity: 1, Discount: decimal.RequireFromString("0.1")},
			},
			Discount: decimal.RequireFromString("0.25"),
		})
		require.NoError(t, err)

		// Totals stay pre-discount; discounted values are derived.
		assertMoney(t, "140", p.Total)
		assertMoney(t, "105", p.DiscountedTotal())
		assertMoney(t, "36", p.Lines[1].DiscountedTotal())
		assertMoney(t, "100", p.Lines[0].DiscountedTotal())

		got, err := f.processor.GetPurchase(f.ctx, p.Reference)
		require.NoError(t, err)
		assertMoney(t, "0.25", got.Discount)
		assertMoney(t, "0.1", got.Lines[1].Discount)
	})
}

func TestRecordPurchase_UnknownItemRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		// GIVEN a basket whose second line references a missing item
		pen := f.item(t, "Pen", "10")

		// WHEN it is recorded
		_, err := f.processor.RecordPurchase(f.ctx, ledger.PurchaseRequest{
			Lines: []ledger.LineRequest{line(pen.ID, 2), line(999, 1)},
		})

		// THEN the whole purchase fails naming the item
		var nf *ledger.ItemNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, ledger.ItemID(999), nf.ItemID)
		assert.ErrorIs(t, err, ledger.ErrItemNotFound)

		// AND nothing was written
		sold, err := f.metrics.TotalPurchased(f.ctx, pen.ID)
		require.NoError(t, err)
		assert.Zero(t, sold)

		purchases, err := f.processor.ListPurchases(f.ctx, ledger.WindowEndingAt(time.Now().Add(time.Minute), time.Hour))
		require.NoError(t, err)
		assert.Empty(t, purchases)
	})
}

func TestRecordPurchase_EmptyBasket(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		p := f.buy(t)
		assert.True(t, p.Total.IsZero())
		assert.Empty(t, p.Lines)

		got, err := f.processor.GetPurchase(f.ctx, p.Reference)
		require.NoError(t, err)
		assert.Empty(t, got.Lines)
	})
}

func TestRecordPurchase_MergesRepeatedItems(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		pen := f.item(t, "Pen", "10")
		pad := f.item(t, "Pad", "30")

		p := f.buy(t, line(pen.ID, 1), line(pad.ID, 1), line(pen.ID, 2))

		require.Len(t, p.Lines, 2)
		assert.Equal(t, pen.ID, p.Lines[0].ItemID)
		assert.Equal(t, 3, p.Lines[0].Quantity)
		assertMoney(t, "60", p.Total)
	})
}

func TestRecordPurchase_Validation(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		pen := f.item(t, "Pen", "10")
		tenth := decimal.RequireFromString("0.1")

		tests := []struct {
			name string
			req  ledger.PurchaseRequest
		}{
			{"zero quantity", ledger.PurchaseRequest{Lines: []ledger.LineRequest{line(pen.ID, 0)}}},
			{"negative quantity", ledger.PurchaseRequest{Lines: []ledger.LineRequest{line(pen.ID, -2)}}},
			{"missing item id", ledger.PurchaseRequest{Lines: []ledger.LineRequest{line(0, 1)}}},
			{"line discount above one", ledger.PurchaseRequest{Lines: []ledger.LineRequest{{ItemID: pen.ID, Quantity: 1, Discount: decimal.RequireFromString("1.5")}}}},
			{"negative purchase discount", ledger.PurchaseRequest{Lines: []ledger.LineRequest{line(pen.ID, 1)}, Discount: decimal.RequireFromString("-0.1")}},
			{"conflicting discounts", ledger.PurchaseRequest{Lines: []ledger.LineRequest{
				{ItemID: pen.ID, Quantity: 1},
				{ItemID: pen.ID, Quantity: 1, Discount: tenth},
			}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.processor.RecordPurchase(f.ctx, tt.req)
				assert.ErrorIs(t, err, ledger.ErrValidation)
			})
		}

		sold, err := f.metrics.TotalPurchased(f.ctx, pen.ID)
		require.NoError(t, err)
		assert.Zero(t, sold)
	})
}

func TestRecordPurchase_RequiresCaller(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		pen := f.item(t, "Pen", "10")
		_, err := f.processor.RecordPurchase(context.Background(), ledger.PurchaseRequest{
			Lines: []ledger.LineRequest{line(pen.ID, 1)},
		})
		assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
	})
}

func TestRecordPurchase_OversellAllowedByDefault(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		pen := f.item(t, "Pen", "10")
		f.stock(t, pen.ID, 2, "10")

		f.buy(t, line(pen.ID, 5))

		inStock, err := f.metrics.InStock(f.ctx, pen.ID)
		require.NoError(t, err)
		assert.Equal(t, -3, inStock, "in_stock is not clamped")
	})
}

func TestRecordPurchase_StrictStock(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.processor.StrictStock = true
		pen := f.item(t, "Pen", "10")
		f.stock(t, pen.ID, 5, "25")
		f.buy(t, line(pen.ID, 3))

		_, err := f.processor.RecordPurchase(f.ctx, ledger.PurchaseRequest{
			Lines: []ledger.LineRequest{line(pen.ID, 3)},
		})
		var ierr *ledger.InsufficientStockError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, 2, ierr.Available)
		assert.Equal(t, 3, ierr.Requested)
		assert.True(t, ledger.IsClientError(err))

		f.buy(t, line(pen.ID, 2))
		inStock, err := f.metrics.InStock(f.ctx, pen.ID)
		require.NoError(t, err)
		assert.Zero(t, inStock)
	})
}

func TestGetPurchase_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		_, err := f.processor.GetPurchase(f.ctx, "missing-reference")
		assert.ErrorIs(t, err, ledger.ErrPurchaseNotFound)
		assert.True(t, ledger.IsNotFound(err))
	})
}

func TestListPurchases_Window(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		pen := f.item(t, "Pen", "10")
		now := time.Now().UTC()

		// GIVEN one purchase 10 days ago and one today
		old := &ledger.Purchase{
			Reference: "old-receipt",
			Total:     decimal.NewFromInt(10),
			AddedOn:   now.Add(-10 * 24 * time.Hour),
			Lines: []ledger.PurchaseLine{
				{ItemID: pen.ID, Price: decimal.NewFromInt(10), Quantity: 1, Total: decimal.NewFromInt(10)},
			},
		}
		require.NoError(t, f.store.CreatePurchase(f.ctx, old))
		recent := f.buy(t, line(pen.ID, 2))

		// WHEN listing the last week
		purchases, err := f.processor.ListPurchases(f.ctx, ledger.WindowEndingAt(now.Add(time.Minute), 7*24*time.Hour))
		require.NoError(t, err)

		// THEN only today's purchase is returned, with its lines
		require.Len(t, purchases, 1)
		assert.Equal(t, recent.Reference, purchases[0].Reference)
		require.Len(t, purchases[0].Lines, 1)
		assert.Equal(t, 2, purchases[0].Lines[0].Quantity)

		// Both bounds are inclusive.
		purchases, err = f.processor.ListPurchases(f.ctx, ledger.Window{Start: old.AddedOn, End: old.AddedOn})
		require.NoError(t, err)
		require.Len(t, purchases, 1)
		assert.Equal(t, "old-receipt", purchases[0].Reference)
	})
}

func TestListPurchases_InvalidWindow(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		now := time.Now()
		_, err := f.processor.ListPurchases(f.ctx, ledger.Window{Start: now, End: now.Add(-time.Hour)})
		assert.ErrorIs(t, err, ledger.ErrInvalidWindow)
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}

// conflictingStore fails the first n transactions with ErrConflict.
type conflictingStore struct {
	ledger.TxStore
	failures int
	calls    int
}

func (s *conflictingStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.calls++
	if s.calls <= s.failures {
		return ledger.ErrConflict
	}
	return s.TxStore.WithTx(ctx, fn)
}

func TestRecordPurchase_RetriesConflicts(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		pen := f.item(t, "Pen", "10")

		flaky := &conflictingStore{TxStore: f.store, failures: 2}
		ref, err := ledger.NewReferenceGenerator()
		require.NoError(t, err)
		processor := ledger.NewProcessor(flaky, ref)

		p, err := processor.RecordPurchase(f.ctx, ledger.PurchaseRequest{Lines: []ledger.LineRequest{line(pen.ID, 1)}})
		require.NoError(t, err)
		assert.Equal(t, 3, flaky.calls)
		assertMoney(t, "10", p.Total)

		// Out of retries: the conflict surfaces.
		flaky = &conflictingStore{TxStore: f.store, failures: 10}
		processor = ledger.NewProcessor(flaky, ref)
		processor.Retries = 1
		_, err = processor.RecordPurchase(f.ctx, ledger.PurchaseRequest{Lines: []ledger.LineRequest{line(pen.ID, 1)}})
		assert.ErrorIs(t, err, ledger.ErrConflict)
		assert.Equal(t, 2, flaky.calls)
	})
}
