package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-ledger/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createItem(t *testing.T, s *Store, name, price string) *ledger.Item {
	t.Helper()
	item := &ledger.Item{Name: name, Price: decimal.RequireFromString(price), AddedOn: time.Now().UTC()}
	require.NoError(t, s.CreateItem(context.Background(), item))
	return item
}

func purchaseOf(ref string, at time.Time, lines ...ledger.PurchaseLine) *ledger.Purchase {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}
	return &ledger.Purchase{Reference: ref, Total: total, AddedOn: at, Lines: lines}
}

func lineOf(item *ledger.Item, qty int) ledger.PurchaseLine {
	return ledger.PurchaseLine{
		ItemID:   item.ID,
		Price:    item.Price,
		Quantity: qty,
		Total:    item.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestStore_ItemRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := &ledger.Item{
		Name:    "Correction Tape",
		Price:   decimal.RequireFromString("35.75"),
		AddedOn: time.Date(2024, 5, 1, 9, 30, 0, 123456789, time.UTC),
	}
	require.NoError(t, s.CreateItem(ctx, item))
	require.NotZero(t, item.ID)

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Correction Tape", got.Name)
	assert.Equal(t, "", got.Barcode, "missing barcode reads back empty")
	assert.True(t, got.Price.Equal(item.Price))
	assert.True(t, got.AddedOn.Equal(item.AddedOn), "nanoseconds survive")

	_, err = s.GetItem(ctx, item.ID+1)
	assert.ErrorIs(t, err, ledger.ErrItemNotFound)
}

func TestStore_PurchaseKeepsLineOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createItem(t, s, "A", "1")
	b := createItem(t, s, "B", "2")
	c := createItem(t, s, "C", "3")

	p := purchaseOf("r-1", time.Now().UTC(), lineOf(c, 1), lineOf(a, 2), lineOf(b, 3))
	require.NoError(t, s.CreatePurchase(ctx, p))

	got, err := s.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 3)
	assert.Equal(t, []ledger.ItemID{c.ID, a.ID, b.ID},
		[]ledger.ItemID{got.Lines[0].ItemID, got.Lines[1].ItemID, got.Lines[2].ItemID})
	for _, l := range got.Lines {
		assert.Equal(t, p.ID, l.PurchaseID)
	}
}

func TestStore_CreatePurchase_IsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createItem(t, s, "A", "1")

	// Second line references a missing item: the foreign key fails and the
	// header insert is rolled back with it.
	missing := &ledger.Item{ID: 999, Price: decimal.NewFromInt(1)}
	err := s.CreatePurchase(ctx, purchaseOf("r-1", time.Now().UTC(), lineOf(a, 1), lineOf(missing, 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	_, err = s.GetPurchaseByReference(ctx, "r-1")
	assert.ErrorIs(t, err, ledger.ErrPurchaseNotFound)

	totals, err := s.SalesTotals(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, totals.Quantity)
}

func TestStore_DuplicateReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createItem(t, s, "A", "1")

	require.NoError(t, s.CreatePurchase(ctx, purchaseOf("same", time.Now().UTC(), lineOf(a, 1))))
	err := s.CreatePurchase(ctx, purchaseOf("same", time.Now().UTC(), lineOf(a, 1)))
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestStore_WithTx_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		item := &ledger.Item{Name: "Ghost", Price: decimal.NewFromInt(1), AddedOn: time.Now().UTC()}
		if err := tx.CreateItem(ctx, item); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_DeletePurchase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createItem(t, s, "A", "4")
	b := createItem(t, s, "B", "6")

	p := purchaseOf("r-1", time.Now().UTC(), lineOf(a, 1), lineOf(b, 2))
	require.NoError(t, s.CreatePurchase(ctx, p))

	require.NoError(t, s.DeletePurchaseLine(ctx, a.ID, p.ID))
	got, err := s.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.ErrorIs(t, s.DeletePurchaseLine(ctx, a.ID, p.ID), ledger.ErrNotFound)

	require.NoError(t, s.DeletePurchase(ctx, p.ID))
	_, err = s.GetPurchase(ctx, p.ID)
	assert.ErrorIs(t, err, ledger.ErrPurchaseNotFound)

	totals, err := s.SalesTotals(ctx, b.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, totals.Quantity, "lines are deleted with their purchase")

	assert.ErrorIs(t, s.DeletePurchase(ctx, p.ID), ledger.ErrPurchaseNotFound)
}

func TestStore_SalesByItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createItem(t, s, "A", "10")
	b := createItem(t, s, "B", "5")
	now := time.Now().UTC()

	require.NoError(t, s.CreatePurchase(ctx, purchaseOf("r-1", now, lineOf(b, 1), lineOf(a, 2))))
	require.NoError(t, s.CreatePurchase(ctx, purchaseOf("r-2", now, lineOf(b, 4))))
	require.NoError(t, s.CreatePurchase(ctx, purchaseOf("r-3", now.Add(-48*time.Hour), lineOf(a, 9))))

	rows, err := s.SalesByItem(ctx, ledger.WindowEndingAt(now, time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, a.ID, rows[0].ItemID, "rows are ordered by item id")
	assert.Equal(t, 2, rows[0].Quantity)
	assert.True(t, rows[0].Total.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, b.ID, rows[1].ItemID)
	assert.Equal(t, 5, rows[1].Quantity)
	assert.True(t, rows[1].Total.Equal(decimal.NewFromInt(25)))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	item := createItem(t, s, "Pen", "10")
	require.NoError(t, s.CreateStock(ctx, &ledger.Stock{
		ItemID:      item.ID,
		Cost:        decimal.NewNullDecimal(decimal.NewFromInt(50)),
		PerItemCost: decimal.NewNullDecimal(decimal.NewFromInt(5)),
		Quantity:    10,
		AddedOn:     time.Now().UTC(),
	}))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	totals, err := s.StockTotals(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, totals.Quantity)
	assert.True(t, totals.Cost.Equal(decimal.NewFromInt(50)))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, ledger.ErrConflict},
		{"unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ledger.ErrConflict},
		{"foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, ledger.ErrConflict},
		{"check", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, ledger.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(fmt.Errorf("wrapped: %w", tt.err))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	plain := errors.New("disk on fire")
	assert.Equal(t, plain, mapError(plain))
}
