package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-ledger/ledger"
	"github.com/warp/pos-ledger/ledger/store"
	"github.com/warp/pos-ledger/store/sqlite"
)

// =============================================================================
// TEST FIXTURE - every scenario runs against both store implementations
// =============================================================================

type fixture struct {
	ctx       context.Context
	store     ledger.TxStore
	catalog   *ledger.Catalog
	processor *ledger.Processor
	metrics   *ledger.Metrics
}

var testCaller = ledger.Caller{ID: "cashier-1", Name: "cashier-1"}

func forEachStore(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Helper()
	openers := []struct {
		name string
		open func(t *testing.T) ledger.TxStore
	}{
		{"memory", func(t *testing.T) ledger.TxStore { return store.NewMemory() }},
		{"sqlite", func(t *testing.T) ledger.TxStore {
			s, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
	for _, o := range openers {
		t.Run(o.name, func(t *testing.T) {
			fn(t, newFixture(t, o.open(t)))
		})
	}
}

func newFixture(t *testing.T, s ledger.TxStore) *fixture {
	t.Helper()
	ref, err := ledger.NewReferenceGenerator()
	require.NoError(t, err)
	return &fixture{
		ctx:       ledger.WithCaller(context.Background(), testCaller),
		store:     s,
		catalog:   ledger.NewCatalog(s),
		processor: ledger.NewProcessor(s, ref),
		metrics:   ledger.NewMetrics(s),
	}
}

func (f *fixture) item(t *testing.T, name, price string) *ledger.Item {
	t.Helper()
	item, err := f.catalog.CreateItem(f.ctx, ledger.NewItem{
		Name:  name,
		Price: decimal.NewNullDecimal(decimal.RequireFromString(price)),
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) stock(t *testing.T, id ledger.ItemID, qty int, cost string) *ledger.Stock {
	t.Helper()
	d := decimal.RequireFromString(cost)
	st, err := f.catalog.AddStock(f.ctx, ledger.NewStock{
		ItemID:      id,
		Quantity:    qty,
		Cost:        decimal.NewNullDecimal(d),
		PerItemCost: decimal.NewNullDecimal(d.Div(decimal.NewFromInt(int64(qty)))),
	})
	require.NoError(t, err)
	return st
}

func (f *fixture) buy(t *testing.T, lines ...ledger.LineRequest) *ledger.Purchase {
	t.Helper()
	p, err := f.processor.RecordPurchase(f.ctx, ledger.PurchaseRequest{Lines: lines})
	require.NoError(t, err)
	return p
}

func line(id ledger.ItemID, qty int) ledger.LineRequest {
	return ledger.LineRequest{ItemID: id, Quantity: qty}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got),
		append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}
