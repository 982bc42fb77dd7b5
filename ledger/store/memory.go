// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the four relations in maps and enforces the same foreign
// keys and cascades as the SQL store.
type Memory struct {
	mu    sync.RWMutex
	state *memState
}

type lineKey struct {
	ItemID     ledger.ItemID
	PurchaseID ledger.PurchaseID
}

type memState struct {
	items     map[ledger.ItemID]ledger.Item
	stock     map[ledger.StockID]ledger.Stock
	purchases map[ledger.PurchaseID]ledger.Purchase // Lines kept in lines
	lines     map[lineKey]ledger.PurchaseLine
	order     map[ledger.PurchaseID][]ledger.ItemID // line insertion order

	nextItem     ledger.ItemID
	nextStock    ledger.StockID
	nextPurchase ledger.PurchaseID
}

var _ ledger.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		items:     make(map[ledger.ItemID]ledger.Item),
		stock:     make(map[ledger.StockID]ledger.Stock),
		purchases: make(map[ledger.PurchaseID]ledger.Purchase),
		lines:     make(map[lineKey]ledger.PurchaseLine),
		order:     make(map[ledger.PurchaseID][]ledger.ItemID),
	}
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (m *Memory) CreateItem(_ context.Context, item *ledger.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createItem(item)
}

func (m *Memory) GetItem(_ context.Context, id ledger.ItemID) (*ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getItem(id)
}

func (m *Memory) UpdateItem(_ context.Context, item *ledger.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateItem(item)
}

func (m *Memory) DeleteItem(_ context.Context, id ledger.ItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteItem(id)
}

func (m *Memory) ListItems(_ context.Context) ([]ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listItems(), nil
}

func (m *Memory) SearchItems(_ context.Context, query string, limit, offset int) ([]ledger.Item, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, total := m.state.searchItems(query, limit, offset)
	return items, total, nil
}

func (m *Memory) CreateStock(_ context.Context, s *ledger.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createStock(s)
}

func (m *Memory) GetStock(_ context.Context, id ledger.StockID) (*ledger.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getStock(id)
}

func (m *Memory) DeleteStock(_ context.Context, id ledger.StockID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteStock(id)
}

func (m *Memory) ListStock(_ context.Context, itemID ledger.ItemID) ([]ledger.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listStock(itemID), nil
}

// CreatePurchase writes the purchase and its lines atomically: lines are
// validated before anything is stored.
func (m *Memory) CreatePurchase(_ context.Context, p *ledger.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createPurchase(p)
}

func (m *Memory) GetPurchase(_ context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getPurchase(id)
}

func (m *Memory) GetPurchaseByReference(_ context.Context, reference string) (*ledger.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getPurchaseByReference(reference)
}

func (m *Memory) ListPurchases(_ context.Context, w ledger.Window) ([]ledger.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listPurchases(w), nil
}

func (m *Memory) DeletePurchase(_ context.Context, id ledger.PurchaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deletePurchase(id)
}

func (m *Memory) DeletePurchaseLine(_ context.Context, itemID ledger.ItemID, purchaseID ledger.PurchaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deletePurchaseLine(itemID, purchaseID)
}

func (m *Memory) StockTotals(_ context.Context, itemID ledger.ItemID) (ledger.StockTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.stockTotals(itemID), nil
}

func (m *Memory) SalesTotals(_ context.Context, itemID ledger.ItemID, w *ledger.Window) (ledger.SalesTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.salesTotals(itemID, w), nil
}

func (m *Memory) SalesByItem(_ context.Context, w ledger.Window) ([]ledger.ItemSales, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.salesByItem(w), nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txView{s: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// txView runs operations against the state without locking; the lock is
// held by WithTx for the whole callback.
type txView struct {
	s *memState
}

func (v *txView) CreateItem(_ context.Context, item *ledger.Item) error { return v.s.createItem(item) }
func (v *txView) GetItem(_ context.Context, id ledger.ItemID) (*ledger.Item, error) {
	return v.s.getItem(id)
}
func (v *txView) UpdateItem(_ context.Context, item *ledger.Item) error { return v.s.updateItem(item) }
func (v *txView) DeleteItem(_ context.Context, id ledger.ItemID) error  { return v.s.deleteItem(id) }
func (v *txView) ListItems(_ context.Context) ([]ledger.Item, error)    { return v.s.listItems(), nil }
func (v *txView) SearchItems(_ context.Context, query string, limit, offset int) ([]ledger.Item, int, error) {
	items, total := v.s.searchItems(query, limit, offset)
	return items, total, nil
}
func (v *txView) CreateStock(_ context.Context, s *ledger.Stock) error { return v.s.createStock(s) }
func (v *txView) GetStock(_ context.Context, id ledger.StockID) (*ledger.Stock, error) {
	return v.s.getStock(id)
}
func (v *txView) DeleteStock(_ context.Context, id ledger.StockID) error { return v.s.deleteStock(id) }
func (v *txView) ListStock(_ context.Context, itemID ledger.ItemID) ([]ledger.Stock, error) {
	return v.s.listStock(itemID), nil
}
func (v *txView) CreatePurchase(_ context.Context, p *ledger.Purchase) error {
	return v.s.createPurchase(p)
}
func (v *txView) GetPurchase(_ context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	return v.s.getPurchase(id)
}
func (v *txView) GetPurchaseByReference(_ context.Context, reference string) (*ledger.Purchase, error) {
	return v.s.getPurchaseByReference(reference)
}
func (v *txView) ListPurchases(_ context.Context, w ledger.Window) ([]ledger.Purchase, error) {
	return v.s.listPurchases(w), nil
}
func (v *txView) DeletePurchase(_ context.Context, id ledger.PurchaseID) error {
	return v.s.deletePurchase(id)
}
func (v *txView) DeletePurchaseLine(_ context.Context, itemID ledger.ItemID, purchaseID ledger.PurchaseID) error {
	return v.s.deletePurchaseLine(itemID, purchaseID)
}
func (v *txView) StockTotals(_ context.Context, itemID ledger.ItemID) (ledger.StockTotals, error) {
	return v.s.stockTotals(itemID), nil
}
func (v *txView) SalesTotals(_ context.Context, itemID ledger.ItemID, w *ledger.Window) (ledger.SalesTotals, error) {
	return v.s.salesTotals(itemID, w), nil
}
func (v *txView) SalesByItem(_ context.Context, w ledger.Window) ([]ledger.ItemSales, error) {
	return v.s.salesByItem(w), nil
}

// =============================================================================
// STATE OPERATIONS (caller holds the lock)
// =============================================================================

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.order {
		c.order[k] = append([]ledger.ItemID(nil), v...)
	}
	c.nextItem, c.nextStock, c.nextPurchase = s.nextItem, s.nextStock, s.nextPurchase
	return c
}

func (s *memState) createItem(item *ledger.Item) error {
	s.nextItem++
	item.ID = s.nextItem
	s.items[item.ID] = *item
	return nil
}

func (s *memState) getItem(id ledger.ItemID) (*ledger.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, ledger.ErrItemNotFound
	}
	return &item, nil
}

func (s *memState) updateItem(item *ledger.Item) error {
	if _, ok := s.items[item.ID]; !ok {
		return ledger.ErrItemNotFound
	}
	s.items[item.ID] = *item
	return nil
}

func (s *memState) deleteItem(id ledger.ItemID) error {
	if _, ok := s.items[id]; !ok {
		return ledger.ErrItemNotFound
	}
	delete(s.items, id)
	for sid, st := range s.stock {
		if st.ItemID == id {
			delete(s.stock, sid)
		}
	}
	for k := range s.lines {
		if k.ItemID == id {
			s.removeLine(k)
		}
	}
	return nil
}

func (s *memState) listItems() []ledger.Item {
	items := make([]ledger.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sortItems(items)
	return items
}

func (s *memState) searchItems(query string, limit, offset int) ([]ledger.Item, int) {
	q := strings.ToLower(query)
	var matches []ledger.Item
	for _, item := range s.listItems() {
		if strings.Contains(strings.ToLower(item.Name), q) ||
			strings.Contains(strings.ToLower(item.Barcode), q) {
			matches = append(matches, item)
		}
	}
	total := len(matches)
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total
}

func sortItems(items []ledger.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
}

func (s *memState) createStock(st *ledger.Stock) error {
	if _, ok := s.items[st.ItemID]; !ok {
		return ledger.ErrItemNotFound
	}
	s.nextStock++
	st.ID = s.nextStock
	s.stock[st.ID] = *st
	return nil
}

func (s *memState) getStock(id ledger.StockID) (*ledger.Stock, error) {
	st, ok := s.stock[id]
	if !ok {
		return nil, ledger.ErrStockNotFound
	}
	return &st, nil
}

func (s *memState) deleteStock(id ledger.StockID) error {
	if _, ok := s.stock[id]; !ok {
		return ledger.ErrStockNotFound
	}
	delete(s.stock, id)
	return nil
}

func (s *memState) listStock(itemID ledger.ItemID) []ledger.Stock {
	var out []ledger.Stock
	for _, st := range s.stock {
		if st.ItemID == itemID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memState) createPurchase(p *ledger.Purchase) error {
	for _, existing := range s.purchases {
		if existing.Reference == p.Reference {
			return ledger.ErrConflict
		}
	}
	seen := make(map[ledger.ItemID]bool, len(p.Lines))
	for _, l := range p.Lines {
		if _, ok := s.items[l.ItemID]; !ok {
			return ledger.ErrItemNotFound
		}
		if seen[l.ItemID] {
			return ledger.ErrConflict
		}
		seen[l.ItemID] = true
	}

	s.nextPurchase++
	p.ID = s.nextPurchase
	header := *p
	header.Lines = nil
	s.purchases[p.ID] = header
	for i := range p.Lines {
		p.Lines[i].PurchaseID = p.ID
		s.lines[lineKey{ItemID: p.Lines[i].ItemID, PurchaseID: p.ID}] = p.Lines[i]
		s.order[p.ID] = append(s.order[p.ID], p.Lines[i].ItemID)
	}
	return nil
}

func (s *memState) withLines(p ledger.Purchase) ledger.Purchase {
	p.Lines = []ledger.PurchaseLine{}
	for _, itemID := range s.order[p.ID] {
		if l, ok := s.lines[lineKey{ItemID: itemID, PurchaseID: p.ID}]; ok {
			p.Lines = append(p.Lines, l)
		}
	}
	return p
}

func (s *memState) getPurchase(id ledger.PurchaseID) (*ledger.Purchase, error) {
	p, ok := s.purchases[id]
	if !ok {
		return nil, ledger.ErrPurchaseNotFound
	}
	p = s.withLines(p)
	return &p, nil
}

func (s *memState) getPurchaseByReference(reference string) (*ledger.Purchase, error) {
	for _, p := range s.purchases {
		if p.Reference == reference {
			p = s.withLines(p)
			return &p, nil
		}
	}
	return nil, ledger.ErrPurchaseNotFound
}

func (s *memState) listPurchases(w ledger.Window) []ledger.Purchase {
	var out []ledger.Purchase
	for _, p := range s.purchases {
		if w.Contains(p.AddedOn) {
			out = append(out, s.withLines(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedOn.Equal(out[j].AddedOn) {
			return out[i].AddedOn.Before(out[j].AddedOn)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memState) deletePurchase(id ledger.PurchaseID) error {
	if _, ok := s.purchases[id]; !ok {
		return ledger.ErrPurchaseNotFound
	}
	for _, itemID := range s.order[id] {
		delete(s.lines, lineKey{ItemID: itemID, PurchaseID: id})
	}
	delete(s.order, id)
	delete(s.purchases, id)
	return nil
}

func (s *memState) deletePurchaseLine(itemID ledger.ItemID, purchaseID ledger.PurchaseID) error {
	k := lineKey{ItemID: itemID, PurchaseID: purchaseID}
	if _, ok := s.lines[k]; !ok {
		return ledger.ErrNotFound
	}
	s.removeLine(k)
	return nil
}

func (s *memState) removeLine(k lineKey) {
	delete(s.lines, k)
	ids := s.order[k.PurchaseID]
	for i, id := range ids {
		if id == k.ItemID {
			s.order[k.PurchaseID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

func (s *memState) stockTotals(itemID ledger.ItemID) ledger.StockTotals {
	t := ledger.StockTotals{Cost: decimal.Zero}
	for _, st := range s.stock {
		if st.ItemID != itemID {
			continue
		}
		t.Quantity += st.Quantity
		if st.Cost.Valid {
			t.Cost = t.Cost.Add(st.Cost.Decimal)
		}
	}
	return t
}

func (s *memState) salesTotals(itemID ledger.ItemID, w *ledger.Window) ledger.SalesTotals {
	t := ledger.SalesTotals{Total: decimal.Zero}
	for k, l := range s.lines {
		if k.ItemID != itemID {
			continue
		}
		if w != nil && !w.Contains(s.purchases[k.PurchaseID].AddedOn) {
			continue
		}
		t.Quantity += l.Quantity
		t.Total = t.Total.Add(l.Total)
	}
	return t
}

func (s *memState) salesByItem(w ledger.Window) []ledger.ItemSales {
	byItem := make(map[ledger.ItemID]*ledger.ItemSales)
	for k, l := range s.lines {
		if !w.Contains(s.purchases[k.PurchaseID].AddedOn) {
			continue
		}
		row, ok := byItem[k.ItemID]
		if !ok {
			row = &ledger.ItemSales{ItemID: k.ItemID, Total: decimal.Zero}
			byItem[k.ItemID] = row
		}
		row.Quantity += l.Quantity
		row.Total = row.Total.Add(l.Total)
	}

	out := make([]ledger.ItemSales, 0, len(byItem))
	for _, row := range byItem {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
