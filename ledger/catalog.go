/*
catalog.go - Item and stock management

PURPOSE:
  Creates, updates and deletes catalog items and their stock batches, and
  serves the item listing and search used by the till and the back office.

RULES:
  - Item name is required (non-blank), price is required and non-negative.
    Names are not unique; barcodes are not unique.
  - Only name, price and barcode can be changed after creation.
  - A stock batch needs an existing item, a positive quantity and positive
    batch and per-item costs. Batches are never edited, only deleted.
  - Deleting an item removes its stock batches and purchase lines.

All writes require a Caller in the context and validate their input before
opening a store transaction. Reads that need more than one query (search
count and page, item check and batches) share one transaction.
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NewItem is the input of CreateItem. Price is nullable so that a missing
// price can be told apart from a zero price.
type NewItem struct {
	Name    string
	Price   decimal.NullDecimal
	Barcode string
}

// ItemPatch lists the updatable item fields. Nil fields are left as is.
type ItemPatch struct {
	Name    *string
	Price   *decimal.Decimal
	Barcode *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && p.Barcode == nil
}

// NewStock is the input of AddStock.
type NewStock struct {
	ItemID      ItemID
	Quantity    int
	Cost        decimal.NullDecimal
	PerItemCost decimal.NullDecimal
}

// Catalog manages items and stock batches.
type Catalog struct {
	store TxStore
	now   func() time.Time
}

// NewCatalog creates a catalog over store.
func NewCatalog(store TxStore) *Catalog {
	return &Catalog{store: store, now: time.Now}
}

// =============================================================================
// ITEMS
// =============================================================================

// CreateItem validates and inserts a new item.
func (c *Catalog) CreateItem(ctx context.Context, in NewItem) (*Item, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !in.Price.Valid {
		return nil, invalid("price", "is required")
	}
	if err := validatePrice(in.Price.Decimal); err != nil {
		return nil, err
	}

	item := &Item{
		Name:    name,
		Price:   in.Price.Decimal,
		Barcode: strings.TrimSpace(in.Barcode),
		AddedOn: c.now().UTC(),
	}
	if err := c.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem applies patch to the item with the given id.
func (c *Catalog) UpdateItem(ctx context.Context, id ItemID, patch ItemPatch) (*Item, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
	}

	var updated *Item
	err := c.store.WithTx(ctx, func(s Store) error {
		item, err := s.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			updated = item
			return nil
		}
		if patch.Name != nil {
			item.Name = *patch.Name
		}
		if patch.Price != nil {
			item.Price = *patch.Price
		}
		if patch.Barcode != nil {
			item.Barcode = strings.TrimSpace(*patch.Barcode)
		}
		if err := s.UpdateItem(ctx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteItem removes an item with its stock batches and purchase lines.
func (c *Catalog) DeleteItem(ctx context.Context, id ItemID) error {
	if _, err := requireCaller(ctx); err != nil {
		return err
	}
	return c.store.DeleteItem(ctx, id)
}

// GetItem returns a single item.
func (c *Catalog) GetItem(ctx context.Context, id ItemID) (*Item, error) {
	return c.store.GetItem(ctx, id)
}

// ListItems returns every item ordered by name.
func (c *Catalog) ListItems(ctx context.Context) ([]Item, error) {
	return c.store.ListItems(ctx)
}

// SearchItems returns one page of items whose name or barcode contains
// query, ignoring case. An empty query matches every item. Pages past the
// end come back empty.
func (c *Catalog) SearchItems(ctx context.Context, query string, req PageRequest) (*Page[Item], error) {
	req = req.normalize()
	var (
		items []Item
		total int
	)
	err := c.store.WithTx(ctx, func(s Store) error {
		var err error
		items, total, err = s.SearchItems(ctx, strings.TrimSpace(query), req.Size, req.offset())
		return err
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return &Page[Item]{Items: items, Number: req.Number, Size: req.Size, Total: total}, nil
}

// =============================================================================
// STOCK
// =============================================================================

// AddStock records a received batch for an existing item.
func (c *Catalog) AddStock(ctx context.Context, in NewStock) (*Stock, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}
	if err := validateStock(in); err != nil {
		return nil, err
	}

	stock := &Stock{
		ItemID:      in.ItemID,
		Cost:        in.Cost,
		PerItemCost: in.PerItemCost,
		Quantity:    in.Quantity,
		AddedOn:     c.now().UTC(),
	}
	err := c.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetItem(ctx, in.ItemID); err != nil {
			return err
		}
		return s.CreateStock(ctx, stock)
	})
	if err != nil {
		return nil, err
	}
	return stock, nil
}

// DeleteStock hard-deletes one batch. The owning item is untouched.
func (c *Catalog) DeleteStock(ctx context.Context, id StockID) error {
	if _, err := requireCaller(ctx); err != nil {
		return err
	}
	return c.store.DeleteStock(ctx, id)
}

// ListStock returns the batches received for an item, oldest first.
func (c *Catalog) ListStock(ctx context.Context, itemID ItemID) ([]Stock, error) {
	var batches []Stock
	err := c.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetItem(ctx, itemID); err != nil {
			return err
		}
		var err error
		batches, err = s.ListStock(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateName(name string) error {
	if name == "" {
		return invalid("name", "is required")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	return nil
}

func validateStock(in NewStock) error {
	if in.ItemID <= 0 {
		return invalid("item_id", "is required")
	}
	if in.Quantity <= 0 {
		return invalid("quantity", "must be a positive integer")
	}
	if !in.Cost.Valid || in.Cost.Decimal.IsZero() {
		return invalid("cost", "is required")
	}
	if in.Cost.Decimal.IsNegative() {
		return invalid("cost", "must be positive")
	}
	if !in.PerItemCost.Valid || in.PerItemCost.Decimal.IsZero() {
		return invalid("per_item_cost", "is required")
	}
	if in.PerItemCost.Decimal.IsNegative() {
		return invalid("per_item_cost", "must be positive")
	}
	return nil
}
