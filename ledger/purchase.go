/*
purchase.go - Atomic purchase recording

PURPOSE:
  Turns a basket of {item, quantity} lines into one committed Purchase.
  Either the purchase and all of its lines are stored, or nothing is.

REQUEST FLOW:
  1. Validate the request shape (quantities, discounts, duplicates)
  2. Open a store transaction
  3. For each line in input order: load the item, snapshot its current
     price, compute quantity × price, accumulate the grand total
  4. Optionally check available stock (StrictStock)
  5. Assign a reference token and write purchase + lines
  6. Commit

PRICE SNAPSHOT:
  The line keeps the price read in step 3. Later price changes on the item
  never alter committed lines.

OVERSELLING:
  Prices are read without locking the item and available stock is not
  checked unless StrictStock is set, so two concurrent purchases can take
  in_stock below zero. StrictStock performs the check inside the same
  transaction as the commit.

RETRIES:
  A commit that fails with ErrConflict is retried up to Retries times.
  Every attempt re-reads items, so the price snapshot is fresh.
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPurchaseRetries is the number of extra attempts after a conflict.
const DefaultPurchaseRetries = 3

// LineRequest is one requested line of a purchase.
type LineRequest struct {
	ItemID   ItemID
	Quantity int
	Discount decimal.Decimal
}

// PurchaseRequest is the input of RecordPurchase. Totals are always
// computed, never taken from the request.
type PurchaseRequest struct {
	Lines    []LineRequest
	Discount decimal.Decimal
}

// Processor records purchases.
type Processor struct {
	store     TxStore
	now       func() time.Time
	reference ReferenceGenerator

	// Retries is the number of extra attempts after ErrConflict.
	Retries int

	// StrictStock rejects lines that exceed the item's in_stock.
	StrictStock bool
}

// NewProcessor creates a processor over store.
func NewProcessor(store TxStore, reference ReferenceGenerator) *Processor {
	return &Processor{
		store:     store,
		now:       time.Now,
		reference: reference,
		Retries:   DefaultPurchaseRetries,
	}
}

// RecordPurchase validates req and commits it as one purchase.
func (p *Processor) RecordPurchase(ctx context.Context, req PurchaseRequest) (*Purchase, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return nil, err
	}
	if err := validateFraction("discount", req.Discount); err != nil {
		return nil, err
	}

	var purchase *Purchase
	for attempt := 0; ; attempt++ {
		purchase, err = p.record(ctx, caller, lines, req.Discount)
		if err == nil || !IsRetryable(err) || attempt >= p.Retries {
			break
		}
		if ctx.Err() != nil {
			return nil, errors.Join(err, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func (p *Processor) record(ctx context.Context, caller Caller, lines []LineRequest, discount decimal.Decimal) (*Purchase, error) {
	purchase := &Purchase{
		Discount:  discount,
		Total:     decimal.Zero,
		CreatedBy: caller.Name,
		Lines:     make([]PurchaseLine, 0, len(lines)),
	}

	err := p.store.WithTx(ctx, func(s Store) error {
		total := decimal.Zero
		for _, req := range lines {
			item, err := s.GetItem(ctx, req.ItemID)
			if errors.Is(err, ErrItemNotFound) {
				return &ItemNotFoundError{ItemID: req.ItemID}
			}
			if err != nil {
				return err
			}

			if p.StrictStock {
				if err := checkStock(ctx, s, req); err != nil {
					return err
				}
			}

			line := PurchaseLine{
				ItemID:   item.ID,
				Price:    item.Price,
				Discount: req.Discount,
				Quantity: req.Quantity,
				Total:    lineTotal(item.Price, req.Quantity),
			}
			total = total.Add(line.Total)
			purchase.Lines = append(purchase.Lines, line)
		}

		purchase.Total = total
		purchase.Reference = p.reference()
		purchase.AddedOn = p.now().UTC()
		return s.CreatePurchase(ctx, purchase)
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func checkStock(ctx context.Context, s Store, req LineRequest) error {
	stock, err := s.StockTotals(ctx, req.ItemID)
	if err != nil {
		return err
	}
	sales, err := s.SalesTotals(ctx, req.ItemID, nil)
	if err != nil {
		return err
	}
	available := stock.Quantity - sales.Quantity
	if req.Quantity > available {
		return &InsufficientStockError{ItemID: req.ItemID, Available: available, Requested: req.Quantity}
	}
	return nil
}

// GetPurchase returns the committed purchase with the given reference.
func (p *Processor) GetPurchase(ctx context.Context, reference string) (*Purchase, error) {
	return p.store.GetPurchaseByReference(ctx, reference)
}

// ListPurchases returns the purchases recorded inside w, oldest first.
func (p *Processor) ListPurchases(ctx context.Context, w Window) ([]Purchase, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return p.store.ListPurchases(ctx, w.UTC())
}

// normalizeLines validates every line and merges repeated items into the
// first occurrence, keeping input order.
func normalizeLines(in []LineRequest) ([]LineRequest, error) {
	out := make([]LineRequest, 0, len(in))
	index := make(map[ItemID]int, len(in))
	for _, l := range in {
		if l.ItemID <= 0 {
			return nil, invalid("item_id", "is required")
		}
		if l.Quantity <= 0 {
			return nil, invalid("quantity", "must be a positive integer")
		}
		if err := validateFraction("discount", l.Discount); err != nil {
			return nil, err
		}

		i, seen := index[l.ItemID]
		if !seen {
			index[l.ItemID] = len(out)
			out = append(out, l)
			continue
		}
		if !out[i].Discount.Equal(l.Discount) {
			return nil, invalid("discount", "conflicting discounts for the same item")
		}
		out[i].Quantity += l.Quantity
	}
	return out, nil
}

func validateFraction(field string, d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return invalid(field, "must be between 0 and 1")
	}
	return nil
}
