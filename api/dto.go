/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are serialized as exact decimal strings, padded to two places
  ("12.50") but never rounded ("0.125" stays "0.125"), with a *_display
  companion rounded and formatted in the configured currency ("₱0.13").
  Request amounts accept a JSON number or a decimal string.

VALIDATION:
  Presence and range checks are done by the ledger, not by DTOs. DTOs only
  decode; Quantity additionally rejects non-integer input.
*/
package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-ledger/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateItemRequest is the request to create an item.
type CreateItemRequest struct {
	Name    string              `json:"name"`
	Price   decimal.NullDecimal `json:"price"`
	Barcode string              `json:"barcode"`
}

// UpdateItemRequest is the request to change an item. Only these three
// keys are accepted; unknown keys are rejected by the decoder.
type UpdateItemRequest struct {
	Name    *string          `json:"name"`
	Price   *decimal.Decimal `json:"price"`
	Barcode *string          `json:"barcode"`
}

// AddStockRequest records a received batch for the item in the URL.
type AddStockRequest struct {
	Quantity    Quantity            `json:"quantity"`
	Cost        decimal.NullDecimal `json:"cost"`
	PerItemCost decimal.NullDecimal `json:"per_item_cost"`
}

// RecordPurchaseRequest is a basket to be committed as one purchase.
type RecordPurchaseRequest struct {
	Items    []PurchaseItemRequest `json:"items"`
	Discount decimal.Decimal       `json:"discount"`
}

// PurchaseItemRequest is one line of a basket.
type PurchaseItemRequest struct {
	ItemID   int64           `json:"item_id"`
	Quantity Quantity        `json:"quantity"`
	Discount decimal.Decimal `json:"discount"`
}

// Quantity decodes a JSON integer or a string holding one ("3"). Anything
// else, including fractions, is a decode error.
type Quantity int

func (q *Quantity) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("quantity must be an integer, got %s", b)
	}
	*q = Quantity(n)
	return nil
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ItemDTO represents an item in API responses.
type ItemDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	PriceDisplay string `json:"price_display"`
	Barcode      string `json:"barcode,omitempty"`
	AddedOn      string `json:"added_on"`
}

// ItemDetailDTO is an item with its derived metrics.
type ItemDetailDTO struct {
	ItemDTO
	Metrics ItemMetricsDTO `json:"metrics"`
}

// ItemMetricsDTO carries every per-item metric.
type ItemMetricsDTO struct {
	TotalStock       int    `json:"total_stock"`
	TotalPurchased   int    `json:"total_purchased"`
	InStock          int    `json:"in_stock"`
	StockCost        string `json:"stock_cost"`
	TotalSold        string `json:"total_sold"`
	Revenue          string `json:"revenue"`
	StockCostDisplay string `json:"stock_cost_display"`
	TotalSoldDisplay string `json:"total_sold_display"`
	RevenueDisplay   string `json:"revenue_display"`
}

// ItemPageDTO is one page of a search.
type ItemPageDTO struct {
	Items    []ItemDTO `json:"items"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Total    int       `json:"total"`
	Pages    int       `json:"pages"`
	HasNext  bool      `json:"has_next"`
	HasPrev  bool      `json:"has_prev"`
}

// StockDTO represents a received batch.
type StockDTO struct {
	ID          int64   `json:"id"`
	ItemID      int64   `json:"item_id"`
	Cost        *string `json:"cost"`
	PerItemCost *string `json:"per_item_cost"`
	Quantity    int     `json:"quantity"`
	AddedOn     string  `json:"added_on"`
}

// PurchaseDTO is a committed purchase (a receipt).
type PurchaseDTO struct {
	ID                     int64             `json:"id"`
	Reference              string            `json:"reference"`
	Discount               string            `json:"discount"`
	Total                  string            `json:"total"`
	DiscountedTotal        string            `json:"discounted_total"`
	TotalDisplay           string            `json:"total_display"`
	DiscountedTotalDisplay string            `json:"discounted_total_display"`
	CreatedBy              string            `json:"created_by,omitempty"`
	AddedOn                string            `json:"added_on"`
	Lines                  []PurchaseLineDTO `json:"lines"`
}

// PurchaseLineDTO is one line of a receipt.
type PurchaseLineDTO struct {
	ItemID          int64  `json:"item_id"`
	Price           string `json:"price"`
	Discount        string `json:"discount"`
	Quantity        int    `json:"quantity"`
	Total           string `json:"total"`
	DiscountedTotal string `json:"discounted_total"`
}

// BestSellerDTO is the answer of a ranking query. Item is null when nothing
// was sold in the window.
type BestSellerDTO struct {
	Item         *ItemDTO `json:"item"`
	Quantity     int      `json:"quantity"`
	Total        string   `json:"total"`
	TotalDisplay string   `json:"total_display"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
}

// SoldInWindowDTO is the quantity of one item sold in a window.
type SoldInWindowDTO struct {
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (h *Handler) itemDTO(item ledger.Item) ItemDTO {
	return ItemDTO{
		ID:           int64(item.ID),
		Name:         item.Name,
		Price:        amountString(item.Price),
		PriceDisplay: ledger.FormatMoney(item.Price, h.Currency),
		Barcode:      item.Barcode,
		AddedOn:      item.AddedOn.Format(time.RFC3339),
	}
}

func (h *Handler) itemDTOs(items []ledger.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = h.itemDTO(item)
	}
	return dtos
}

func (h *Handler) metricsDTO(m *ledger.ItemMetrics) ItemMetricsDTO {
	return ItemMetricsDTO{
		TotalStock:       m.TotalStock,
		TotalPurchased:   m.TotalPurchased,
		InStock:          m.InStock,
		StockCost:        amountString(m.StockCost),
		TotalSold:        amountString(m.TotalSold),
		Revenue:          amountString(m.Revenue),
		StockCostDisplay: ledger.FormatMoney(m.StockCost, h.Currency),
		TotalSoldDisplay: ledger.FormatMoney(m.TotalSold, h.Currency),
		RevenueDisplay:   ledger.FormatMoney(m.Revenue, h.Currency),
	}
}

func stockDTO(s ledger.Stock) StockDTO {
	return StockDTO{
		ID:          int64(s.ID),
		ItemID:      int64(s.ItemID),
		Cost:        nullDecimalString(s.Cost),
		PerItemCost: nullDecimalString(s.PerItemCost),
		Quantity:    s.Quantity,
		AddedOn:     s.AddedOn.Format(time.RFC3339),
	}
}

func (h *Handler) purchaseDTO(p ledger.Purchase) PurchaseDTO {
	lines := make([]PurchaseLineDTO, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = PurchaseLineDTO{
			ItemID:          int64(l.ItemID),
			Price:           amountString(l.Price),
			Discount:        l.Discount.String(),
			Quantity:        l.Quantity,
			Total:           amountString(l.Total),
			DiscountedTotal: amountString(l.DiscountedTotal()),
		}
	}
	return PurchaseDTO{
		ID:                     int64(p.ID),
		Reference:              p.Reference,
		Discount:               p.Discount.String(),
		Total:                  amountString(p.Total),
		DiscountedTotal:        amountString(p.DiscountedTotal()),
		TotalDisplay:           ledger.FormatMoney(p.Total, h.Currency),
		DiscountedTotalDisplay: ledger.FormatMoney(p.DiscountedTotal(), h.Currency),
		CreatedBy:              p.CreatedBy,
		AddedOn:                p.AddedOn.Format(time.RFC3339),
		Lines:                  lines,
	}
}

func (h *Handler) bestSellerDTO(b *ledger.BestSeller) BestSellerDTO {
	dto := BestSellerDTO{
		Quantity:     b.Quantity,
		Total:        amountString(b.Total),
		TotalDisplay: ledger.FormatMoney(b.Total, h.Currency),
		Start:        b.Window.Start.Format(time.RFC3339),
		End:          b.Window.End.Format(time.RFC3339),
	}
	if b.Item != nil {
		item := h.itemDTO(*b.Item)
		dto.Item = &item
	}
	return dto
}

func nullDecimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := amountString(d.Decimal)
	return &s
}

// amountString pads to two decimals without rounding away precision.
func amountString(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}
