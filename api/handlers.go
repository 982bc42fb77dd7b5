/*
handlers.go - HTTP API handlers for the point-of-sale ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the catalog, purchase processor and
  metrics engine.

ENDPOINTS:
  Items:
    GET    /api/v1/items                 List all items (name order)
    POST   /api/v1/items                 Create item
    GET    /api/v1/items/search?q=&page= Search by name or barcode
    GET    /api/v1/items/{id}            Item with metrics
    PUT    /api/v1/items/{id}            Partial update (name, price, barcode)
    DELETE /api/v1/items/{id}            Delete item, its stock and its lines
    GET    /api/v1/catalog?q=&page=      Browse page (larger page size)

  Stock:
    GET    /api/v1/items/{id}/stock      Batches of an item
    POST   /api/v1/items/{id}/stock      Record a received batch
    DELETE /api/v1/stock/{id}            Remove a batch

  Purchases:
    POST   /api/v1/purchases             Checkout
    GET    /api/v1/purchases?start=&end= Purchases in a window
    GET    /api/v1/purchases/{reference} Receipt lookup

  Reports:
    GET    /api/v1/items/{id}/sold?start=&end=  Quantity sold in a window
    GET    /api/v1/reports/most-sales?start=&end=
    GET    /api/v1/reports/most-sold?start=&end=

WINDOWS:
  start and end accept RFC 3339 timestamps or plain dates (2024-03-01).
  A plain end date covers the whole day. A missing start is end minus the
  ranking window; a missing end is now.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: No authenticated caller
  - 404: Item, stock batch or purchase not found
  - 409: Store conflict after retries, insufficient stock
  - 503: Request deadline exceeded
  - 500: Internal errors (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/pos-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog   *ledger.Catalog
	Processor *ledger.Processor
	Metrics   *ledger.Metrics

	Currency       string
	SearchPageSize int
	BrowsePageSize int

	Logger *slog.Logger
	now    func() time.Time
}

// Options tunes a Handler. Zero values fall back to defaults.
type Options struct {
	Currency        string
	SearchPageSize  int
	BrowsePageSize  int
	RankingWindow   time.Duration
	PurchaseRetries *int
	StrictStock     bool
	Logger          *slog.Logger
}

// NewHandler wires the ledger services over store.
func NewHandler(store ledger.TxStore, opts Options) (*Handler, error) {
	reference, err := ledger.NewReferenceGenerator()
	if err != nil {
		return nil, fmt.Errorf("creating reference generator: %w", err)
	}

	processor := ledger.NewProcessor(store, reference)
	processor.StrictStock = opts.StrictStock
	if opts.PurchaseRetries != nil {
		processor.Retries = *opts.PurchaseRetries
	}

	metrics := ledger.NewMetrics(store)
	if opts.RankingWindow > 0 {
		metrics.RankingWindow = opts.RankingWindow
	}

	h := &Handler{
		Catalog:        ledger.NewCatalog(store),
		Processor:      processor,
		Metrics:        metrics,
		Currency:       opts.Currency,
		SearchPageSize: opts.SearchPageSize,
		BrowsePageSize: opts.BrowsePageSize,
		Logger:         opts.Logger,
		now:            time.Now,
	}
	if h.Currency == "" {
		h.Currency = ledger.DefaultCurrency
	}
	if h.SearchPageSize <= 0 {
		h.SearchPageSize = 10
	}
	if h.BrowsePageSize <= 0 {
		h.BrowsePageSize = 20
	}
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	return h, nil
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// ListItems returns all items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.ListItems(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list items", err)
		return
	}
	writeJSON(w, http.StatusOK, h.itemDTOs(items))
}

// CreateItem creates a new item.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	item, err := h.Catalog.CreateItem(r.Context(), ledger.NewItem{
		Name:    req.Name,
		Price:   req.Price,
		Barcode: req.Barcode,
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.itemDTO(*item))
}

// GetItem returns an item together with its metrics.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID", err)
		return
	}

	item, err := h.Catalog.GetItem(r.Context(), ledger.ItemID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Item not found", err)
		return
	}
	summary, err := h.Metrics.Summary(r.Context(), item.ID)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute metrics", err)
		return
	}

	writeJSON(w, http.StatusOK, ItemDetailDTO{
		ItemDTO: h.itemDTO(*item),
		Metrics: h.metricsDTO(summary),
	})
}

// UpdateItem applies a partial update.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID", err)
		return
	}

	var req UpdateItemRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	item, err := h.Catalog.UpdateItem(r.Context(), ledger.ItemID(id), ledger.ItemPatch{
		Name:    req.Name,
		Price:   req.Price,
		Barcode: req.Barcode,
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to update item", err)
		return
	}
	writeJSON(w, http.StatusOK, h.itemDTO(*item))
}

// DeleteItem removes an item with its stock and purchase lines.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID", err)
		return
	}

	if err := h.Catalog.DeleteItem(r.Context(), ledger.ItemID(id)); err != nil {
		h.writeLedgerError(w, r, "Failed to delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchItems serves the search box: small pages.
func (h *Handler) SearchItems(w http.ResponseWriter, r *http.Request) {
	h.searchItems(w, r, h.SearchPageSize)
}

// BrowseCatalog serves the till's catalog view: larger pages.
func (h *Handler) BrowseCatalog(w http.ResponseWriter, r *http.Request) {
	h.searchItems(w, r, h.BrowsePageSize)
}

func (h *Handler) searchItems(w http.ResponseWriter, r *http.Request, size int) {
	number := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid page", fmt.Errorf("page must be a positive integer, got %q", raw))
			return
		}
		number = n
	}

	page, err := h.Catalog.SearchItems(r.Context(), r.URL.Query().Get("q"), ledger.PageRequest{Number: number, Size: size})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to search items", err)
		return
	}

	writeJSON(w, http.StatusOK, ItemPageDTO{
		Items:    h.itemDTOs(page.Items),
		Page:     page.Number,
		PageSize: page.Size,
		Total:    page.Total,
		Pages:    page.Pages(),
		HasNext:  page.HasNext(),
		HasPrev:  page.HasPrev(),
	})
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// ListStock returns the batches of an item.
func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID", err)
		return
	}

	batches, err := h.Catalog.ListStock(r.Context(), ledger.ItemID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list stock", err)
		return
	}

	dtos := make([]StockDTO, len(batches))
	for i, s := range batches {
		dtos[i] = stockDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddStock records a received batch.
func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID", err)
		return
	}

	var req AddStockRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	stock, err := h.Catalog.AddStock(r.Context(), ledger.NewStock{
		ItemID:      ledger.ItemID(id),
		Quantity:    int(req.Quantity),
		Cost:        req.Cost,
		PerItemCost: req.PerItemCost,
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to add stock", err)
		return
	}
	writeJSON(w, http.StatusCreated, stockDTO(*stock))
}

// DeleteStock removes a batch.
func (h *Handler) DeleteStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stock ID", err)
		return
	}

	if err := h.Catalog.DeleteStock(r.Context(), ledger.StockID(id)); err != nil {
		h.writeLedgerError(w, r, "Failed to delete stock", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// RecordPurchase commits a basket as one purchase.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req RecordPurchaseRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lines := make([]ledger.LineRequest, len(req.Items))
	for i, item := range req.Items {
		lines[i] = ledger.LineRequest{
			ItemID:   ledger.ItemID(item.ItemID),
			Quantity: int(item.Quantity),
			Discount: item.Discount,
		}
	}

	purchase, err := h.Processor.RecordPurchase(r.Context(), ledger.PurchaseRequest{
		Lines:    lines,
		Discount: req.Discount,
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to record purchase", err)
		return
	}

	h.Logger.InfoContext(r.Context(), "purchase recorded",
		slog.String("reference", purchase.Reference),
		slog.Int("lines", len(purchase.Lines)),
		slog.String("total", purchase.Total.String()),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	writeJSON(w, http.StatusCreated, h.purchaseDTO(*purchase))
}

// GetPurchase looks a receipt up by its reference.
func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := h.Processor.GetPurchase(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.writeLedgerError(w, r, "Purchase not found", err)
		return
	}
	writeJSON(w, http.StatusOK, h.purchaseDTO(*purchase))
}

// ListPurchases returns the purchases in a window (default: ranking window).
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	window, err := h.windowOrDefault(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	purchases, err := h.Processor.ListPurchases(r.Context(), window)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list purchases", err)
		return
	}

	dtos := make([]PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = h.purchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// SoldInWindow returns the quantity of one item sold in a window.
func (h *Handler) SoldInWindow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID", err)
		return
	}
	window, err := h.windowOrDefault(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	qty, err := h.Metrics.SoldInWindow(r.Context(), ledger.ItemID(id), window)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute sold quantity", err)
		return
	}

	writeJSON(w, http.StatusOK, SoldInWindowDTO{
		ItemID:   id,
		Quantity: qty,
		Start:    window.Start.UTC().Format(time.RFC3339),
		End:      window.End.UTC().Format(time.RFC3339),
	})
}

// MostSales returns the item with the largest sales total in the window.
func (h *Handler) MostSales(w http.ResponseWriter, r *http.Request) {
	h.bestSeller(w, r, h.Metrics.MostSales)
}

// MostSold returns the item with the largest quantity sold in the window.
func (h *Handler) MostSold(w http.ResponseWriter, r *http.Request) {
	h.bestSeller(w, r, h.Metrics.MostSold)
}

func (h *Handler) bestSeller(w http.ResponseWriter, r *http.Request, rank func(context.Context, *ledger.Window) (*ledger.BestSeller, error)) {
	window, err := h.parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	best, err := rank(r.Context(), window)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to rank items", err)
		return
	}
	writeJSON(w, http.StatusOK, h.bestSellerDTO(best))
}

// =============================================================================
// HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

// parseWindow reads start and end. It returns nil when neither is given.
func (h *Handler) parseWindow(r *http.Request) (*ledger.Window, error) {
	q := r.URL.Query()
	rawStart, rawEnd := q.Get("start"), q.Get("end")
	if rawStart == "" && rawEnd == "" {
		return nil, nil
	}

	end := h.now().UTC()
	if rawEnd != "" {
		t, err := parseTimeParam("end", rawEnd, true)
		if err != nil {
			return nil, err
		}
		end = t
	}

	start := end.Add(-h.Metrics.RankingWindow)
	if rawStart != "" {
		t, err := parseTimeParam("start", rawStart, false)
		if err != nil {
			return nil, err
		}
		start = t
	}

	w := ledger.Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

func (h *Handler) windowOrDefault(r *http.Request) (ledger.Window, error) {
	w, err := h.parseWindow(r)
	if err != nil {
		return ledger.Window{}, err
	}
	if w == nil {
		return ledger.WindowEndingAt(h.now().UTC(), h.Metrics.RankingWindow), nil
	}
	return *w, nil
}

// parseTimeParam accepts RFC 3339 or a date. A date used as an end bound
// covers the whole day.
func parseTimeParam(field, raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("expected RFC 3339 or YYYY-MM-DD, got %q", raw),
		}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func pathID(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// writeLedgerError maps ledger errors to HTTP statuses. Unexpected errors
// are logged and reported as 500.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Unauthenticated", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrInsufficientStock), ledger.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "Request timed out", nil)
	default:
		h.Logger.ErrorContext(r.Context(), message,
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
