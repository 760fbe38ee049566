package cart

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a cart line can hold, in memory and in
// persisted blobs alike.
const MaxQuantity = math.MaxInt32

// Item is a single cart entry keyed by name. Quantity is always >= 1 while the
// item is in a store.
type Item struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Line is an item as shown in the order summary.
type Line struct {
	Item
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Totals aggregates the cart.
type Totals struct {
	ItemCount int             `json:"itemCount"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

// Snapshot is the state handed to change listeners and renderers.
type Snapshot struct {
	Items  []Line `json:"items"`
	Totals Totals `json:"totals"`
	// Active is the most recently added item, highlighted by renderers.
	Active string `json:"active,omitempty"`
	// Empty is true when the order total is zero; renderers then show the
	// empty-cart placeholder instead of a summary.
	Empty bool `json:"empty"`
}

// ComputeTotals sums quantities and costs over items.
func ComputeTotals(items []Item) Totals {
	totals := Totals{TotalCost: decimal.Zero}
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		totals.ItemCount = addCount(totals.ItemCount, it.Quantity)
		totals.TotalCost = totals.TotalCost.Add(it.Subtotal())
	}
	return totals
}

// addQuantity applies delta to a line quantity in [1, MaxQuantity], saturating
// at MaxQuantity. Results <= 0 mean the line goes away.
func addQuantity(q, delta int) int {
	if delta > 0 && q > MaxQuantity-delta {
		return MaxQuantity
	}
	return q + delta
}

func addCount(total, n int) int {
	if n > 0 && total > math.MaxInt-n {
		return math.MaxInt
	}
	return total + n
}
