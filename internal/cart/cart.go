package cart

import (
	"errors"
	"slices"

	"github.com/shopspring/decimal"
)

// Quantity bounds enforced on every edit before it is sent.
const (
	MinQuantity = 1
	MaxQuantity = 10
)

// ErrItemNotFound is returned when a row-scoped update names a product that
// is not in the snapshot.
var ErrItemNotFound = errors.New("cart item not found")

// Item is one row of the cart as the server last described it.
type Item struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image_ref,omitempty"`
}

// Subtotal is the row preview shown next to the quantity control.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Snapshot is the client's view of the cart. Items keep server order.
type Snapshot struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Totals is the pair of authoritative values every mutating response carries.
type Totals struct {
	Total decimal.Decimal
	Count int
}

// Clone returns a deep copy safe to hand to readers.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Total: s.Total, Count: s.Count}
	if s.Items != nil {
		out.Items = slices.Clone(s.Items)
	}
	return out
}

// Find returns the row for productID.
func (s Snapshot) Find(productID int64) (Item, bool) {
	if i := s.index(productID); i >= 0 {
		return s.Items[i], true
	}
	return Item{}, false
}

// Empty reports whether the cart should render its empty state.
func (s Snapshot) Empty() bool {
	return s.Count == 0
}

// Consistent reports whether Total and Count match the rows. It holds after
// a full reload from a well-behaved server; row patches keep it only when the
// server's totals agree with the local preview.
func (s Snapshot) Consistent() bool {
	total := decimal.Zero
	count := 0
	for _, it := range s.Items {
		total = total.Add(it.Subtotal())
		count += it.Quantity
	}
	return total.Equal(s.Total) && count == s.Count
}

func (s Snapshot) index(productID int64) int {
	return slices.IndexFunc(s.Items, func(it Item) bool { return it.ProductID == productID })
}

// ClampQuantity forces q into [MinQuantity, MaxQuantity].
func ClampQuantity(q int) int {
	return min(max(q, MinQuantity), MaxQuantity)
}
