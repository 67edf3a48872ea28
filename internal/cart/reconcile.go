package cart

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Replace builds a snapshot from a full reload. Items are copied.
func Replace(items []Item, totals Totals) Snapshot {
	return Snapshot{
		Items: slices.Clone(items),
		Total: totals.Total,
		Count: totals.Count,
	}
}

// Anonymous is the snapshot shown when the session is not authenticated.
func Anonymous() Snapshot {
	return Snapshot{Total: decimal.Zero}
}

// ApplyAdd records the server-reported item count after an add. Rows and
// total are left alone; the next full reload brings them in.
func ApplyAdd(s Snapshot, count int) Snapshot {
	out := s.Clone()
	out.Count = count
	return out
}

// ApplyQuantity sets the row quantity for productID and takes Total and
// Count from the server. The row subtotal follows from the new quantity.
func ApplyQuantity(s Snapshot, productID int64, quantity int, totals Totals) (Snapshot, error) {
	i := s.index(productID)
	if i < 0 {
		return s, fmt.Errorf("apply quantity for product %d: %w", productID, ErrItemNotFound)
	}
	out := s.Clone()
	out.Items[i].Quantity = quantity
	out.Total = totals.Total
	out.Count = totals.Count
	return out, nil
}

// ApplyRemoval drops the row for productID and takes Total and Count from
// the server. A zero count clears every row so the empty state renders even
// if the local list was stale.
func ApplyRemoval(s Snapshot, productID int64, totals Totals) Snapshot {
	out := s.Clone()
	if i := out.index(productID); i >= 0 {
		out.Items = slices.Delete(out.Items, i, i+1)
	}
	out.Total = totals.Total
	out.Count = totals.Count
	if out.Count == 0 {
		out.Items = nil
	}
	return out
}
