package cart

import (
	"math"

	"github.com/biyariq/storefront/internal/domain/catalog"
	"github.com/biyariq/storefront/internal/domain/shared"
)

var (
	// ErrInvalidQuantity is returned when a quantity that must be positive is not
	ErrInvalidQuantity = shared.NewDomainError("INVALID_QUANTITY", "Quantity must be a positive integer")
	// ErrCartItemNotFound is returned when a line item id is not in the cart
	ErrCartItemNotFound = shared.NewDomainError("CART_ITEM_NOT_FOUND", "Cart item not found")
)

// LineItem is one product's entry in the cart. ID always equals Product.ID,
// so a cart holds at most one line per product.
type LineItem struct {
	ID       string          `json:"id"`
	Quantity int             `json:"quantity"`
	Product  catalog.Product `json:"product"`
}

// Items is the ordered collection of cart lines. Order is insertion order.
type Items []LineItem

// Find returns the line with the given id and its index
func (it Items) Find(id string) (LineItem, int, bool) {
	for i, line := range it {
		if line.ID == id {
			return line, i, true
		}
	}
	return LineItem{}, -1, false
}

// Contains reports whether a line with the given id exists
func (it Items) Contains(id string) bool {
	_, _, ok := it.Find(id)
	return ok
}

// Clone returns a copy that shares no backing array with it
func (it Items) Clone() Items {
	if it == nil {
		return Items{}
	}
	out := make(Items, len(it))
	copy(out, it)
	return out
}

// Add constructs a line for product or increments the existing one by qty.
// It returns the line as it was before the call and whether it existed, so
// the caller can undo the change.
func (it *Items) Add(product catalog.Product, qty int) (prev LineItem, existed bool, err error) {
	if qty < 1 {
		return LineItem{}, false, ErrInvalidQuantity
	}
	if err := product.Validate(); err != nil {
		return LineItem{}, false, err
	}

	if line, idx, ok := it.Find(product.ID); ok {
		if line.Quantity > math.MaxInt-qty {
			return LineItem{}, false, ErrInvalidQuantity
		}
		(*it)[idx].Quantity += qty
		return line, true, nil
	}

	*it = append(*it, LineItem{ID: product.ID, Quantity: qty, Product: product})
	return LineItem{}, false, nil
}

// SetQuantity replaces the quantity of the line with the given id. A quantity
// of zero or less removes the line. It returns the previous line and index.
func (it *Items) SetQuantity(id string, qty int) (prev LineItem, idx int, err error) {
	line, idx, ok := it.Find(id)
	if !ok {
		return LineItem{}, -1, ErrCartItemNotFound
	}
	if qty <= 0 {
		it.removeAt(idx)
		return line, idx, nil
	}
	(*it)[idx].Quantity = qty
	return line, idx, nil
}

// Remove deletes the line with the given id, returning it and its former index
func (it *Items) Remove(id string) (removed LineItem, idx int, ok bool) {
	line, idx, ok := it.Find(id)
	if !ok {
		return LineItem{}, -1, false
	}
	it.removeAt(idx)
	return line, idx, true
}

// Restore puts line back: it replaces a line with the same id if present,
// otherwise inserts it at idx (clamped to the collection bounds).
func (it *Items) Restore(line LineItem, idx int) {
	if _, cur, ok := it.Find(line.ID); ok {
		(*it)[cur] = line
		return
	}
	if idx < 0 || idx > len(*it) {
		idx = len(*it)
	}
	*it = append(*it, LineItem{})
	copy((*it)[idx+1:], (*it)[idx:])
	(*it)[idx] = line
}

func (it *Items) removeAt(idx int) {
	*it = append((*it)[:idx], (*it)[idx+1:]...)
}

// Normalize drops lines that violate the cart invariants (empty id, quantity
// below one) and merges duplicate ids. It is applied to data read back from
// storage that this process did not write.
func (it Items) Normalize() Items {
	out := make(Items, 0, len(it))
	for _, line := range it {
		if line.ID == "" || line.Quantity < 1 {
			continue
		}
		if line.Product.ID == "" {
			line.Product.ID = line.ID
		}
		if _, idx, ok := out.Find(line.ID); ok {
			out[idx].Quantity += line.Quantity
			continue
		}
		out = append(out, line)
	}
	return out
}
