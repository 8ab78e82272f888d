package favorites

import "github.com/biyariq/storefront/internal/domain/catalog"

// Items is the favorites collection: products deduplicated by id, in the
// order they were added.
type Items []catalog.Product

// Find returns the product with the given id and its index
func (it Items) Find(id string) (catalog.Product, int, bool) {
	for i, p := range it {
		if p.ID == id {
			return p, i, true
		}
	}
	return catalog.Product{}, -1, false
}

// Contains reports whether the product id is a favorite
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

// Add appends product unless one with the same id is already present.
// It reports whether the collection changed.
func (it *Items) Add(product catalog.Product) (bool, error) {
	if err := product.Validate(); err != nil {
		return false, err
	}
	if it.Contains(product.ID) {
		return false, nil
	}
	*it = append(*it, product)
	return true, nil
}

// Remove deletes the product with the given id. Removing a missing id is a no-op.
func (it *Items) Remove(id string) (removed catalog.Product, idx int, ok bool) {
	p, idx, ok := it.Find(id)
	if !ok {
		return catalog.Product{}, -1, false
	}
	*it = append((*it)[:idx], (*it)[idx+1:]...)
	return p, idx, true
}

// Restore inserts product at idx unless it is already present
func (it *Items) Restore(product catalog.Product, idx int) {
	if it.Contains(product.ID) {
		return
	}
	if idx < 0 || idx > len(*it) {
		idx = len(*it)
	}
	*it = append(*it, catalog.Product{})
	copy((*it)[idx+1:], (*it)[idx:])
	(*it)[idx] = product
}

// Dedupe drops entries with an empty id and keeps the first of any repeated id
func (it Items) Dedupe() Items {
	out := make(Items, 0, len(it))
	for _, p := range it {
		if p.ID == "" || out.Contains(p.ID) {
			continue
		}
		out = append(out, p)
	}
	return out
}
