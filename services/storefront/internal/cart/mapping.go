package cart

import "sort"

// Mapping is a cart snapshot: product id to ordered quantity. Absent keys
// mean zero. Snapshots handed to observers are never mutated.
type Mapping map[string]int64

// Count returns the quantity for id, or 0 when id is not in the cart.
func (m Mapping) Count(id string) int64 {
	return m[id]
}

func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// With returns a copy of m where id holds qty. A non-positive qty removes
// the key.
func (m Mapping) With(id string, qty int64) Mapping {
	out := m.Clone()
	if qty > 0 {
		out[id] = qty
	} else {
		delete(out, id)
	}
	return out
}

// IDs returns the product ids in the cart, sorted.
func (m Mapping) IDs() []string {
	ids := make([]string, 0, len(m))
	for id, qty := range m {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
