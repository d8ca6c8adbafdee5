package cart

import "sort"

// Outcome is what reconciling a guest cart into a user's cart amounts to.
type Outcome int

const (
	Noop Outcome = iota
	Assign
	MergeCarts
)

func (o Outcome) String() string {
	switch o {
	case Assign:
		return "assign"
	case MergeCarts:
		return "merge"
	default:
		return "noop"
	}
}

// Plan decides how guest folds into the user's current cart. guest or
// current may be nil when they do not exist. Only anonymous carts are ever
// reconciled: a cart that already has an owner keeps it.
func Plan(guest, current *Cart) Outcome {
	switch {
	case guest == nil:
		return Noop
	case current != nil && current.ID == guest.ID:
		return Noop
	case !guest.Anonymous():
		return Noop
	case current == nil:
		return Assign
	default:
		return MergeCarts
	}
}

// Merge returns the item set of dst after folding src into it. Quantities of
// the same variant are summed; dst items keep their ids, new lines have ID 0.
// The result is sorted by variant and does not depend on the order of src.
func Merge(dstCartID int64, dst, src []Item) []Item {
	byVariant := make(map[int64]*Item, len(dst)+len(src))
	for _, it := range dst {
		it := it
		it.CartID = dstCartID
		if cur, ok := byVariant[it.VariantID]; ok {
			cur.Quantity += it.Quantity
			continue
		}
		byVariant[it.VariantID] = &it
	}
	for _, it := range src {
		if cur, ok := byVariant[it.VariantID]; ok {
			cur.Quantity += it.Quantity
			continue
		}
		byVariant[it.VariantID] = &Item{CartID: dstCartID, VariantID: it.VariantID, Quantity: it.Quantity}
	}

	out := make([]Item, 0, len(byVariant))
	for _, it := range byVariant {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantID < out[j].VariantID })
	return out
}
