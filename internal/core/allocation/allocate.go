// Package allocation places a unit of demand against the first eligible
// supply in preference order. Both the stock (order line -> batch) and the
// market (tracker -> asset) aggregates are built on it.
package allocation

import "slices"

// Supply is something demand of type D can be allocated against. S is the
// concrete supply type itself so candidates can be ordered among each other.
type Supply[D any, S any] interface {
	// CanAllocate reports whether d is eligible for this supply.
	CanAllocate(d D) bool
	// Allocate records d against this supply. It must be a no-op when
	// CanAllocate(d) is false.
	Allocate(d D)
	// Compare orders supplies by preference; negative means s is preferred.
	Compare(other S) int
}

// Allocate sorts supplies by preference and allocates d to the first one that
// can take it. The input slice is left in its original order. The second
// result is false when no supply is eligible, in which case nothing changed.
func Allocate[D any, S Supply[D, S]](d D, supplies []S) (S, bool) {
	ordered := Preferred(supplies)
	for _, s := range ordered {
		if s.CanAllocate(d) {
			s.Allocate(d)
			return s, true
		}
	}
	var zero S
	return zero, false
}

// Ordered is the part of Supply needed to rank candidates.
type Ordered[S any] interface {
	Compare(other S) int
}

// Preferred returns a copy of supplies in preference order. Equal supplies
// keep their relative order.
func Preferred[S Ordered[S]](supplies []S) []S {
	ordered := slices.Clone(supplies)
	slices.SortStableFunc(ordered, func(a, b S) int { return a.Compare(b) })
	return ordered
}
