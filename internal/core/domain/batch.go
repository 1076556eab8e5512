package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Batch is a shipment of stock for one SKU. Identity is Reference.
type Batch struct {
	Reference string
	SKU       string
	// ETA is the expected arrival date; nil means the stock is already on hand.
	ETA *time.Time

	purchasedQuantity int
	allocations       map[OrderLine]struct{}
}

func NewBatch(ref, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{
		Reference:         ref,
		SKU:               sku,
		ETA:               truncateDate(eta),
		purchasedQuantity: qty,
		allocations:       make(map[OrderLine]struct{}),
	}
}

// RestoreBatch rebuilds a batch from persisted state, allocations included.
// Allocations are restored as stored, without re-checking capacity.
func RestoreBatch(ref, sku string, qty int, eta *time.Time, allocations []OrderLine) *Batch {
	b := NewBatch(ref, sku, qty, eta)
	for _, line := range allocations {
		b.allocations[line] = struct{}{}
	}
	return b
}

func truncateDate(eta *time.Time) *time.Time {
	if eta == nil {
		return nil
	}
	y, m, d := eta.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &day
}

func (b *Batch) PurchasedQuantity() int {
	return b.purchasedQuantity
}

func (b *Batch) AllocatedQuantity() int {
	total := 0
	for line := range b.allocations {
		total += line.Qty
	}
	return total
}

func (b *Batch) AvailableQuantity() int {
	return b.purchasedQuantity - b.AllocatedQuantity()
}

func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.SKU == line.SKU && b.AvailableQuantity() >= line.Qty
}

// Allocate adds line when it fits. Allocating a line already held is a no-op.
func (b *Batch) Allocate(line OrderLine) {
	if _, held := b.allocations[line]; held {
		return
	}
	if b.CanAllocate(line) {
		b.allocations[line] = struct{}{}
	}
}

func (b *Batch) Deallocate(line OrderLine) {
	delete(b.allocations, line)
}

func (b *Batch) Holds(line OrderLine) bool {
	_, ok := b.allocations[line]
	return ok
}

// Allocations returns the allocated lines ordered by order id, sku and qty.
func (b *Batch) Allocations() []OrderLine {
	lines := make([]OrderLine, 0, len(b.allocations))
	for line := range b.allocations {
		lines = append(lines, line)
	}
	slices.SortFunc(lines, func(x, y OrderLine) int {
		if c := strings.Compare(x.OrderID, y.OrderID); c != 0 {
			return c
		}
		if c := strings.Compare(x.SKU, y.SKU); c != 0 {
			return c
		}
		return cmp.Compare(x.Qty, y.Qty)
	})
	return lines
}

func (b *Batch) Equal(other *Batch) bool {
	return other != nil && b.Reference == other.Reference
}

// Compare puts on-hand batches (no ETA) first, then earlier arrivals.
func (b *Batch) Compare(other *Batch) int {
	switch {
	case b.ETA == nil && other.ETA == nil:
		return 0
	case b.ETA == nil:
		return -1
	case other.ETA == nil:
		return 1
	default:
		return b.ETA.Compare(*other.ETA)
	}
}
