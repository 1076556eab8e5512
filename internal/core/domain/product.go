package domain

import (
	"fmt"

	"github.com/rl1809/allocation/internal/core/allocation"
)

// Product is the aggregate root for one SKU. Every change to its batches goes
// through it, and VersionNumber is bumped on each successful allocation so
// concurrent writers can be detected at commit time.
type Product struct {
	SKU           string
	Batches       []*Batch
	VersionNumber int
}

func NewProduct(sku string, batches ...*Batch) *Product {
	return &Product{SKU: sku, Batches: batches}
}

// RestoreProduct rebuilds a product from persisted state.
func RestoreProduct(sku string, version int, batches []*Batch) *Product {
	return &Product{SKU: sku, Batches: batches, VersionNumber: version}
}

func (p *Product) AddBatch(b *Batch) {
	p.Batches = append(p.Batches, b)
}

func (p *Product) Batch(ref string) *Batch {
	for _, b := range p.Batches {
		if b.Reference == ref {
			return b
		}
	}
	return nil
}

// Allocate places line in the preferred batch that can hold it and returns
// that batch's reference. A line whose order already has an allocation for
// this SKU is rejected. On error the product is left unchanged.
func (p *Product) Allocate(line OrderLine) (string, error) {
	if b := p.allocatedTo(line.OrderID, line.SKU); b != nil {
		return "", fmt.Errorf("%w: order %s sku %s in batch %s", ErrAlreadyAllocated, line.OrderID, line.SKU, b.Reference)
	}
	batch, ok := allocation.Allocate(line, p.Batches)
	if !ok {
		return "", outOfStock(line.SKU)
	}
	p.VersionNumber++
	return batch.Reference, nil
}

// Deallocate removes line from the batch holding it and returns that batch's reference.
func (p *Product) Deallocate(line OrderLine) (string, error) {
	for _, b := range p.Batches {
		if b.Holds(line) {
			b.Deallocate(line)
			p.VersionNumber++
			return b.Reference, nil
		}
	}
	return "", fmt.Errorf("%w: order %s sku %s qty %d", ErrNotAllocated, line.OrderID, line.SKU, line.Qty)
}

func (p *Product) allocatedTo(orderID, sku string) *Batch {
	for _, b := range p.Batches {
		for line := range b.allocations {
			if line.OrderID == orderID && line.SKU == sku {
				return b
			}
		}
	}
	return nil
}
