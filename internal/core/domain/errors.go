package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfStock means no batch of the product can take the order line.
	ErrOutOfStock = errors.New("out of stock")
	// ErrAlreadyAllocated means the order line already sits in one of the product's
	// batches, or the tracker is already held by one of the book's assets.
	ErrAlreadyAllocated = errors.New("already allocated")
	// ErrNotAllocated means the order line is not in any of the product's batches.
	ErrNotAllocated = errors.New("order line not allocated")
	// ErrSymbolNotIncluded means no asset of the book accepts the tracker.
	ErrSymbolNotIncluded = errors.New("symbol not included")
)

func outOfStock(sku string) error {
	return fmt.Errorf("%w for sku %s", ErrOutOfStock, sku)
}
