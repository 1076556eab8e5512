package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/platform/logger"
	"github.com/rl1809/allocation/internal/port"
)

// AllocationService runs the stock use cases. Each call is one unit of work
// over one Product; conflicts are returned to the caller, never retried here.
type AllocationService struct {
	runner      unitOfWorkRunner
	idempotency port.IdempotencyStore
	log         *logger.Logger
}

// NewAllocationService builds the service. idempotency may be nil, in which
// case AllocateIdempotent behaves like Allocate.
func NewAllocationService(uows port.UnitOfWorkFactory, idempotency port.IdempotencyStore, log *logger.Logger) *AllocationService {
	return &AllocationService{
		runner:      unitOfWorkRunner{uows: uows, log: log},
		idempotency: idempotency,
		log:         log,
	}
}

type OrderLineView struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type BatchView struct {
	Reference   string          `json:"reference"`
	SKU         string          `json:"sku"`
	Purchased   int             `json:"purchased_quantity"`
	Available   int             `json:"available_quantity"`
	ETA         *time.Time      `json:"eta,omitempty"`
	Allocations []OrderLineView `json:"allocations"`
}

type ProductView struct {
	SKU           string      `json:"sku"`
	VersionNumber int         `json:"version_number"`
	Batches       []BatchView `json:"batches"`
}

func (s *AllocationService) AddBatch(ctx context.Context, ref, sku string, qty int, eta *time.Time) error {
	if strings.TrimSpace(ref) == "" || strings.TrimSpace(sku) == "" || qty <= 0 {
		return fmt.Errorf("%w: batch needs a reference, a sku and a positive quantity", ErrInvalidInput)
	}

	return s.runner.run(ctx, "add_batch", true, func(ctx context.Context, uow port.UnitOfWork) error {
		product, err := uow.Products().Get(ctx, sku)
		if err != nil {
			return err
		}
		if product == nil {
			product = domain.NewProduct(sku)
			uow.Products().Add(product)
		}
		if product.Batch(ref) != nil {
			return fmt.Errorf("%w: batch %s already exists for sku %s", ErrInvalidInput, ref, sku)
		}
		product.AddBatch(domain.NewBatch(ref, sku, qty, eta))
		return nil
	})
}

func (s *AllocationService) Allocate(ctx context.Context, orderID, sku string, qty int) (string, error) {
	line, err := newOrderLine(orderID, sku, qty)
	if err != nil {
		return "", err
	}

	var ref string
	err = s.runner.run(ctx, "allocate", true, func(ctx context.Context, uow port.UnitOfWork) error {
		product, err := loadProduct(ctx, uow, sku)
		if err != nil {
			return err
		}
		ref, err = product.Allocate(line)
		return err
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// allocationReceipt is what an idempotency key stores: the order line the key
// was first used for and the batch that line went to.
type allocationReceipt struct {
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batchref"`
}

// AllocateIdempotent allocates once per requestID. A repeated requestID
// returns the batch reference recorded for the first successful call; reusing
// it for a different order line is rejected with ErrInvalidInput.
func (s *AllocationService) AllocateIdempotent(ctx context.Context, requestID, orderID, sku string, qty int) (string, error) {
	if s.idempotency == nil || requestID == "" {
		return s.Allocate(ctx, orderID, sku, qty)
	}
	line, err := newOrderLine(orderID, sku, qty)
	if err != nil {
		return "", err
	}

	stored, ok, err := s.idempotency.Lookup(ctx, requestID)
	if err != nil {
		return "", err
	}
	if ok {
		var receipt allocationReceipt
		if err := json.Unmarshal([]byte(stored), &receipt); err != nil {
			return "", fmt.Errorf("decode idempotency record %s: %w", requestID, err)
		}
		if receipt.OrderID != line.OrderID || receipt.SKU != line.SKU || receipt.Qty != line.Qty {
			return "", fmt.Errorf("%w: request id %s was used for order %s sku %s qty %d",
				ErrInvalidInput, requestID, receipt.OrderID, receipt.SKU, receipt.Qty)
		}
		s.log.Debug("replayed allocation", "request_id", requestID, "batchref", receipt.BatchRef)
		return receipt.BatchRef, nil
	}

	ref, err := s.Allocate(ctx, orderID, sku, qty)
	if err != nil {
		return "", err
	}
	record, err := json.Marshal(allocationReceipt{OrderID: line.OrderID, SKU: line.SKU, Qty: line.Qty, BatchRef: ref})
	if err != nil {
		return "", fmt.Errorf("encode idempotency record %s: %w", requestID, err)
	}
	if err := s.idempotency.Remember(ctx, requestID, string(record)); err != nil {
		// The allocation is committed; a lost key only weakens replay protection.
		s.log.Warn("failed to remember idempotency key", "request_id", requestID, "error", err)
	}
	return ref, nil
}

func (s *AllocationService) Deallocate(ctx context.Context, orderID, sku string, qty int) (string, error) {
	line, err := newOrderLine(orderID, sku, qty)
	if err != nil {
		return "", err
	}

	var ref string
	err = s.runner.run(ctx, "deallocate", true, func(ctx context.Context, uow port.UnitOfWork) error {
		product, err := loadProduct(ctx, uow, sku)
		if err != nil {
			return err
		}
		ref, err = product.Deallocate(line)
		return err
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (s *AllocationService) GetProduct(ctx context.Context, sku string) (ProductView, error) {
	var view ProductView
	err := s.runner.run(ctx, "get_product", false, func(ctx context.Context, uow port.UnitOfWork) error {
		product, err := loadProduct(ctx, uow, sku)
		if err != nil {
			return err
		}
		view = productView(product)
		return nil
	})
	return view, err
}

func loadProduct(ctx context.Context, uow port.UnitOfWork, sku string) (*domain.Product, error) {
	product, err := uow.Products().Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSku, sku)
	}
	return product, nil
}

func newOrderLine(orderID, sku string, qty int) (domain.OrderLine, error) {
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(sku) == "" || qty <= 0 {
		return domain.OrderLine{}, fmt.Errorf("%w: order line needs an order id, a sku and a positive quantity", ErrInvalidInput)
	}
	return domain.OrderLine{OrderID: orderID, SKU: sku, Qty: qty}, nil
}

func productView(p *domain.Product) ProductView {
	view := ProductView{SKU: p.SKU, VersionNumber: p.VersionNumber, Batches: make([]BatchView, 0, len(p.Batches))}
	for _, b := range p.Batches {
		lines := make([]OrderLineView, 0)
		for _, l := range b.Allocations() {
			lines = append(lines, OrderLineView{OrderID: l.OrderID, SKU: l.SKU, Qty: l.Qty})
		}
		view.Batches = append(view.Batches, BatchView{
			Reference:   b.Reference,
			SKU:         b.SKU,
			Purchased:   b.PurchasedQuantity(),
			Available:   b.AvailableQuantity(),
			ETA:         b.ETA,
			Allocations: lines,
		})
	}
	return view
}
