package port

import (
	"context"
	"errors"

	"github.com/rl1809/allocation/internal/core/domain"
)

var (
	// ErrConflict is returned by Commit when another writer changed an
	// aggregate between load and commit. Callers retry with a fresh unit of work.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrClosed is returned when committing a unit of work that already ended.
	ErrClosed = errors.New("unit of work closed")
)

// ProductRepository loads and stages Product aggregates by SKU. It never commits.
type ProductRepository interface {
	// Add stages a new product; it is persisted by the unit of work's Commit.
	Add(product *domain.Product)

	// Get returns the product for sku, or nil when there is none.
	Get(ctx context.Context, sku string) (*domain.Product, error)
}

// AssetBookRepository loads and stages AssetBook aggregates by symbol.
type AssetBookRepository interface {
	Add(book *domain.AssetBook)
	Get(ctx context.Context, symbol string) (*domain.AssetBook, error)
}

// ModelRepository stores AI model registrations. Models are append-only.
type ModelRepository interface {
	Add(model domain.AIModel)
	List(ctx context.Context, symbol string) ([]domain.AIModel, error)
}

// UnitOfWork binds repositories to one transaction.
//
// Commit flushes staged changes, checks every touched aggregate's version
// against the one read at load time and ends the transaction. Rollback
// discards everything; it is idempotent and safe after Commit, so callers
// defer it right after Begin.
type UnitOfWork interface {
	Products() ProductRepository
	AssetBooks() AssetBookRepository
	Models() ModelRepository

	Commit(ctx context.Context) error
	Rollback() error
}

// UnitOfWorkFactory opens units of work. The context passed to Begin bounds
// the transaction: cancelling it rolls back anything not yet committed.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
