package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/port"
)

// MemoryStore keeps committed aggregates as records. Units of work read
// copies and write back under the store's lock, so it behaves like the SQL
// store with respect to version conflicts.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]productRecord
	books    map[string]assetBookRecord
	models   []domain.AIModel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]productRecord),
		books:    make(map[string]assetBookRecord),
	}
}

type MemoryUnitOfWorkFactory struct {
	store *MemoryStore
}

func NewMemoryUnitOfWorkFactory(store *MemoryStore) *MemoryUnitOfWorkFactory {
	return &MemoryUnitOfWorkFactory{store: store}
}

func (f *MemoryUnitOfWorkFactory) Begin(ctx context.Context) (port.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryUnitOfWork{
		store:    f.store,
		products: &memoryProductRepository{store: f.store, tracked: make(map[string]*trackedProduct)},
		books:    &memoryAssetBookRepository{store: f.store, tracked: make(map[string]*trackedAssetBook)},
		models:   &memoryModelRepository{store: f.store},
	}, nil
}

type memoryUnitOfWork struct {
	store    *MemoryStore
	products *memoryProductRepository
	books    *memoryAssetBookRepository
	models   *memoryModelRepository
	closed   bool
}

func (u *memoryUnitOfWork) Products() port.ProductRepository     { return u.products }
func (u *memoryUnitOfWork) AssetBooks() port.AssetBookRepository { return u.books }
func (u *memoryUnitOfWork) Models() port.ModelRepository         { return u.models }

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if u.closed {
		return port.ErrClosed
	}
	u.closed = true
	if err := ctx.Err(); err != nil {
		return err
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for _, sku := range sortedKeys(u.products.tracked) {
		t := u.products.tracked[sku]
		stored, exists := u.store.products[sku]
		var loaded *int
		if t.loaded != nil {
			loaded = &t.loaded.Version
		}
		if !versionMatches(loaded, exists, stored.Version) {
			return conflict("products", sku)
		}
	}
	for _, symbol := range sortedKeys(u.books.tracked) {
		t := u.books.tracked[symbol]
		stored, exists := u.store.books[symbol]
		var loaded *int
		if t.loaded != nil {
			loaded = &t.loaded.Version
		}
		if !versionMatches(loaded, exists, stored.Version) {
			return conflict("asset_books", symbol)
		}
	}

	for sku, t := range u.products.tracked {
		u.store.products[sku] = productToRecord(t.product)
	}
	for symbol, t := range u.books.tracked {
		u.store.books[symbol] = assetBookToRecord(t.book)
	}
	u.store.models = append(u.store.models, u.models.staged...)
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	u.closed = true
	return nil
}

// versionMatches reports whether a write may proceed: a new aggregate must
// not exist yet, a loaded one must still be at the version it was read at.
func versionMatches(loaded *int, exists bool, stored int) bool {
	if loaded == nil {
		return !exists
	}
	return exists && *loaded == stored
}

type memoryProductRepository struct {
	store   *MemoryStore
	tracked map[string]*trackedProduct
}

func (r *memoryProductRepository) Add(product *domain.Product) {
	r.tracked[product.SKU] = &trackedProduct{product: product}
}

func (r *memoryProductRepository) Get(ctx context.Context, sku string) (*domain.Product, error) {
	if t, ok := r.tracked[sku]; ok {
		return t.product, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	rec, ok := r.store.products[sku]
	r.store.mu.Unlock()
	if !ok {
		return nil, nil
	}

	product := productFromRecord(rec)
	r.tracked[sku] = &trackedProduct{product: product, loaded: &rec}
	return product, nil
}

type memoryAssetBookRepository struct {
	store   *MemoryStore
	tracked map[string]*trackedAssetBook
}

func (r *memoryAssetBookRepository) Add(book *domain.AssetBook) {
	r.tracked[book.Symbol] = &trackedAssetBook{book: book}
}

func (r *memoryAssetBookRepository) Get(ctx context.Context, symbol string) (*domain.AssetBook, error) {
	if t, ok := r.tracked[symbol]; ok {
		return t.book, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	rec, ok := r.store.books[symbol]
	r.store.mu.Unlock()
	if !ok {
		return nil, nil
	}

	book := assetBookFromRecord(rec)
	r.tracked[symbol] = &trackedAssetBook{book: book, loaded: &rec}
	return book, nil
}

type memoryModelRepository struct {
	store  *MemoryStore
	staged []domain.AIModel
}

func (r *memoryModelRepository) Add(model domain.AIModel) {
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	r.staged = append(r.staged, model)
}

func (r *memoryModelRepository) List(ctx context.Context, symbol string) ([]domain.AIModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	all := slices.Clone(r.store.models)
	r.store.mu.Unlock()

	var models []domain.AIModel
	for _, m := range append(all, r.staged...) {
		if m.Symbol == symbol {
			models = append(models, m)
		}
	}
	return models, nil
}
