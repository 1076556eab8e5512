package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/port"
)

// runUnitOfWorkContract checks the behaviour every port.UnitOfWorkFactory
// implementation must share. Keys are random so runs against a real
// database do not interfere with each other.
func runUnitOfWorkContract(t *testing.T, factory port.UnitOfWorkFactory) {
	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		ctx := context.Background()
		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback()

		product, err := uow.Products().Get(ctx, "missing-"+uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, product)
	})

	t.Run("RoundTripsProduct", func(t *testing.T) {
		ctx := context.Background()
		sku := newKey("LAMP")
		eta := time.Now().UTC().AddDate(0, 0, 3)
		seedProduct(t, factory, sku,
			domain.NewBatch(sku+"-b1", sku, 100, nil),
			domain.NewBatch(sku+"-b2", sku, 50, &eta),
		)

		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback()

		product, err := uow.Products().Get(ctx, sku)
		require.NoError(t, err)
		require.NotNil(t, product)
		assert.Equal(t, 0, product.VersionNumber)
		require.Len(t, product.Batches, 2)

		b1 := product.Batch(sku + "-b1")
		require.NotNil(t, b1)
		assert.Nil(t, b1.ETA)
		assert.Equal(t, 100, b1.AvailableQuantity())

		b2 := product.Batch(sku + "-b2")
		require.NotNil(t, b2)
		require.NotNil(t, b2.ETA)
		assert.Equal(t, eta.Format(time.DateOnly), b2.ETA.UTC().Format(time.DateOnly))
	})

	t.Run("KeepsBatchInsertionOrder", func(t *testing.T) {
		ctx := context.Background()
		sku := newKey("LAMP")
		seedProduct(t, factory, sku, domain.NewBatch(sku+"-z-first", sku, 10, nil))

		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		product, err := uow.Products().Get(ctx, sku)
		require.NoError(t, err)
		product.AddBatch(domain.NewBatch(sku+"-a-second", sku, 10, nil))
		require.NoError(t, uow.Commit(ctx))
		require.NoError(t, uow.Rollback())

		uow, err = factory.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback()
		reloaded, err := uow.Products().Get(ctx, sku)
		require.NoError(t, err)
		require.Len(t, reloaded.Batches, 2)
		assert.Equal(t, sku+"-z-first", reloaded.Batches[0].Reference)
		assert.Equal(t, sku+"-a-second", reloaded.Batches[1].Reference)

		ref, err := reloaded.Allocate(domain.OrderLine{OrderID: "o1", SKU: sku, Qty: 1})
		require.NoError(t, err)
		assert.Equal(t, sku+"-z-first", ref)
	})

	t.Run("PersistsAllocationAndVersion", func(t *testing.T) {
		ctx := context.Background()
		sku := newKey("CHAIR")
		seedProduct(t, factory, sku, domain.NewBatch(sku+"-b1", sku, 20, nil))

		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		product, err := uow.Products().Get(ctx, sku)
		require.NoError(t, err)
		ref, err := product.Allocate(domain.OrderLine{OrderID: "o1", SKU: sku, Qty: 2})
		require.NoError(t, err)
		require.NoError(t, uow.Commit(ctx))
		require.NoError(t, uow.Rollback())
		assert.Equal(t, sku+"-b1", ref)

		reloaded := loadProduct(t, factory, sku)
		assert.Equal(t, 1, reloaded.VersionNumber)
		assert.Equal(t, 18, reloaded.Batch(ref).AvailableQuantity())
		assert.Equal(t, []domain.OrderLine{{OrderID: "o1", SKU: sku, Qty: 2}}, reloaded.Batch(ref).Allocations())
	})

	t.Run("PersistsDeallocation", func(t *testing.T) {
		ctx := context.Background()
		sku := newKey("TABLE")
		line := domain.OrderLine{OrderID: "o1", SKU: sku, Qty: 4}
		batch := domain.NewBatch(sku+"-b1", sku, 10, nil)
		batch.Allocate(line)
		seedProduct(t, factory, sku, batch)

		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback()
		product, err := uow.Products().Get(ctx, sku)
		require.NoError(t, err)
		_, err = product.Deallocate(line)
		require.NoError(t, err)
		require.NoError(t, uow.Commit(ctx))

		reloaded := loadProduct(t, factory, sku)
		assert.Equal(t, 10, reloaded.Batch(sku+"-b1").AvailableQuantity())
		assert.Empty(t, reloaded.Batch(sku+"-b1").Allocations())
	})

	t.Run("ConcurrentWritersConflict", func(t *testing.T) {
		ctx := context.Background()
		sku := newKey("RUG")
		seedProduct(t, factory, sku, domain.NewBatch(sku+"-b1", sku, 10, nil))

		first, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer first.Rollback()
		second, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer second.Rollback()

		p1, err := first.Products().Get(ctx, sku)
		require.NoError(t, err)
		p2, err := second.Products().Get(ctx, sku)
		require.NoError(t, err)

		_, err = p1.Allocate(domain.OrderLine{OrderID: "o1", SKU: sku, Qty: 1})
		require.NoError(t, err)
		_, err = p2.Allocate(domain.OrderLine{OrderID: "o2", SKU: sku, Qty: 1})
		require.NoError(t, err)

		require.NoError(t, first.Commit(ctx))
		err = second.Commit(ctx)
		assert.ErrorIs(t, err, port.ErrConflict)

		reloaded := loadProduct(t, factory, sku)
		assert.Equal(t, 1, reloaded.VersionNumber)
		assert.Equal(t, []domain.OrderLine{{OrderID: "o1", SKU: sku, Qty: 1}}, reloaded.Batch(sku+"-b1").Allocations())
	})

	t.Run("UnchangedVersionStillChecked", func(t *testing.T) {
		ctx := context.Background()
		sku := newKey("VASE")
		seedProduct(t, factory, sku, domain.NewBatch(sku+"-b1", sku, 10, nil))

		stale, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer stale.Rollback()
		product, err := stale.Products().Get(ctx, sku)
		require.NoError(t, err)

		writer, err := factory.Begin(ctx)
		require.NoError(t, err)
		p, err := writer.Products().Get(ctx, sku)
		require.NoError(t, err)
		_, err = p.Allocate(domain.OrderLine{OrderID: "o1", SKU: sku, Qty: 1})
		require.NoError(t, err)
		require.NoError(t, writer.Commit(ctx))

		product.AddBatch(domain.NewBatch(sku+"-b2", sku, 5, nil))
		assert.ErrorIs(t, stale.Commit(ctx), port.ErrConflict)
		assert.Nil(t, loadProduct(t, factory, sku).Batch(sku+"-b2"))
	})

	t.Run("DuplicateNewProductConflicts", func(t *testing.T) {
		ctx := context.Background()
		sku := newKey("SOFA")

		first, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer first.Rollback()
		second, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer second.Rollback()

		first.Products().Add(domain.NewProduct(sku, domain.NewBatch(sku+"-b1", sku, 1, nil)))
		second.Products().Add(domain.NewProduct(sku, domain.NewBatch(sku+"-b2", sku, 1, nil)))

		require.NoError(t, first.Commit(ctx))
		assert.ErrorIs(t, second.Commit(ctx), port.ErrConflict)
	})

	t.Run("RollbackDiscardsChanges", func(t *testing.T) {
		ctx := context.Background()
		sku := newKey("DESK")

		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		uow.Products().Add(domain.NewProduct(sku, domain.NewBatch(sku+"-b1", sku, 1, nil)))
		require.NoError(t, uow.Rollback())
		require.NoError(t, uow.Rollback())
		assert.ErrorIs(t, uow.Commit(ctx), port.ErrClosed)

		check, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer check.Rollback()
		product, err := check.Products().Get(ctx, sku)
		require.NoError(t, err)
		assert.Nil(t, product)
	})

	t.Run("CommitTwiceIsClosed", func(t *testing.T) {
		ctx := context.Background()
		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, uow.Commit(ctx))
		assert.ErrorIs(t, uow.Commit(ctx), port.ErrClosed)
		assert.NoError(t, uow.Rollback())
	})

	t.Run("RoundTripsAssetBook", func(t *testing.T) {
		ctx := context.Background()
		symbol := newKey("BTC")

		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		book := domain.NewAssetBook(symbol, domain.NewAsset(symbol, "binance"))
		_, _, err = book.AllocateTracker(domain.NewTracker(symbol, "2024-01-01 00:00", 1))
		require.NoError(t, err)
		uow.AssetBooks().Add(book)
		require.NoError(t, uow.Commit(ctx))

		uow, err = factory.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback()
		loaded, err := uow.AssetBooks().Get(ctx, symbol)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, 1, loaded.VersionNumber)
		asset := loaded.Asset("binance")
		require.NotNil(t, asset)
		trackers := asset.Trackers()
		require.Len(t, trackers, 1)
		assert.Equal(t, "2024-01-01 00:00", trackers[0].DatetimeT)
		assert.Equal(t, 1, trackers[0].Position)

		_, _, err = loaded.AllocateTracker(domain.NewTracker(symbol, "2024-01-01 01:00", -1))
		require.NoError(t, err)
		require.NoError(t, uow.Commit(ctx))
	})

	t.Run("ListsModels", func(t *testing.T) {
		ctx := context.Background()
		symbol := newKey("ETH")

		uow, err := factory.Begin(ctx)
		require.NoError(t, err)
		uow.Models().Add(domain.NewAIModel(symbol, "binance", 12, "lstm_v1", "lstm", "h1", 0.71))
		staged, err := uow.Models().List(ctx, symbol)
		require.NoError(t, err)
		assert.Len(t, staged, 1)
		require.NoError(t, uow.Commit(ctx))

		uow, err = factory.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback()
		models, err := uow.Models().List(ctx, symbol)
		require.NoError(t, err)
		require.Len(t, models, 1)
		assert.NotEmpty(t, models[0].ID)
		assert.Equal(t, "lstm_v1", models[0].ModelName)
		assert.Equal(t, "h1", models[0].Hashtag)
		assert.InDelta(t, 0.71, models[0].AccuracyScore, 1e-9)
	})
}

func newKey(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func seedProduct(t *testing.T, factory port.UnitOfWorkFactory, sku string, batches ...*domain.Batch) {
	t.Helper()
	ctx := context.Background()
	uow, err := factory.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	uow.Products().Add(domain.NewProduct(sku, batches...))
	require.NoError(t, uow.Commit(ctx))
}

func loadProduct(t *testing.T, factory port.UnitOfWorkFactory, sku string) *domain.Product {
	t.Helper()
	ctx := context.Background()
	uow, err := factory.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	product, err := uow.Products().Get(ctx, sku)
	require.NoError(t, err)
	require.NotNil(t, product)
	return product
}
