package storage

import (
	"time"

	"github.com/rl1809/allocation/internal/core/domain"
)

// Records are the persisted shape of the aggregates. Repositories translate
// between them and the domain types; the domain never sees storage.

type productRecord struct {
	SKU     string
	Version int
	Batches []batchRecord
}

type batchRecord struct {
	Reference         string
	SKU               string
	PurchasedQuantity int
	ETA               *time.Time
	Allocations       []domain.OrderLine
}

type assetBookRecord struct {
	Symbol  string
	Version int
	Assets  []assetRecord
}

type assetRecord struct {
	Symbol   string
	Source   string
	Trackers []domain.Tracker
}

func productToRecord(p *domain.Product) productRecord {
	rec := productRecord{SKU: p.SKU, Version: p.VersionNumber, Batches: make([]batchRecord, 0, len(p.Batches))}
	for _, b := range p.Batches {
		rec.Batches = append(rec.Batches, batchRecord{
			Reference:         b.Reference,
			SKU:               b.SKU,
			PurchasedQuantity: b.PurchasedQuantity(),
			ETA:               copyTime(b.ETA),
			Allocations:       b.Allocations(),
		})
	}
	return rec
}

func productFromRecord(rec productRecord) *domain.Product {
	batches := make([]*domain.Batch, 0, len(rec.Batches))
	for _, b := range rec.Batches {
		batches = append(batches, domain.RestoreBatch(b.Reference, b.SKU, b.PurchasedQuantity, copyTime(b.ETA), b.Allocations))
	}
	return domain.RestoreProduct(rec.SKU, rec.Version, batches)
}

func assetBookToRecord(book *domain.AssetBook) assetBookRecord {
	rec := assetBookRecord{Symbol: book.Symbol, Version: book.VersionNumber, Assets: make([]assetRecord, 0, len(book.Assets))}
	for _, a := range book.Assets {
		rec.Assets = append(rec.Assets, assetRecord{Symbol: a.Symbol, Source: a.Source, Trackers: a.Trackers()})
	}
	return rec
}

func assetBookFromRecord(rec assetBookRecord) *domain.AssetBook {
	assets := make([]*domain.Asset, 0, len(rec.Assets))
	for _, a := range rec.Assets {
		assets = append(assets, domain.RestoreAsset(a.Symbol, a.Source, a.Trackers))
	}
	return domain.RestoreAssetBook(rec.Symbol, rec.Version, assets)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
