package domain

import (
	"fmt"

	"github.com/rl1809/allocation/internal/core/allocation"
)

// AssetBook is the aggregate root for all assets of one symbol.
type AssetBook struct {
	Symbol        string
	Assets        []*Asset
	VersionNumber int
}

func NewAssetBook(symbol string, assets ...*Asset) *AssetBook {
	return &AssetBook{Symbol: symbol, Assets: assets}
}

func RestoreAssetBook(symbol string, version int, assets []*Asset) *AssetBook {
	return &AssetBook{Symbol: symbol, Assets: assets, VersionNumber: version}
}

func (b *AssetBook) AddAsset(a *Asset) {
	b.Assets = append(b.Assets, a)
}

func (b *AssetBook) Asset(source string) *Asset {
	for _, a := range b.Assets {
		if a.Source == source {
			return a
		}
	}
	return nil
}

// AllocateTracker attaches t to the preferred asset that accepts it and
// returns the asset's symbol together with the tracker's position. A tracker
// already held by one of the assets is rejected and the book is left unchanged.
func (b *AssetBook) AllocateTracker(t Tracker) (string, int, error) {
	for _, a := range b.Assets {
		if a.Holds(t) {
			return "", 0, fmt.Errorf("%w: tracker %s at %s in source %s", ErrAlreadyAllocated, t.Symbol, t.DatetimeT, a.Source)
		}
	}
	asset, ok := allocation.Allocate(t, b.Assets)
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrSymbolNotIncluded, t.Symbol)
	}
	b.VersionNumber++
	return asset.Symbol, t.Position, nil
}
