package domain

import "strings"

// Asset is a data source for a symbol that trackers are attached to.
// Identity is the (Symbol, Source) pair.
type Asset struct {
	Symbol string
	Source string

	trackers []Tracker
}

func NewAsset(symbol, source string) *Asset {
	return &Asset{Symbol: symbol, Source: source}
}

// RestoreAsset rebuilds an asset with its persisted trackers.
func RestoreAsset(symbol, source string, trackers []Tracker) *Asset {
	a := NewAsset(symbol, source)
	a.trackers = append(a.trackers, trackers...)
	return a
}

func (a *Asset) CanAllocate(t Tracker) bool {
	return t.Symbol == a.Symbol
}

// Allocate attaches t. A tracker with the same symbol, datetime and position
// is only attached once.
func (a *Asset) Allocate(t Tracker) {
	if !a.CanAllocate(t) || a.Holds(t) {
		return
	}
	a.trackers = append(a.trackers, t)
}

func (a *Asset) Deallocate(t Tracker) {
	for i, held := range a.trackers {
		if held.key() == t.key() {
			a.trackers = append(a.trackers[:i], a.trackers[i+1:]...)
			return
		}
	}
}

func (a *Asset) Holds(t Tracker) bool {
	for _, held := range a.trackers {
		if held.key() == t.key() {
			return true
		}
	}
	return false
}

func (a *Asset) Trackers() []Tracker {
	out := make([]Tracker, len(a.trackers))
	copy(out, a.trackers)
	return out
}

func (a *Asset) Compare(other *Asset) int {
	return strings.Compare(a.Source, other.Source)
}
