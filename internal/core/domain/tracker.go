package domain

import "time"

// Tracker is a position signal for a market symbol at a point in time.
type Tracker struct {
	Symbol    string
	DatetimeT string
	Position  int
	CreatedAt time.Time
}

// NewTracker stamps CreatedAt with the current time on every call.
func NewTracker(symbol, datetimeT string, position int) Tracker {
	return Tracker{
		Symbol:    symbol,
		DatetimeT: datetimeT,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}
}

type trackerKey struct {
	symbol    string
	datetimeT string
	position  int
}

func (t Tracker) key() trackerKey {
	return trackerKey{symbol: t.Symbol, datetimeT: t.DatetimeT, position: t.Position}
}
