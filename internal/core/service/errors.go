package service

import (
	"errors"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/port"
)

var (
	ErrInvalidSku    = errors.New("invalid sku")
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrInvalidInput  = errors.New("invalid input")
)

// Code classifies a use-case error for transports.
type Code string

const (
	CodeOK               Code = "ok"
	CodeInvalidInput     Code = "invalid_input"
	CodeInvalidSku       Code = "invalid_sku"
	CodeInvalidSymbol    Code = "invalid_symbol"
	CodeOutOfStock       Code = "out_of_stock"
	CodeAlreadyAllocated Code = "already_allocated"
	CodeNotAllocated     Code = "not_allocated"
	CodeConflict         Code = "conflict"
	CodeInternal         Code = "internal"
)

func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrInvalidSku):
		return CodeInvalidSku
	case errors.Is(err, ErrInvalidSymbol), errors.Is(err, domain.ErrSymbolNotIncluded):
		return CodeInvalidSymbol
	case errors.Is(err, domain.ErrOutOfStock):
		return CodeOutOfStock
	case errors.Is(err, domain.ErrAlreadyAllocated):
		return CodeAlreadyAllocated
	case errors.Is(err, domain.ErrNotAllocated):
		return CodeNotAllocated
	case errors.Is(err, port.ErrConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}

// IsBusiness reports whether code is a rejected request rather than a
// conflict or an infrastructure failure.
func (c Code) IsBusiness() bool {
	switch c {
	case CodeInvalidInput, CodeInvalidSku, CodeInvalidSymbol, CodeOutOfStock, CodeAlreadyAllocated, CodeNotAllocated:
		return true
	default:
		return false
	}
}
