package cart

import "errors"

var (
	// ErrStockExceeded is reported when an add or quantity update would push a
	// line past the cached stock of its product snapshot. The operation is a
	// no-op; the existing line (if any) is left unchanged.
	ErrStockExceeded = errors.New("requested quantity exceeds available stock")

	// ErrInvalidProduct is reported when a product snapshot is unusable: empty
	// id or negative stock.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrInvalidQuantity is reported for additive quantities below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)
