package orders

import "errors"

var (
	ErrNotFound        = errors.New("order not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrPriceMismatch   = errors.New("conflicting price for product")
	ErrDuplicateOrder  = errors.New("order already exists")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrMissingID       = errors.New("order id required")
)
