package order

import "errors"

// ErrEmptyOrder is returned when an order is submitted with no items.
var ErrEmptyOrder = errors.New("order: no items")
