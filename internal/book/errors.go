package book

import "errors"

var (
	// ErrInactiveMarket is returned by Place on a market that has settled.
	ErrInactiveMarket = errors.New("book: market is inactive")
	// ErrDuplicateOrderID is returned by Place when the order id is already
	// resting in this book.
	ErrDuplicateOrderID = errors.New("book: duplicate order id")
	// ErrNonPositivePrice is returned by Place for price <= 0.
	ErrNonPositivePrice = errors.New("book: price must be positive")
	// ErrNonPositiveQuantity is returned by Place for qty <= 0.
	ErrNonPositiveQuantity = errors.New("book: quantity must be positive")
	// ErrUnknownOrder is returned by Cancel when the id is not resting in
	// this book.
	ErrUnknownOrder = errors.New("book: unknown order id")
)
