package services

import "errors"

var (
	// ErrTradeNotFound means the targeted trade does not exist.
	ErrTradeNotFound = errors.New("trade not found")

	// ErrNotOwner means a mutation targeted a trade belonging to another
	// user. It is rejected before any store mutation.
	ErrNotOwner = errors.New("trade does not belong to user")

	// ErrRecomputeFailed means the analytics recompute could not complete.
	// Already-committed trade writes are untouched; the snapshot stays
	// stale and is retried on the next analytics read.
	ErrRecomputeFailed = errors.New("analytics recompute failed")

	// ErrParsingFailed means an uploaded CSV could not be parsed at all.
	ErrParsingFailed = errors.New("csv parsing failed")
)
