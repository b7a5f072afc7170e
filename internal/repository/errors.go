// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrInsufficientTokens indicates that an atomic debit could
// not proceed because the ledger balance is zero, while ErrForbidden
// signals that the current user is trying to act on a resource owned
// by someone else.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrInsufficientTokens is returned when a debit transaction finds a
// ledger balance below the amount being charged. Handlers should
// translate this into an HTTP 402 response. The transaction rolls
// back, so no generation row is created and no token is consumed.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrWatermarkAlreadyRemoved is returned when a watermark-removal debit
// is attempted on a generation whose watermark was already paid for.
var ErrWatermarkAlreadyRemoved = errors.New("watermark already removed")
