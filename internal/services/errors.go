// Package services hosts the business workflows that sit between the HTTP
// handlers and the data/ledger/escrow layers. Every mutating operation runs
// inside one database transaction; cache invalidation and notifications run
// after commit and are best-effort.
package services

import "errors"

var (
	ErrUnauthorized        = errors.New("caller is not allowed to perform this operation")
	ErrInvalidInput        = errors.New("invalid input")
	ErrWorkerUnavailable   = errors.New("worker is not available")
	ErrServiceNotActive    = errors.New("service is not active")
	ErrInsufficientStock   = errors.New("not enough stock for the requested quantity")
	ErrSubscriptionExpired = errors.New("vendor subscription has expired")
	ErrIdentityNotVerified = errors.New("buyer identity is not verified for cross-state delivery")
	ErrDuplicateProperty   = errors.New("a matching property listing already exists")
	ErrAlreadyResponded    = errors.New("proposal has already been responded to")
	ErrDisputeNotOpen      = errors.New("dispute is not open")
)
