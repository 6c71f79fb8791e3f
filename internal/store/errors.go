package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist, or does
	// not exist for the caller's identity (the two cases are deliberately
	// indistinguishable so callers cannot probe other tenants' data).
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when an insert violates a uniqueness
	// constraint, e.g. the same URL registered twice by one owner.
	ErrDuplicateKey = errors.New("duplicate")
	// ErrRateLimited is returned when token issuance exceeds the per-IP cap.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenExpired is returned when an operation requires a live
	// anonymous token but the token has expired.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenClaimed is returned when claiming a token that has already
	// been claimed by a user.
	ErrTokenClaimed = errors.New("token already claimed")
)
