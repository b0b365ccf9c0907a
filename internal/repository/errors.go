// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.
package repository

import (
	"errors"
	"strings"
)

// ErrConflict is returned when a compare-and-swap status update affects
// zero rows because another transaction consumed the entity first, such
// as two acceptances racing for the same item. Handlers should translate
// this into an HTTP 409 response and tell the caller to re-fetch.
var ErrConflict = errors.New("conflict")

// ErrInsufficientPoints is returned when a balance debit would drop a
// user's points below zero. Handlers should translate this into an
// HTTP 402 response.
var ErrInsufficientPoints = errors.New("insufficient points")

// lockConflict reports whether err is a MySQL deadlock (1213) or lock
// wait timeout (1205). Two acceptances racing over overlapping swap and
// item rows can lock them in opposite orders; InnoDB resolves that by
// killing one transaction. The killed side lost the race like any CAS
// loser, so tx methods map these errors to ErrConflict.
func lockConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "1213") || strings.Contains(msg, "1205")
}
