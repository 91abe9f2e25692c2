// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and map
// them onto HTTP statuses: ErrForbidden becomes 403, ErrConflict 409,
// validation-class errors 400, and sql.ErrNoRows 404.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as editing another user's listing.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// the current state of the data, such as requesting to buy a listing
// that is no longer available or deleting a user with live listings.
var ErrConflict = errors.New("conflict")

// ErrInvalidTransition is returned when a status change is not allowed
// by the listing state machine (e.g. available -> sold without passing
// through pending).
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotAuction is returned when a bidding operation targets a
// fixed-price listing.
var ErrNotAuction = errors.New("listing is not an auction")

// ErrBiddingClosed is returned when a bid arrives after the listing
// left the available state or after its bidding end date passed.
var ErrBiddingClosed = errors.New("bidding is closed")

// ErrBidTooLow is returned when a bid does not exceed the current
// highest bid (or the starting price when no bids exist yet).
var ErrBidTooLow = errors.New("bid amount too low")

// ErrSelfBid is returned when a seller bids on, or requests to buy,
// their own listing.
var ErrSelfBid = errors.New("cannot bid on own listing")
