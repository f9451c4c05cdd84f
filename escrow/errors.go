package escrow

import (
	"errors"
)

var (
	// ErrUnauthorized is returned when the caller isn't the party allowed
	// to claim or refund the escrow.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAmount is returned when an escrow is created without
	// value.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidFunds is returned when the coins attached to a new escrow
	// aren't exactly its amount of its token.
	ErrInvalidFunds = errors.New("invalid funds")

	// ErrInvalidTimelock is returned when an escrow is created with a
	// timelock that isn't in the future.
	ErrInvalidTimelock = errors.New("invalid timelock")

	// ErrTimelockExpired is returned when a claim arrives at or after the
	// timelock.
	ErrTimelockExpired = errors.New("timelock expired")

	// ErrTimelockNotExpired is returned when a refund arrives before the
	// timelock.
	ErrTimelockNotExpired = errors.New("timelock not expired")

	// ErrInvalidPreimage is returned when the preimage doesn't hash to the
	// hashlock.
	ErrInvalidPreimage = errors.New("invalid preimage")

	// ErrEscrowNotActive is returned for claims and refunds of an escrow
	// that was already claimed or refunded.
	ErrEscrowNotActive = errors.New("escrow not active")

	// ErrEscrowAlreadyExists is returned when an escrow is created for an
	// order hash that is already taken.
	ErrEscrowAlreadyExists = errors.New("escrow already exists")

	// ErrEscrowNotFound is returned when no escrow exists for an order
	// hash.
	ErrEscrowNotFound = errors.New("escrow not found")

	// ErrInvalidHashlock is returned when a hashlock isn't a 32 byte
	// digest.
	ErrInvalidHashlock = errors.New("invalid hashlock")

	// ErrInvalidEscrow is returned for escrow records that are missing
	// required fields or carry an inconsistent status.
	ErrInvalidEscrow = errors.New("invalid escrow")
)
