package resolver

import (
	"errors"
)

var (
	// ErrUnauthorized is returned when the caller isn't the resolver.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidOrder is returned for orders or instructions that are
	// missing required fields.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrOrderNotFound is returned when no order exists for an order hash.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderAlreadyExists is returned when an order is deployed for an
	// order hash that is already taken.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// ErrOwnershipNotSupported is returned by the default ownership
	// manager for every ownership update.
	ErrOwnershipNotSupported = errors.New("ownership updates not " +
		"supported")

	// ErrNotInstantiated is returned when the resolver config is missing.
	ErrNotInstantiated = errors.New("resolver not instantiated")
)
