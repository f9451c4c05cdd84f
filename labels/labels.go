package labels

import (
	"errors"
	"strings"
)

const (
	// MaxLength is the maximum length of a contract label in bytes.
	MaxLength = 128

	// Reserved prefixes the labels of contracts instantiated at genesis.
	Reserved = "[genesis]"

	separator = ": "
)

var (
	// ErrLabelTooLong is returned when a label exceeds MaxLength.
	ErrLabelTooLong = errors.New("label exceeds maximum length")

	// ErrReservedPrefix is returned when a transaction label starts with
	// the genesis prefix.
	ErrReservedPrefix = errors.New("label contains reserved prefix")
)

// Genesis returns the label a genesis contract is registered under.
func Genesis(label string) string {
	return Reserved + separator + label
}

// IsGenesis reports whether the label belongs to a genesis contract.
func IsGenesis(label string) bool {
	return strings.HasPrefix(label, Reserved)
}

// Strip returns the label as it was given at instantiation, without the
// genesis prefix.
func Strip(label string) string {
	if !IsGenesis(label) {
		return label
	}

	label = strings.TrimPrefix(label, Reserved)

	return strings.TrimPrefix(label, separator)
}

// Validate checks a label given by a transaction. Only the start of the label
// is checked for the reserved prefix.
func Validate(label string) error {
	switch {
	case len(label) > MaxLength:
		return ErrLabelTooLong

	case IsGenesis(label):
		return ErrReservedPrefix

	default:
		return nil
	}
}
