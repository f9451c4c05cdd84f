package escrow

import (
	"errors"
	"fmt"

	"github.com/lightninglabs/xswap/kvdb"
)

const (
	// escrowsStore is the name of the contract store that holds all
	// escrows keyed by order hash.
	escrowsStore = "escrows"

	// DefaultListLimit is the number of escrows listed if no limit is
	// given.
	DefaultListLimit = 30

	// MaxListLimit caps the number of escrows returned by one list query.
	MaxListLimit = 100
)

// fetchEscrow loads the escrow with the given order hash.
func fetchEscrow(bucket kvdb.RBucket, orderHash string) (*Escrow, error) {
	value, err := bucket.Get([]byte(orderHash))
	switch {
	case errors.Is(err, kvdb.ErrKeyNotFound):
		return nil, fmt.Errorf("%w: %v", ErrEscrowNotFound, orderHash)

	case err != nil:
		return nil, err
	}

	return deserializeEscrow(value)
}

// lookupEscrow loads the escrow with the given order hash, returning nil if
// there is none.
func lookupEscrow(bucket kvdb.RBucket, orderHash string) (*Escrow, error) {
	e, err := fetchEscrow(bucket, orderHash)
	if errors.Is(err, ErrEscrowNotFound) {
		return nil, nil
	}

	return e, err
}

// putEscrow stores an escrow under its order hash.
func putEscrow(bucket kvdb.RwBucket, e *Escrow) error {
	value, err := serializeEscrow(e)
	if err != nil {
		return err
	}

	return bucket.Put([]byte(e.OrderHash), value)
}

// listLimit applies the default and the cap to a requested limit.
func listLimit(limit *uint32) int {
	if limit == nil {
		return DefaultListLimit
	}

	if *limit > MaxListLimit {
		return MaxListLimit
	}

	return int(*limit)
}

// listEscrows returns up to limit escrows in ascending order hash order,
// starting after the given order hash.
func listEscrows(bucket kvdb.RBucket, startAfter *string,
	limit int) ([]*Escrow, error) {

	escrows := make([]*Escrow, 0)
	if limit == 0 {
		return escrows, nil
	}

	var cursor []byte
	if startAfter != nil {
		cursor = []byte(*startAfter)
	}

	err := bucket.ForEachAfter(cursor, func(_, v []byte) error {
		e, err := deserializeEscrow(v)
		if err != nil {
			return err
		}

		escrows = append(escrows, e)
		if len(escrows) == limit {
			return kvdb.ErrStopIteration
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return escrows, nil
}
