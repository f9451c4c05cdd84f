package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightninglabs/xswap/kvdb"
)

var (
	// accountsBucketKey holds the next expected sequence of every account
	// that sent a signed transaction, keyed by address.
	accountsBucketKey = []byte("accounts")

	// ErrInvalidSequence is returned when a transaction doesn't carry the
	// next sequence of its sender.
	ErrInvalidSequence = errors.New("invalid sequence")
)

// getSequence reads the next expected sequence of an account.
func getSequence(bucket kvdb.RBucket, addr string) (uint64, error) {
	value, err := bucket.Get([]byte(addr))
	switch {
	case errors.Is(err, kvdb.ErrKeyNotFound):
		return 0, nil

	case err != nil:
		return 0, err
	}

	if len(value) != 8 {
		return 0, fmt.Errorf("corrupt sequence of %v", addr)
	}

	return byteOrder.Uint64(value), nil
}

// Sequence returns the sequence the next transaction of the account must
// carry.
func (c *Chain) Sequence(ctx context.Context, addr string) (uint64, error) {
	var seq uint64
	err := c.db.View(ctx, func(tx kvdb.RTx) error {
		bucket, err := tx.ReadBucket(accountsBucketKey)
		if err != nil {
			return err
		}

		seq, err = getSequence(bucket, addr)

		return err
	})
	if err != nil {
		return 0, err
	}

	return seq, nil
}

// IncrementSequence consumes the sequence of a transaction. It fails with
// ErrInvalidSequence unless seq is the next expected sequence of the
// account, so every signed transaction is accepted at most once.
func (c *Chain) IncrementSequence(ctx context.Context, addr string,
	seq uint64) error {

	return c.db.Update(ctx, func(tx kvdb.RwTx) error {
		bucket, err := tx.ReadWriteBucket(accountsBucketKey)
		if err != nil {
			return err
		}

		expected, err := getSequence(bucket, addr)
		if err != nil {
			return err
		}

		if seq != expected {
			return fmt.Errorf("%w: account %v expects %d, got %d",
				ErrInvalidSequence, addr, expected, seq)
		}

		return bucket.Put([]byte(addr), itob(seq+1))
	})
}
