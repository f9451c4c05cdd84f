package chain

import (
	"errors"
	"fmt"
	"math"

	"github.com/lightninglabs/xswap/kvdb"
)

var (
	// bankBucketKey is the bucket that holds all account balances. Keys
	// are address || 0x00 || denom, values are big endian uint64.
	bankBucketKey = []byte("bank")

	// ErrInsufficientFunds is returned when an account balance is too low
	// for a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceOverflow is returned when a transfer would overflow the
	// balance of the recipient.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrInvalidCoin is returned for coins without denomination or with a
	// zero amount.
	ErrInvalidCoin = errors.New("invalid coin")
)

// balanceKey returns the bank key of the given account and denomination.
func balanceKey(addr, denom string) []byte {
	key := make([]byte, 0, len(addr)+1+len(denom))
	key = append(key, addr...)
	key = append(key, 0)
	key = append(key, denom...)

	return key
}

// validateCoins checks that all coins carry a denomination and a non-zero
// amount.
func validateCoins(coins []Coin) error {
	for _, coin := range coins {
		if coin.Denom == "" || coin.Amount == 0 {
			return fmt.Errorf("%w: %v", ErrInvalidCoin, coin)
		}
	}

	return nil
}

// getBalance reads the balance of an account.
func getBalance(bucket kvdb.RBucket, addr, denom string) (uint64, error) {
	value, err := bucket.Get(balanceKey(addr, denom))
	switch {
	case errors.Is(err, kvdb.ErrKeyNotFound):
		return 0, nil

	case err != nil:
		return 0, err
	}

	if len(value) != 8 {
		return 0, fmt.Errorf("corrupt balance of %v", addr)
	}

	return byteOrder.Uint64(value), nil
}

// putBalance writes the balance of an account. Empty balances are removed.
func putBalance(bucket kvdb.RwBucket, addr, denom string,
	amount uint64) error {

	if amount == 0 {
		return bucket.Delete(balanceKey(addr, denom))
	}

	return bucket.Put(balanceKey(addr, denom), itob(amount))
}

// mint credits coins to an account.
func mint(tx kvdb.RwTx, to string, coins []Coin) error {
	if err := validateCoins(coins); err != nil {
		return err
	}

	bucket, err := tx.ReadWriteBucket(bankBucketKey)
	if err != nil {
		return err
	}

	for _, coin := range coins {
		balance, err := getBalance(bucket, to, coin.Denom)
		if err != nil {
			return err
		}

		if balance > math.MaxUint64-coin.Amount {
			return fmt.Errorf("%w: %v + %v", ErrBalanceOverflow,
				balance, coin)
		}

		err = putBalance(bucket, to, coin.Denom, balance+coin.Amount)
		if err != nil {
			return err
		}
	}

	return nil
}

// send moves coins between two accounts. Either all coins are moved or the
// transaction has to be rolled back by the caller.
func send(tx kvdb.RwTx, from, to string, coins []Coin) error {
	if err := validateCoins(coins); err != nil {
		return err
	}

	bucket, err := tx.ReadWriteBucket(bankBucketKey)
	if err != nil {
		return err
	}

	for _, coin := range coins {
		fromBalance, err := getBalance(bucket, from, coin.Denom)
		if err != nil {
			return err
		}

		if fromBalance < coin.Amount {
			return fmt.Errorf("%w: %v has %d%s, needs %v",
				ErrInsufficientFunds, from, fromBalance,
				coin.Denom, coin)
		}

		err = putBalance(
			bucket, from, coin.Denom, fromBalance-coin.Amount,
		)
		if err != nil {
			return err
		}

		toBalance, err := getBalance(bucket, to, coin.Denom)
		if err != nil {
			return err
		}

		if toBalance > math.MaxUint64-coin.Amount {
			return fmt.Errorf("%w: %v + %v", ErrBalanceOverflow,
				toBalance, coin)
		}

		err = putBalance(bucket, to, coin.Denom, toBalance+coin.Amount)
		if err != nil {
			return err
		}
	}

	log.Debugf("Sent %v from %v to %v", CoinsString(coins), from, to)

	return nil
}

// allBalances returns all non-zero balances of an account.
func allBalances(tx kvdb.RTx, addr string) ([]Coin, error) {
	bucket, err := tx.ReadBucket(bankBucketKey)
	if err != nil {
		return nil, err
	}

	prefix := balanceKey(addr, "")

	var coins []Coin
	err = bucket.ForEachAfter(prefix, func(k, v []byte) error {
		if len(k) < len(prefix) || string(k[:len(prefix)]) !=
			string(prefix) {

			return kvdb.ErrStopIteration
		}

		coins = append(coins, Coin{
			Denom:  string(k[len(prefix):]),
			Amount: byteOrder.Uint64(v),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return coins, nil
}
