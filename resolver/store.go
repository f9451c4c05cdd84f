package resolver

import (
	"errors"
	"fmt"

	"github.com/lightninglabs/xswap/kvdb"
)

const (
	// configStore holds the single resolver config entry.
	configStore = "resolver_address"

	// ordersStore holds all orders keyed by order hash.
	ordersStore = "orders"
)

// configKey is the key of the resolver config.
var configKey = []byte("resolver")

// Config is the immutable resolver configuration, written once at
// instantiation.
type Config struct {
	// ResolverAddress is the only identity allowed to deploy orders and
	// relay withdrawals and cancellations.
	ResolverAddress string `json:"resolver_address"`
}

func fetchConfig(bucket kvdb.RBucket) (*Config, error) {
	value, err := bucket.Get(configKey)
	switch {
	case errors.Is(err, kvdb.ErrKeyNotFound):
		return nil, ErrNotInstantiated

	case err != nil:
		return nil, err
	}

	return deserializeConfig(value)
}

func putConfig(bucket kvdb.RwBucket, cfg *Config) error {
	value, err := serializeConfig(cfg)
	if err != nil {
		return err
	}

	return bucket.Put(configKey, value)
}

func fetchOrder(bucket kvdb.RBucket, orderHash string) (*Order, error) {
	value, err := bucket.Get([]byte(orderHash))
	switch {
	case errors.Is(err, kvdb.ErrKeyNotFound):
		return nil, fmt.Errorf("%w: %v", ErrOrderNotFound, orderHash)

	case err != nil:
		return nil, err
	}

	return deserializeOrder(value)
}

func putOrder(bucket kvdb.RwBucket, o *Order) error {
	value, err := serializeOrder(o)
	if err != nil {
		return err
	}

	return bucket.Put([]byte(o.OrderHash), value)
}
