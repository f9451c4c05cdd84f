package resolver

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Order is the resolver's record of one leg of a swap.
type Order struct {
	// OrderHash identifies the swap and is the key of the order.
	OrderHash string

	// Maker funds the escrow of the leg.
	Maker string

	// Taker receives the funds of the leg.
	Taker string

	// Token is the denomination of the leg.
	Token string

	// Amount is the amount of the leg.
	Amount uint64

	// Hashlock is the commitment to the swap secret. The resolver only
	// records it, so its length isn't enforced.
	Hashlock []byte

	// Timelock is the absolute expiry of the leg in unix seconds.
	Timelock uint64
}

// Validate checks that the order can be stored.
func (o *Order) Validate() error {
	if o.OrderHash == "" {
		return fmt.Errorf("%w: missing order hash", ErrInvalidOrder)
	}

	return nil
}

// orderJSON is the wire form of an order.
type orderJSON struct {
	OrderHash string          `json:"order_hash"`
	Maker     string          `json:"maker"`
	Taker     string          `json:"taker"`
	Token     string          `json:"token"`
	Amount    string          `json:"amount"`
	Hashlock  json.RawMessage `json:"hashlock"`
	Timelock  uint64          `json:"timelock"`
}

// MarshalJSON encodes the order with the amount as decimal string and the
// hashlock as hex.
func (o Order) MarshalJSON() ([]byte, error) {
	hashlock, err := json.Marshal(hex.EncodeToString(o.Hashlock))
	if err != nil {
		return nil, err
	}

	return json.Marshal(&orderJSON{
		OrderHash: o.OrderHash,
		Maker:     o.Maker,
		Taker:     o.Taker,
		Token:     o.Token,
		Amount:    strconv.FormatUint(o.Amount, 10),
		Hashlock:  hashlock,
		Timelock:  o.Timelock,
	})
}

// UnmarshalJSON decodes an order. The hashlock is accepted either as hex
// string or as an array of byte values.
func (o *Order) UnmarshalJSON(data []byte) error {
	var wire orderJSON

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return err
	}

	var amount uint64
	if wire.Amount != "" {
		var err error
		amount, err = strconv.ParseUint(wire.Amount, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: amount: %v", ErrInvalidOrder, err)
		}
	}

	hashlock, err := parseHashlock(wire.Hashlock)
	if err != nil {
		return err
	}

	*o = Order{
		OrderHash: wire.OrderHash,
		Maker:     wire.Maker,
		Taker:     wire.Taker,
		Token:     wire.Token,
		Amount:    amount,
		Hashlock:  hashlock,
		Timelock:  wire.Timelock,
	}

	return nil
}

// parseHashlock parses a hex string or an array of byte values.
func parseHashlock(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var hexHash string
	if err := json.Unmarshal(raw, &hexHash); err == nil {
		hashlock, err := hex.DecodeString(hexHash)
		if err != nil {
			return nil, fmt.Errorf("%w: hashlock: %v",
				ErrInvalidOrder, err)
		}

		return hashlock, nil
	}

	var byteValues []uint8
	if err := json.Unmarshal(raw, &byteValues); err != nil {
		return nil, fmt.Errorf("%w: hashlock: %v", ErrInvalidOrder, err)
	}

	return byteValues, nil
}
