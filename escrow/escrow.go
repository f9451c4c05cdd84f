package escrow

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lightninglabs/xswap/fsm"
	"github.com/lightningnetwork/lnd/lntypes"
)

// Escrow is a hashed timelock escrow. The funds go to the taker if the
// preimage of the hashlock is presented before the timelock, and back to the
// maker once the timelock is reached.
type Escrow struct {
	// OrderHash identifies the swap and is the key of the escrow.
	OrderHash string

	// Maker funded the escrow and can refund it after the timelock.
	Maker string

	// Taker can claim the escrow with the preimage before the timelock.
	Taker string

	// Token is the denomination of the escrowed funds.
	Token string

	// Amount is the escrowed amount.
	Amount uint64

	// Hashlock is the sha256 digest of the preimage.
	Hashlock lntypes.Hash

	// Timelock is the absolute expiry in unix seconds.
	Timelock uint64

	// IsActive is set until the escrow is claimed or refunded.
	IsActive bool

	// IsClaimed is set once the taker claimed the funds.
	IsClaimed bool

	// IsRefunded is set once the maker got the funds back.
	IsRefunded bool
}

// State returns the lifecycle state the status flags describe.
func (e *Escrow) State() (fsm.StateType, error) {
	switch {
	case e.IsActive && !e.IsClaimed && !e.IsRefunded:
		return Active, nil

	case !e.IsActive && e.IsClaimed && !e.IsRefunded:
		return Claimed, nil

	case !e.IsActive && !e.IsClaimed && e.IsRefunded:
		return Refunded, nil

	default:
		return fsm.EmptyState, fmt.Errorf("%w: inconsistent status "+
			"active=%v claimed=%v refunded=%v", ErrInvalidEscrow,
			e.IsActive, e.IsClaimed, e.IsRefunded)
	}
}

// setState sets the status flags for the given state.
func (e *Escrow) setState(state fsm.StateType) {
	e.IsActive = state == Active
	e.IsClaimed = state == Claimed
	e.IsRefunded = state == Refunded
}

// MatchesPreimage reports whether the sha256 digest of the preimage bytes
// equals the hashlock.
func (e *Escrow) MatchesPreimage(preimage string) bool {
	digest := sha256.Sum256([]byte(preimage))

	return bytes.Equal(digest[:], e.Hashlock[:])
}

// HashPreimage returns the hashlock for a preimage.
func HashPreimage(preimage string) lntypes.Hash {
	return lntypes.Hash(sha256.Sum256([]byte(preimage)))
}

// escrowJSON is the wire form of an escrow.
type escrowJSON struct {
	OrderHash  string          `json:"order_hash"`
	Maker      string          `json:"maker"`
	Taker      string          `json:"taker"`
	Token      string          `json:"token"`
	Amount     string          `json:"amount"`
	Hashlock   json.RawMessage `json:"hashlock"`
	Timelock   uint64          `json:"timelock"`
	IsActive   bool            `json:"is_active"`
	IsClaimed  bool            `json:"is_claimed"`
	IsRefunded bool            `json:"is_refunded"`
}

// MarshalJSON encodes the escrow with the amount as decimal string and the
// hashlock as hex.
func (e Escrow) MarshalJSON() ([]byte, error) {
	hashlock, err := json.Marshal(e.Hashlock.String())
	if err != nil {
		return nil, err
	}

	return json.Marshal(&escrowJSON{
		OrderHash:  e.OrderHash,
		Maker:      e.Maker,
		Taker:      e.Taker,
		Token:      e.Token,
		Amount:     strconv.FormatUint(e.Amount, 10),
		Hashlock:   hashlock,
		Timelock:   e.Timelock,
		IsActive:   e.IsActive,
		IsClaimed:  e.IsClaimed,
		IsRefunded: e.IsRefunded,
	})
}

// UnmarshalJSON decodes an escrow. The hashlock is accepted either as hex
// string or as an array of 32 byte values.
func (e *Escrow) UnmarshalJSON(data []byte) error {
	var wire escrowJSON

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return err
	}

	amount, err := ParseAmount(wire.Amount)
	if err != nil {
		return err
	}

	hashlock, err := ParseHashlock(wire.Hashlock)
	if err != nil {
		return err
	}

	*e = Escrow{
		OrderHash:  wire.OrderHash,
		Maker:      wire.Maker,
		Taker:      wire.Taker,
		Token:      wire.Token,
		Amount:     amount,
		Hashlock:   hashlock,
		Timelock:   wire.Timelock,
		IsActive:   wire.IsActive,
		IsClaimed:  wire.IsClaimed,
		IsRefunded: wire.IsRefunded,
	}

	return nil
}

// ParseAmount parses a decimal amount string.
func ParseAmount(amount string) (uint64, error) {
	if amount == "" {
		return 0, nil
	}

	value, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	return value, nil
}

// ParseHashlock parses the JSON value of a hashlock, either a hex string or
// an array of byte values.
func ParseHashlock(raw json.RawMessage) (lntypes.Hash, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return lntypes.Hash{}, fmt.Errorf("%w: missing",
			ErrInvalidHashlock)
	}

	var hexHash string
	if err := json.Unmarshal(raw, &hexHash); err == nil {
		hash, err := lntypes.MakeHashFromStr(hexHash)
		if err != nil {
			return lntypes.Hash{}, fmt.Errorf("%w: %v",
				ErrInvalidHashlock, err)
		}

		return hash, nil
	}

	var byteValues []uint8
	if err := json.Unmarshal(raw, &byteValues); err != nil {
		return lntypes.Hash{}, fmt.Errorf("%w: %v", ErrInvalidHashlock,
			err)
	}

	hash, err := lntypes.MakeHash(byteValues)
	if err != nil {
		return lntypes.Hash{}, fmt.Errorf("%w: %v", ErrInvalidHashlock,
			err)
	}

	return hash, nil
}
