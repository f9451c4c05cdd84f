package abci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/labels"
)

const (
	// TxTypeInstantiate creates a new contract instance.
	TxTypeInstantiate = "instantiate"

	// TxTypeExecute runs a command on a contract instance.
	TxTypeExecute = "execute"
)

// Tx is the envelope of a transaction. The sender is the account of PubKey
// and the envelope is signed by its key, see Sign and Verify.
type Tx struct {
	// Type is either TxTypeInstantiate or TxTypeExecute.
	Type string `json:"type"`

	// Sender is the address of the caller, derived from PubKey.
	Sender string `json:"sender"`

	// PubKey is the hex encoded x-only public key of the sender.
	PubKey string `json:"pub_key"`

	// Sequence is the number of transactions the sender sent before.
	Sequence uint64 `json:"sequence"`

	// Signature is the hex encoded schnorr signature over SignHash.
	Signature string `json:"signature,omitempty"`

	// CodeID is the code to instantiate.
	CodeID uint64 `json:"code_id,omitempty"`

	// Label is the label of a new instance.
	Label string `json:"label,omitempty"`

	// Contract is the address of the contract to execute.
	Contract string `json:"contract,omitempty"`

	// Msg is the JSON message passed to the contract.
	Msg json.RawMessage `json:"msg"`

	// Funds are moved from the sender to the contract before the call.
	Funds []chain.Coin `json:"funds,omitempty"`
}

// DecodeTx decodes and validates a transaction.
func DecodeTx(raw []byte) (*Tx, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var tx Tx
	if err := dec.Decode(&tx); err != nil {
		return nil, fmt.Errorf("%w: %w", chain.ErrInvalidMessage, err)
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}

	return &tx, nil
}

// Encode returns the JSON encoding of the transaction.
func (t *Tx) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// Validate checks the envelope without looking at the contract message.
func (t *Tx) Validate() error {
	if t.Sender == "" {
		return fmt.Errorf("%w: missing sender", chain.ErrInvalidMessage)
	}

	if len(t.Msg) == 0 || string(t.Msg) == "null" {
		return fmt.Errorf("%w: missing msg", chain.ErrInvalidMessage)
	}

	switch t.Type {
	case TxTypeInstantiate:
		if t.CodeID == 0 {
			return fmt.Errorf("%w: missing code id",
				chain.ErrInvalidMessage)
		}

		if err := labels.Validate(t.Label); err != nil {
			return fmt.Errorf("%w: %w", chain.ErrInvalidMessage,
				err)
		}

	case TxTypeExecute:
		if t.Contract == "" {
			return fmt.Errorf("%w: missing contract",
				chain.ErrInvalidMessage)
		}

	default:
		return fmt.Errorf("%w: unknown tx type %q",
			chain.ErrInvalidMessage, t.Type)
	}

	return nil
}

// Apply runs a transaction on the host.
func Apply(ctx context.Context, host *chain.Chain, block chain.Block,
	tx *Tx) (*chain.Result, error) {

	switch tx.Type {
	case TxTypeInstantiate:
		return host.Instantiate(
			ctx, block, tx.Sender, tx.CodeID, tx.Label, tx.Msg,
			tx.Funds,
		)

	case TxTypeExecute:
		return host.Execute(
			ctx, block, tx.Sender, tx.Contract, tx.Msg, tx.Funds,
		)

	default:
		return nil, fmt.Errorf("%w: unknown tx type %q",
			chain.ErrInvalidMessage, tx.Type)
	}
}
