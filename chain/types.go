package chain

import (
	"fmt"
	"strings"
	"time"
)

// Block is the block context a message is executed in.
type Block struct {
	// Height is the height of the block.
	Height int64

	// Time is the block time. Contracts only ever look at the unix
	// seconds.
	Time time.Time

	// ChainID identifies the chain.
	ChainID string
}

// Seconds returns the block time in unix seconds. Times before the epoch
// are clamped to zero.
func (b Block) Seconds() uint64 {
	secs := b.Time.Unix()
	if secs < 0 {
		return 0
	}

	return uint64(secs)
}

// Env is the environment a contract call runs in.
type Env struct {
	// Block is the current block.
	Block Block

	// Contract is the address of the contract being called.
	Contract string
}

// MessageInfo carries the identity of the caller and the funds that were
// moved to the contract before the call.
type MessageInfo struct {
	// Sender is the address of the caller. For nested calls this is the
	// address of the calling contract.
	Sender string

	// Funds are the coins attached to the call.
	Funds []Coin
}

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string `json:"denom" yaml:"denom"`
	Amount uint64 `json:"amount,string" yaml:"amount"`
}

// String returns the coin in the usual <amount><denom> notation.
func (c Coin) String() string {
	return fmt.Sprintf("%d%s", c.Amount, c.Denom)
}

// CoinsString formats a list of coins as a comma separated string.
func CoinsString(coins []Coin) string {
	parts := make([]string, 0, len(coins))
	for _, coin := range coins {
		parts = append(parts, coin.String())
	}

	return strings.Join(parts, ",")
}

// Attribute is a key value pair emitted by a contract.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BankSend instructs the host to transfer coins from the contract account
// once the call returned successfully.
type BankSend struct {
	ToAddress string `json:"to_address"`
	Amount    []Coin `json:"amount"`
}

// Response is the result of a successful contract call.
type Response struct {
	// Attributes describe what the call did.
	Attributes []Attribute `json:"attributes"`

	// Messages are the transfers the host executes on behalf of the
	// contract, atomically with the call.
	Messages []BankSend `json:"messages,omitempty"`

	// Data is optional binary data returned to the caller.
	Data []byte `json:"data,omitempty"`
}

// NewResponse returns an empty response.
func NewResponse() *Response {
	return &Response{}
}

// AddAttribute appends an attribute and returns the response.
func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// AddMessage appends a transfer and returns the response.
func (r *Response) AddMessage(msg BankSend) *Response {
	r.Messages = append(r.Messages, msg)
	return r
}

// Attribute returns the value of the first attribute with the given key.
func (r *Response) Attribute(key string) (string, bool) {
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}

	return "", false
}

const (
	// EventTypeWasm is the type of the events carrying contract
	// attributes.
	EventTypeWasm = "wasm"

	// EventTypeTransfer is the type of the events emitted for every
	// executed bank transfer.
	EventTypeTransfer = "transfer"

	// EventTypeInstantiate is emitted when a contract is created.
	EventTypeInstantiate = "instantiate"

	// AttributeKeyContract is the attribute holding the contract address
	// an event belongs to.
	AttributeKeyContract = "_contract_address"
)

// Event is an entry of the event log of a host operation, including the
// events of nested calls in execution order.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Result is the outcome of a host operation.
type Result struct {
	// Contract is the address of the called contract.
	Contract string `json:"contract"`

	// Response is the response of the called contract.
	Response *Response `json:"response"`

	// Events is the ordered event log of the operation.
	Events []Event `json:"events"`
}

// wasmEvent returns the event for the attributes of a contract response.
func wasmEvent(contract string, resp *Response) Event {
	attrs := make([]Attribute, 0, len(resp.Attributes)+1)
	attrs = append(attrs, Attribute{
		Key: AttributeKeyContract, Value: contract,
	})
	attrs = append(attrs, resp.Attributes...)

	return Event{Type: EventTypeWasm, Attributes: attrs}
}

// transferEvent returns the event for an executed transfer.
func transferEvent(from, to string, coins []Coin) Event {
	return Event{
		Type: EventTypeTransfer,
		Attributes: []Attribute{
			{Key: "sender", Value: from},
			{Key: "recipient", Value: to},
			{Key: "amount", Value: CoinsString(coins)},
		},
	}
}
