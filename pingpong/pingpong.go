// Package pingpong implements a stateless diagnostic contract that is used to
// check that a host accepts commands and answers queries.
package pingpong

import (
	"context"
	"encoding/json"

	"github.com/lightninglabs/xswap/chain"
)

// Pong is the answer of the get_ping query.
const Pong = "pong"

// Contract is the pingpong contract.
type Contract struct{}

// A compile-time flag to ensure that Contract implements the chain.Contract
// interface.
var _ chain.Contract = (*Contract)(nil)

// New returns the pingpong contract code.
func New() *Contract {
	return &Contract{}
}

// Instantiate accepts an empty message.
func (c *Contract) Instantiate(_ context.Context, _ *chain.Deps, _ chain.Env,
	_ chain.MessageInfo, raw []byte) (*chain.Response, error) {

	if err := chain.DecodeStrict(raw, &struct{}{}); err != nil {
		return nil, err
	}

	return chain.NewResponse().AddAttribute("method", "instantiate"), nil
}

// Execute handles ping.
func (c *Contract) Execute(_ context.Context, _ *chain.Deps, _ chain.Env,
	_ chain.MessageInfo, raw []byte) (*chain.Response, error) {

	if err := decode(raw, "ping"); err != nil {
		return nil, err
	}

	return chain.NewResponse().AddAttribute("method", "ping"), nil
}

// Query handles get_ping.
func (c *Contract) Query(_ context.Context, _ *chain.QueryDeps, _ chain.Env,
	raw []byte) ([]byte, error) {

	if err := decode(raw, "get_ping"); err != nil {
		return nil, err
	}

	return json.Marshal(Pong)
}

// decode checks that raw is the single variant tag with an empty body.
func decode(raw []byte, tag string) error {
	got, body, err := chain.DecodeTagged(raw)
	if err != nil {
		return err
	}

	if got != tag {
		return chain.UnknownVariant(got)
	}

	return chain.DecodeStrict(body, &struct{}{})
}
