package swapd

import (
	"fmt"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/pingpong"
	"github.com/lightninglabs/xswap/resolver"
)

// Code ids of the contract codes every node registers. Genesis files and
// transactions refer to codes by these ids, so they must never change.
const (
	CodeIDEscrow   uint64 = 1
	CodeIDResolver uint64 = 2
	CodeIDPingpong uint64 = 3
)

// DefaultCodes returns the contract codes of the swap chain.
func DefaultCodes() []*chain.Code {
	return []*chain.Code{
		{ID: CodeIDEscrow, Name: "escrow", Contract: escrow.New()},
		{ID: CodeIDResolver, Name: "resolver", Contract: resolver.New()},
		{ID: CodeIDPingpong, Name: "pingpong", Contract: pingpong.New()},
	}
}

// RegisterDefaultCodes registers the default codes with the host.
func RegisterDefaultCodes(host *chain.Chain) error {
	for _, code := range DefaultCodes() {
		if err := host.RegisterCode(code); err != nil {
			return fmt.Errorf("register %v: %w", code.Name, err)
		}
	}

	return nil
}
