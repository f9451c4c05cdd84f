package escrow

import (
	"context"
	"fmt"

	"github.com/lightninglabs/xswap/chain"
)

// Capability is the part of an escrow another contract may drive through a
// nested call. The caller of a bound capability is the calling contract.
type Capability interface {
	// Claim claims the escrow with the preimage.
	Claim(ctx context.Context, orderHash,
		preimage string) (*chain.Response, error)

	// Refund refunds the escrow to the maker.
	Refund(ctx context.Context, orderHash string) (*chain.Response, error)
}

// boundEscrow is an escrow contract bound to the instance of a nested call.
type boundEscrow struct {
	contract *Contract
	callee   *chain.Callee
}

// A compile-time flag to ensure that boundEscrow implements the Capability
// interface.
var _ Capability = (*boundEscrow)(nil)

// Bind returns the escrow capability of a nested call target. It fails with
// chain.ErrWrongContractType if the target isn't an escrow contract.
func Bind(callee *chain.Callee) (Capability, error) {
	contract, ok := callee.Contract.(*Contract)
	if !ok {
		return nil, fmt.Errorf("%w: %v runs code %d, not an escrow",
			chain.ErrWrongContractType, callee.Address,
			callee.CodeID)
	}

	return &boundEscrow{
		contract: contract,
		callee:   callee,
	}, nil
}

// Claim claims the escrow with the calling contract as claimer.
func (b *boundEscrow) Claim(ctx context.Context, orderHash,
	preimage string) (*chain.Response, error) {

	return b.contract.Claim(
		ctx, b.callee.Deps, b.callee.Env, b.callee.Info, orderHash,
		preimage,
	)
}

// Refund refunds the escrow with the calling contract as refunder.
func (b *boundEscrow) Refund(ctx context.Context,
	orderHash string) (*chain.Response, error) {

	return b.contract.Refund(
		ctx, b.callee.Deps, b.callee.Env, b.callee.Info, orderHash,
	)
}
