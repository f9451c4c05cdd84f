package resolver

import (
	"context"
	"fmt"

	"github.com/lightninglabs/xswap/chain"
)

// PlaceholderOwner is the owner reported by the default ownership manager.
const PlaceholderOwner = "owner"

// OwnershipManager governs the ownership of a resolver instance.
type OwnershipManager interface {
	// Ownership returns the current owner.
	Ownership(ctx context.Context, deps *chain.QueryDeps) (string, error)

	// UpdateOwnership applies an ownership action sent by the caller.
	UpdateOwnership(ctx context.Context, deps *chain.Deps,
		info chain.MessageInfo, action string) (*chain.Response, error)
}

// noOwnership is the default manager. It reports a fixed owner and accepts
// no updates.
type noOwnership struct{}

// A compile-time flag to ensure that noOwnership implements the
// OwnershipManager interface.
var _ OwnershipManager = (*noOwnership)(nil)

func (n *noOwnership) Ownership(_ context.Context,
	_ *chain.QueryDeps) (string, error) {

	return PlaceholderOwner, nil
}

func (n *noOwnership) UpdateOwnership(_ context.Context, _ *chain.Deps,
	info chain.MessageInfo, action string) (*chain.Response, error) {

	return nil, fmt.Errorf("%w: %q from %v", ErrOwnershipNotSupported,
		action, info.Sender)
}
