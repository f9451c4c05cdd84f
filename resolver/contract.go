package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
)

const (
	// ContractName is the name the contract records at instantiation.
	ContractName = "xswap:resolver"

	// ContractVersion is the version the contract records at
	// instantiation.
	ContractVersion = "0.1.0"
)

// EscrowBinder binds the target of a nested call to an escrow capability.
type EscrowBinder func(callee *chain.Callee) (escrow.Capability, error)

// Option configures the resolver contract.
type Option func(*Contract)

// WithOwnershipManager replaces the default ownership manager, which rejects
// all updates.
func WithOwnershipManager(manager OwnershipManager) Option {
	return func(c *Contract) {
		c.ownership = manager
	}
}

// WithEscrowBinder replaces escrow.Bind as the way escrow instances are
// reached.
func WithEscrowBinder(binder EscrowBinder) Option {
	return func(c *Contract) {
		c.bind = binder
	}
}

// Contract is the resolver contract. It records the orders of both legs of
// a swap and relays withdrawals and cancellations to the escrows on behalf
// of the resolver.
type Contract struct {
	ownership OwnershipManager
	bind      EscrowBinder
}

// A compile-time flag to ensure that Contract implements the chain.Contract
// interface.
var _ chain.Contract = (*Contract)(nil)

// New returns the resolver contract code.
func New(opts ...Option) *Contract {
	c := &Contract{
		ownership: &noOwnership{},
		bind:      escrow.Bind,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Instantiate stores the resolver config.
func (c *Contract) Instantiate(_ context.Context, deps *chain.Deps,
	_ chain.Env, _ chain.MessageInfo, raw []byte) (*chain.Response, error) {

	var msg InstantiateMsg
	if err := chain.DecodeStrict(raw, &msg); err != nil {
		return nil, err
	}

	if msg.ResolverAddress == "" {
		return nil, fmt.Errorf("%w: missing resolver address",
			chain.ErrInvalidMessage)
	}

	err := deps.SetContractVersion(ContractName, ContractVersion)
	if err != nil {
		return nil, err
	}

	bucket, err := deps.Storage(configStore)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ResolverAddress: msg.ResolverAddress,
	}
	if err := putConfig(bucket, cfg); err != nil {
		return nil, err
	}

	log.Infof("Resolver instantiated for %v", cfg.ResolverAddress)

	return chain.NewResponse().
		AddAttribute("method", "instantiate").
		AddAttribute("resolver", cfg.ResolverAddress), nil
}

// Execute dispatches a command.
func (c *Contract) Execute(ctx context.Context, deps *chain.Deps,
	env chain.Env, info chain.MessageInfo,
	raw []byte) (*chain.Response, error) {

	msg, err := DecodeExecuteMsg(raw)
	if err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case *DeploySrcEscrowMsg:
		return c.deployOrder(deps, info, "deploy_src_escrow", &m.Order)

	case *DeployDstEscrowMsg:
		return c.deployOrder(deps, info, "deploy_dst_escrow", &m.Order)

	case *WithdrawMsg:
		return c.Withdraw(ctx, deps, info, m)

	case *CancelMsg:
		return c.Cancel(ctx, deps, info, m)

	case *UpdateOwnershipMsg:
		return c.ownership.UpdateOwnership(ctx, deps, info, m.Action)

	default:
		return nil, fmt.Errorf("unhandled message %T", msg)
	}
}

// Query dispatches a query.
func (c *Contract) Query(ctx context.Context, deps *chain.QueryDeps,
	_ chain.Env, raw []byte) ([]byte, error) {

	msg, err := DecodeQueryMsg(raw)
	if err != nil {
		return nil, err
	}

	switch q := msg.(type) {
	case *GetOrderQuery:
		bucket, err := deps.Storage(ordersStore)
		if err != nil {
			return nil, err
		}

		order, err := fetchOrder(bucket, q.OrderHash)
		if err != nil {
			return nil, err
		}

		return json.Marshal(order)

	case *OwnershipQuery:
		owner, err := c.ownership.Ownership(ctx, deps)
		if err != nil {
			return nil, err
		}

		return json.Marshal(owner)

	case *ConfigQuery:
		bucket, err := deps.Storage(configStore)
		if err != nil {
			return nil, err
		}

		cfg, err := fetchConfig(bucket)
		if err != nil {
			return nil, err
		}

		return json.Marshal(cfg)

	default:
		return nil, fmt.Errorf("unhandled query %T", msg)
	}
}

// authorize loads the config and checks that the caller is the resolver.
func (c *Contract) authorize(deps *chain.Deps,
	info chain.MessageInfo) (*Config, error) {

	bucket, err := deps.Storage(configStore)
	if err != nil {
		return nil, err
	}

	cfg, err := fetchConfig(bucket)
	if err != nil {
		return nil, err
	}

	if info.Sender != cfg.ResolverAddress {
		return nil, fmt.Errorf("%w: %v is not the resolver",
			ErrUnauthorized, info.Sender)
	}

	return cfg, nil
}

// deployOrder records the order of one leg. Source and destination legs are
// stored the same way and only differ in the method attribute.
func (c *Contract) deployOrder(deps *chain.Deps, info chain.MessageInfo,
	method string, order *Order) (*chain.Response, error) {

	if _, err := c.authorize(deps, info); err != nil {
		return nil, err
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	bucket, err := deps.Storage(ordersStore)
	if err != nil {
		return nil, err
	}

	_, err = fetchOrder(bucket, order.OrderHash)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %v", ErrOrderAlreadyExists,
			order.OrderHash)

	case !errors.Is(err, ErrOrderNotFound):
		return nil, err
	}

	if err := putOrder(bucket, order); err != nil {
		return nil, err
	}

	log.Infof("Recorded order %v (%v) of %d%s from %v to %v",
		order.OrderHash, method, order.Amount, order.Token, order.Maker,
		order.Taker)

	return chain.NewResponse().
		AddAttribute("method", method).
		AddAttribute("order_hash", order.OrderHash).
		AddAttribute("maker", order.Maker).
		AddAttribute("taker", order.Taker), nil
}

// Withdraw claims the escrow at the given address with the secret. The
// escrow sees the resolver contract as claimer.
func (c *Contract) Withdraw(ctx context.Context, deps *chain.Deps,
	info chain.MessageInfo, msg *WithdrawMsg) (*chain.Response, error) {

	return c.relay(
		ctx, deps, info, "withdraw", msg.Side, msg.EscrowAddress,
		msg.Immutables, func(ctx context.Context,
			capability escrow.Capability,
			orderHash string) (*chain.Response, error) {

			return capability.Claim(ctx, orderHash, msg.Secret)
		},
	)
}

// Cancel refunds the escrow at the given address. The escrow sees the
// resolver contract as refunder.
func (c *Contract) Cancel(ctx context.Context, deps *chain.Deps,
	info chain.MessageInfo, msg *CancelMsg) (*chain.Response, error) {

	return c.relay(
		ctx, deps, info, "cancel", msg.Side, msg.EscrowAddress,
		msg.Immutables, func(ctx context.Context,
			capability escrow.Capability,
			orderHash string) (*chain.Response, error) {

			return capability.Refund(ctx, orderHash)
		},
	)
}

// relay authorizes the caller and runs fn against the escrow capability of
// the given address as a nested call.
func (c *Contract) relay(ctx context.Context, deps *chain.Deps,
	info chain.MessageInfo, method, side, escrowAddress, immutables string,
	fn func(context.Context, escrow.Capability,
		string) (*chain.Response, error)) (*chain.Response, error) {

	if _, err := c.authorize(deps, info); err != nil {
		return nil, err
	}

	if escrowAddress == "" {
		return nil, fmt.Errorf("%w: missing escrow address",
			ErrInvalidOrder)
	}

	orderHash, err := ParseImmutables(immutables)
	if err != nil {
		return nil, err
	}

	_, err = deps.Call(ctx, escrowAddress, func(ctx context.Context,
		callee *chain.Callee) (*chain.Response, error) {

		capability, err := c.bind(callee)
		if err != nil {
			return nil, err
		}

		return fn(ctx, capability, orderHash)
	})
	if err != nil {
		log.Debugf("%v of %v on %v (%v) failed: %v", method, orderHash,
			escrowAddress, side, err)

		return nil, err
	}

	log.Infof("Relayed %v of %v to %v (%v)", method, orderHash,
		escrowAddress, side)

	return chain.NewResponse().
		AddAttribute("method", method).
		AddAttribute("side", side).
		AddAttribute("escrow", escrowAddress).
		AddAttribute("order_hash", orderHash), nil
}
