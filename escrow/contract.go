package escrow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/fsm"
)

const (
	// ContractName is the name the contract records at instantiation.
	ContractName = "xswap:escrow"

	// ContractVersion is the version the contract records at
	// instantiation.
	ContractVersion = "0.1.0"
)

// Contract is the hashed timelock escrow contract.
type Contract struct{}

// A compile-time flag to ensure that Contract implements the chain.Contract
// interface.
var _ chain.Contract = (*Contract)(nil)

// New returns the escrow contract code.
func New() *Contract {
	return &Contract{}
}

// Instantiate records the contract version.
func (c *Contract) Instantiate(_ context.Context, deps *chain.Deps,
	_ chain.Env, _ chain.MessageInfo, raw []byte) (*chain.Response, error) {

	var msg InstantiateMsg
	if err := chain.DecodeStrict(raw, &msg); err != nil {
		return nil, err
	}

	err := deps.SetContractVersion(ContractName, ContractVersion)
	if err != nil {
		return nil, err
	}

	return chain.NewResponse().AddAttribute("method", "instantiate"), nil
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
	case *CreateEscrowMsg:
		return c.CreateEscrow(ctx, deps, env, info, &m.Escrow)

	case *ClaimMsg:
		return c.Claim(ctx, deps, env, info, m.OrderHash, m.Preimage)

	case *RefundMsg:
		return c.Refund(ctx, deps, env, info, m.OrderHash)

	default:
		return nil, fmt.Errorf("unhandled message %T", msg)
	}
}

// Query dispatches a query.
func (c *Contract) Query(_ context.Context, deps *chain.QueryDeps,
	_ chain.Env, raw []byte) ([]byte, error) {

	msg, err := DecodeQueryMsg(raw)
	if err != nil {
		return nil, err
	}

	bucket, err := deps.Storage(escrowsStore)
	if err != nil {
		return nil, err
	}

	switch q := msg.(type) {
	case *GetEscrowQuery:
		e, err := fetchEscrow(bucket, q.OrderHash)
		if err != nil {
			return nil, err
		}

		return json.Marshal(e)

	case *ListEscrowsQuery:
		escrows, err := listEscrows(
			bucket, q.StartAfter, listLimit(q.Limit),
		)
		if err != nil {
			return nil, err
		}

		return json.Marshal(escrows)

	default:
		return nil, fmt.Errorf("unhandled query %T", msg)
	}
}

// CreateEscrow validates and stores a new escrow in the active state.
func (c *Contract) CreateEscrow(ctx context.Context, deps *chain.Deps,
	env chain.Env, info chain.MessageInfo,
	e *Escrow) (*chain.Response, error) {

	if e.OrderHash == "" {
		return nil, fmt.Errorf("%w: missing order hash",
			ErrInvalidEscrow)
	}

	bucket, err := deps.Storage(escrowsStore)
	if err != nil {
		return nil, err
	}

	stored, err := lookupEscrow(bucket, e.OrderHash)
	if err != nil {
		return nil, err
	}

	// A stored escrow resumes the lifecycle in a state that rejects the
	// creation.
	l, err := newLifecycle(stored, e.OrderHash, env, info)
	if err != nil {
		return nil, err
	}

	record := *e
	if stored == nil {
		l.escrow = &record
	}

	err = l.send(
		ctx, OnCreate, nil,
		fmt.Errorf("%w: %v", ErrEscrowAlreadyExists, e.OrderHash),
	)
	if err != nil {
		return nil, err
	}

	if err := putEscrow(bucket, &record); err != nil {
		return nil, err
	}

	l.log.Infof("Created escrow of %d%s from %v to %v, timelock %d",
		record.Amount, record.Token, record.Maker, record.Taker,
		record.Timelock)

	return chain.NewResponse().
		AddAttribute("method", "create_escrow").
		AddAttribute("order_hash", record.OrderHash).
		AddAttribute("maker", record.Maker).
		AddAttribute("taker", record.Taker).
		AddAttribute("amount", strconv.FormatUint(record.Amount, 10)),
		nil
}

// Claim pays the escrow out to the taker if the preimage matches the
// hashlock before the timelock.
func (c *Contract) Claim(ctx context.Context, deps *chain.Deps,
	env chain.Env, info chain.MessageInfo, orderHash,
	preimage string) (*chain.Response, error) {

	l, err := c.settle(
		ctx, deps, env, info, orderHash, OnClaim,
		&claimRequest{preimage: preimage},
	)
	if err != nil {
		return nil, err
	}

	l.log.Infof("Escrow claimed by %v", info.Sender)

	return chain.NewResponse().
		AddMessage(*l.payout).
		AddAttribute("method", "claim").
		AddAttribute("order_hash", orderHash).
		AddAttribute("claimer", info.Sender), nil
}

// Refund pays the escrow back to the maker once the timelock is reached.
func (c *Contract) Refund(ctx context.Context, deps *chain.Deps,
	env chain.Env, info chain.MessageInfo,
	orderHash string) (*chain.Response, error) {

	l, err := c.settle(ctx, deps, env, info, orderHash, OnRefund, nil)
	if err != nil {
		return nil, err
	}

	l.log.Infof("Escrow refunded to %v", info.Sender)

	return chain.NewResponse().
		AddMessage(*l.payout).
		AddAttribute("method", "refund").
		AddAttribute("order_hash", orderHash).
		AddAttribute("refunder", info.Sender), nil
}

// settle loads an escrow, sends the claim or refund event and stores the
// resulting terminal state.
func (c *Contract) settle(ctx context.Context, deps *chain.Deps,
	env chain.Env, info chain.MessageInfo, orderHash string,
	event fsm.EventType, eventCtx fsm.EventContext) (*lifecycle, error) {

	bucket, err := deps.Storage(escrowsStore)
	if err != nil {
		return nil, err
	}

	e, err := fetchEscrow(bucket, orderHash)
	if err != nil {
		return nil, err
	}

	l, err := newLifecycle(e, orderHash, env, info)
	if err != nil {
		return nil, err
	}

	err = l.send(ctx, event, eventCtx, ErrEscrowNotActive)
	if err != nil {
		l.log.Debugf("%v by %v rejected: %v", event, info.Sender, err)
		return nil, err
	}

	if err := putEscrow(bucket, e); err != nil {
		return nil, err
	}

	return l, nil
}
