package resolver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/test"
	"github.com/stretchr/testify/require"
)

const (
	escrowCodeID   = 1
	resolverCodeID = 2

	resolverID = "resolver"
	maker      = "maker"
	stranger   = "stranger"
	secret     = "secret"
	lockTime   = time.Hour
)

// resolverContext is a host running an escrow and a resolver instance.
type resolverContext struct {
	t        *testing.T
	host     *test.Host
	escrow   string
	resolver string
}

func newResolverContext(t *testing.T, opts ...Option) *resolverContext {
	t.Helper()

	host := test.NewHost(t, &chain.Code{
		ID:       escrowCodeID,
		Name:     "escrow",
		Contract: escrow.New(),
	}, &chain.Code{
		ID:       resolverCodeID,
		Name:     "resolver",
		Contract: New(opts...),
	})
	host.Fund(t, maker, 10_000)

	return &resolverContext{
		t:    t,
		host: host,
		escrow: host.Instantiate(
			t, maker, escrowCodeID, []byte(`{"owner":"maker"}`),
		),
		resolver: host.Instantiate(
			t, resolverID, resolverCodeID,
			[]byte(`{"resolver_address":"resolver"}`),
		),
	}
}

func (c *resolverContext) execute(sender string,
	msg ExecuteMsg) (*chain.Result, error) {

	raw, err := EncodeExecuteMsg(msg)
	require.NoError(c.t, err)

	return c.host.Execute(sender, c.resolver, raw)
}

func (c *resolverContext) query(msg QueryMsg, answer interface{}) error {
	raw, err := EncodeQueryMsg(msg)
	require.NoError(c.t, err)

	resp, err := c.host.Query(c.resolver, raw)
	if err != nil {
		return err
	}

	return json.Unmarshal(resp, answer)
}

// createEscrow funds an escrow for the order hash. The resolver contract is
// the taker, so that it can withdraw.
func (c *resolverContext) createEscrow(orderHash, escrowMaker string) {
	c.t.Helper()

	timelock := c.host.Clock.Now().Add(lockTime).Unix()
	raw, err := escrow.EncodeExecuteMsg(&escrow.CreateEscrowMsg{
		Escrow: escrow.Escrow{
			OrderHash: orderHash,
			Maker:     escrowMaker,
			Taker:     c.resolver,
			Token:     test.Denom,
			Amount:    1_000,
			Hashlock:  escrow.HashPreimage(secret),
			Timelock:  uint64(timelock),
		},
	})
	require.NoError(c.t, err)

	_, err = c.host.Execute(maker, c.escrow, raw, test.Coins(1_000))
	require.NoError(c.t, err)
}

func (c *resolverContext) escrowState(orderHash string) *escrow.Escrow {
	c.t.Helper()

	raw, err := escrow.EncodeQueryMsg(
		&escrow.GetEscrowQuery{OrderHash: orderHash},
	)
	require.NoError(c.t, err)

	resp, err := c.host.Query(c.escrow, raw)
	require.NoError(c.t, err)

	var e escrow.Escrow
	require.NoError(c.t, json.Unmarshal(resp, &e))

	return &e
}

func testOrder(orderHash string) Order {
	return Order{
		OrderHash: orderHash,
		Maker:     maker,
		Taker:     "taker",
		Token:     test.Denom,
		Amount:    1_000,
		Hashlock:  []byte{1, 2, 3, 4},
		Timelock:  1700003600,
	}
}

func requireAttributes(t *testing.T, result *chain.Result,
	want map[string]string) {

	t.Helper()

	for key, value := range want {
		got, ok := result.Response.Attribute(key)
		require.True(t, ok, "missing attribute %v", key)
		require.Equal(t, value, got, "attribute %v", key)
	}
}

// TestInstantiate tests the stored config and the default ownership.
func TestInstantiate(t *testing.T) {
	c := newResolverContext(t)

	var cfg Config
	require.NoError(t, c.query(&ConfigQuery{}, &cfg))
	require.Equal(t, Config{ResolverAddress: resolverID}, cfg)

	var owner string
	require.NoError(t, c.query(&OwnershipQuery{}, &owner))
	require.Equal(t, PlaceholderOwner, owner)

	version, err := c.host.ContractVersion(
		context.Background(), c.resolver,
	)
	require.NoError(t, err)
	require.Equal(t, ContractName, version.Contract)

	_, err = c.host.Chain.Instantiate(
		context.Background(), c.host.Block(), resolverID,
		resolverCodeID, "test", []byte(`{"resolver_address":""}`), nil,
	)
	require.ErrorIs(t, err, chain.ErrInvalidMessage)
}

// TestDeployOrder tests that only the resolver records orders, once per
// order hash.
func TestDeployOrder(t *testing.T) {
	c := newResolverContext(t)

	_, err := c.execute(stranger, &DeploySrcEscrowMsg{
		Order: testOrder("abc"),
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	result, err := c.execute(resolverID, &DeploySrcEscrowMsg{
		Order: testOrder("abc"),
	})
	require.NoError(t, err)
	require.Len(t, result.Response.Attributes, 4)
	requireAttributes(t, result, map[string]string{
		"method":     "deploy_src_escrow",
		"order_hash": "abc",
		"maker":      maker,
		"taker":      "taker",
	})

	var order Order
	require.NoError(t, c.query(&GetOrderQuery{OrderHash: "abc"}, &order))
	require.Equal(t, testOrder("abc"), order)

	_, err = c.execute(resolverID, &DeployDstEscrowMsg{
		Order: testOrder("abc"),
	})
	require.ErrorIs(t, err, ErrOrderAlreadyExists)

	result, err = c.execute(resolverID, &DeployDstEscrowMsg{
		Order: testOrder("def"),
	})
	require.NoError(t, err)
	requireAttributes(t, result, map[string]string{
		"method": "deploy_dst_escrow",
	})

	_, err = c.execute(resolverID, &DeployDstEscrowMsg{
		Order: testOrder(""),
	})
	require.ErrorIs(t, err, ErrInvalidOrder)

	err = c.query(&GetOrderQuery{OrderHash: "unknown"}, &order)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

// TestWithdraw tests that a withdrawal claims the escrow for the resolver
// contract.
func TestWithdraw(t *testing.T) {
	c := newResolverContext(t)
	c.createEscrow("abc", maker)

	withdraw := &WithdrawMsg{
		Side:          "dst",
		EscrowAddress: c.escrow,
		Secret:        secret,
		Immutables:    `{"orderHash":"abc","amount":"1000"}`,
	}

	_, err := c.execute(stranger, withdraw)
	require.ErrorIs(t, err, ErrUnauthorized)

	// A wrong secret fails the nested claim and with it the withdrawal.
	wrong := *withdraw
	wrong.Secret = "wrong"
	_, err = c.execute(resolverID, &wrong)
	require.ErrorIs(t, err, escrow.ErrInvalidPreimage)
	require.True(t, c.escrowState("abc").IsActive)
	c.host.RequireBalance(t, c.escrow, 1_000)

	result, err := c.execute(resolverID, withdraw)
	require.NoError(t, err)
	requireAttributes(t, result, map[string]string{
		"method":     "withdraw",
		"side":       "dst",
		"escrow":     c.escrow,
		"order_hash": "abc",
	})

	c.host.RequireBalance(t, c.escrow, 0)
	c.host.RequireBalance(t, c.resolver, 1_000)
	require.True(t, c.escrowState("abc").IsClaimed)

	// Resolver wasm event, escrow wasm event, escrow transfer.
	require.Len(t, result.Events, 3)
	require.Equal(t, chain.EventTypeWasm, result.Events[1].Type)
	require.Contains(t, result.Events[1].Attributes, chain.Attribute{
		Key: "claimer", Value: c.resolver,
	})
	require.Equal(t, chain.EventTypeTransfer, result.Events[2].Type)

	_, err = c.execute(resolverID, withdraw)
	require.ErrorIs(t, err, escrow.ErrEscrowNotActive)
}

// TestWithdrawTarget tests that withdrawals only reach escrow contracts.
func TestWithdrawTarget(t *testing.T) {
	c := newResolverContext(t)

	_, err := c.execute(resolverID, &WithdrawMsg{
		EscrowAddress: c.resolver,
		Secret:        secret,
		Immutables:    "abc",
	})
	require.ErrorIs(t, err, chain.ErrWrongContractType)

	_, err = c.execute(resolverID, &WithdrawMsg{
		EscrowAddress: "xswap1unknown",
		Secret:        secret,
		Immutables:    "abc",
	})
	require.ErrorIs(t, err, chain.ErrContractNotFound)

	_, err = c.execute(resolverID, &WithdrawMsg{
		EscrowAddress: c.escrow,
		Secret:        secret,
		Immutables:    "abc",
	})
	require.ErrorIs(t, err, escrow.ErrEscrowNotFound)

	_, err = c.execute(resolverID, &WithdrawMsg{
		EscrowAddress: c.escrow,
		Secret:        secret,
	})
	require.ErrorIs(t, err, ErrInvalidOrder)
}

// TestCancel tests that a cancellation refunds an expired escrow the
// resolver contract made.
func TestCancel(t *testing.T) {
	c := newResolverContext(t)
	c.createEscrow("abc", c.resolver)
	c.createEscrow("def", maker)

	cancel := &CancelMsg{
		Side:          "src",
		EscrowAddress: c.escrow,
		Immutables:    `{"order_hash":"abc"}`,
	}

	_, err := c.execute(resolverID, cancel)
	require.ErrorIs(t, err, escrow.ErrTimelockNotExpired)

	c.host.Advance(lockTime)

	result, err := c.execute(resolverID, cancel)
	require.NoError(t, err)
	requireAttributes(t, result, map[string]string{
		"method":     "cancel",
		"side":       "src",
		"escrow":     c.escrow,
		"order_hash": "abc",
	})
	c.host.RequireBalance(t, c.resolver, 1_000)
	require.True(t, c.escrowState("abc").IsRefunded)

	// The resolver can't refund escrows of other makers.
	_, err = c.execute(resolverID, &CancelMsg{
		Side:          "src",
		EscrowAddress: c.escrow,
		Immutables:    "def",
	})
	require.ErrorIs(t, err, escrow.ErrUnauthorized)
	require.True(t, c.escrowState("def").IsActive)
}

// fakeEscrow records the calls it gets.
type fakeEscrow struct {
	claims  []string
	refunds []string
}

func (f *fakeEscrow) Claim(_ context.Context, orderHash,
	preimage string) (*chain.Response, error) {

	f.claims = append(f.claims, orderHash+":"+preimage)

	return chain.NewResponse(), nil
}

func (f *fakeEscrow) Refund(_ context.Context,
	orderHash string) (*chain.Response, error) {

	f.refunds = append(f.refunds, orderHash)

	return chain.NewResponse(), nil
}

// TestEscrowBinder tests that relayed calls go through the configured
// binder.
func TestEscrowBinder(t *testing.T) {
	fake := &fakeEscrow{}
	c := newResolverContext(t, WithEscrowBinder(
		func(callee *chain.Callee) (escrow.Capability, error) {
			return fake, nil
		},
	))

	_, err := c.execute(resolverID, &WithdrawMsg{
		Side:          "src",
		EscrowAddress: c.escrow,
		Secret:        "s",
		Immutables:    `{"orderHash":"abc"}`,
	})
	require.NoError(t, err)

	_, err = c.execute(resolverID, &CancelMsg{
		Side:          "dst",
		EscrowAddress: c.escrow,
		Immutables:    "def",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"abc:s"}, fake.claims)
	require.Equal(t, []string{"def"}, fake.refunds)
}

// testOwnership is an ownership manager that hands ownership to the caller.
type testOwnership struct {
	owner string
}

func (o *testOwnership) Ownership(_ context.Context,
	_ *chain.QueryDeps) (string, error) {

	return o.owner, nil
}

func (o *testOwnership) UpdateOwnership(_ context.Context, _ *chain.Deps,
	info chain.MessageInfo, action string) (*chain.Response, error) {

	o.owner = info.Sender

	return chain.NewResponse().
		AddAttribute("method", "update_ownership").
		AddAttribute("action", action), nil
}

// TestUpdateOwnership tests the default and a custom ownership manager.
func TestUpdateOwnership(t *testing.T) {
	c := newResolverContext(t)

	_, err := c.execute(stranger, &UpdateOwnershipMsg{Action: "renounce"})
	require.ErrorIs(t, err, ErrOwnershipNotSupported)

	raw, err := EncodeExecuteMsg(&UpdateOwnershipMsg{Action: "renounce"})
	require.NoError(t, err)
	require.JSONEq(t, `{"update_ownership":"renounce"}`, string(raw))

	manager := &testOwnership{owner: PlaceholderOwner}
	c = newResolverContext(t, WithOwnershipManager(manager))

	result, err := c.execute(stranger, &UpdateOwnershipMsg{
		Action: "accept_ownership",
	})
	require.NoError(t, err)
	requireAttributes(t, result, map[string]string{
		"action": "accept_ownership",
	})

	var owner string
	require.NoError(t, c.query(&OwnershipQuery{}, &owner))
	require.Equal(t, stranger, owner)
}
