package chain

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lightninglabs/xswap/kvdb"
	"github.com/stretchr/testify/require"
)

const (
	testCodeID = 7
	testDenom  = "utoken"
	alice      = "alice"
	bob        = "bob"
)

var (
	testBlock = Block{
		Height:  10,
		Time:    time.Unix(1700000000, 0),
		ChainID: "xswap-test",
	}

	errVaultFailure = errors.New("vault failure")
)

// vaultMsg is the message of the test contract.
type vaultMsg struct {
	Action string    `json:"action"`
	To     string    `json:"to,omitempty"`
	Amount uint64    `json:"amount,omitempty"`
	Target string    `json:"target,omitempty"`
	Inner  *vaultMsg `json:"inner,omitempty"`
}

// vault is a test contract that records the last sender, pays out coins and
// calls other vaults.
type vault struct{}

func (v *vault) Instantiate(_ context.Context, deps *Deps, _ Env,
	info MessageInfo, _ []byte) (*Response, error) {

	if err := deps.SetContractVersion("vault", "1.0.0"); err != nil {
		return nil, err
	}

	return NewResponse().AddAttribute("method", "instantiate").
		AddAttribute("funds", CoinsString(info.Funds)), nil
}

func (v *vault) Execute(ctx context.Context, deps *Deps, env Env,
	info MessageInfo, raw []byte) (*Response, error) {

	var msg vaultMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}

	return v.run(ctx, deps, env, info, &msg)
}

func (v *vault) run(ctx context.Context, deps *Deps, env Env,
	info MessageInfo, msg *vaultMsg) (*Response, error) {

	store, err := deps.Storage("state")
	if err != nil {
		return nil, err
	}

	if err := store.Put([]byte("sender"), []byte(info.Sender)); err != nil {
		return nil, err
	}

	resp := NewResponse().AddAttribute("method", msg.Action)

	switch msg.Action {
	case "pay":
		resp.AddMessage(BankSend{
			ToAddress: msg.To,
			Amount:    []Coin{{Denom: testDenom, Amount: msg.Amount}},
		})

	case "fail":
		return nil, errVaultFailure

	case "call":
		_, err := deps.Call(ctx, msg.Target, func(ctx context.Context,
			callee *Callee) (*Response, error) {

			inner, ok := callee.Contract.(*vault)
			if !ok {
				return nil, ErrWrongContractType
			}

			return inner.run(
				ctx, callee.Deps, callee.Env, callee.Info,
				msg.Inner,
			)
		})
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

func (v *vault) Query(_ context.Context, deps *QueryDeps, _ Env,
	_ []byte) ([]byte, error) {

	store, err := deps.Storage("state")
	if err != nil {
		return nil, err
	}

	return store.Get([]byte("sender"))
}

// newTestChain creates a host with the vault code registered and alice
// funded.
func newTestChain(t *testing.T) *Chain {
	t.Helper()

	host := New(kvdb.NewTestBoltDB(t), &Config{})
	require.NoError(t, host.RegisterCode(&Code{
		ID:       testCodeID,
		Name:     "vault",
		Contract: &vault{},
	}))

	err := host.Mint(
		context.Background(), alice,
		[]Coin{{Denom: testDenom, Amount: 10_000}},
	)
	require.NoError(t, err)

	return host
}

// instantiateVault creates a vault funded by alice.
func instantiateVault(t *testing.T, host *Chain, funds uint64) string {
	t.Helper()

	var coins []Coin
	if funds > 0 {
		coins = []Coin{{Denom: testDenom, Amount: funds}}
	}

	result, err := host.Instantiate(
		context.Background(), testBlock, alice, testCodeID, "vault",
		[]byte(`{}`), coins,
	)
	require.NoError(t, err)

	return result.Contract
}

// execute runs a vault message.
func execute(host *Chain, sender, contract string,
	msg *vaultMsg) (*Result, error) {

	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	return host.Execute(
		context.Background(), testBlock, sender, contract, raw, nil,
	)
}

// requireBalance asserts the balance of an account.
func requireBalance(t *testing.T, host *Chain, addr string, want uint64) {
	t.Helper()

	balance, err := host.Balance(context.Background(), addr, testDenom)
	require.NoError(t, err)
	require.Equal(t, want, balance)
}

// TestContractAddress tests that addresses are deterministic and decodable.
func TestContractAddress(t *testing.T) {
	addr1, err := ContractAddress(DefaultBech32HRP, 1, 1)
	require.NoError(t, err)

	addr2, err := ContractAddress(DefaultBech32HRP, 1, 1)
	require.NoError(t, err)
	require.Equal(t, addr1, addr2)

	addr3, err := ContractAddress(DefaultBech32HRP, 1, 2)
	require.NoError(t, err)
	require.NotEqual(t, addr1, addr3)

	payload, err := ParseContractAddress(DefaultBech32HRP, addr1)
	require.NoError(t, err)
	require.Len(t, payload, 32)

	_, err = ParseContractAddress("other", addr1)
	require.Error(t, err)

	_, err = ParseContractAddress(DefaultBech32HRP, "maker")
	require.Error(t, err)
}

// TestInstantiate tests that instantiation registers the contract and moves
// the attached funds.
func TestInstantiate(t *testing.T) {
	ctx := context.Background()
	host := newTestChain(t)

	addr := instantiateVault(t, host, 1_000)

	requireBalance(t, host, alice, 9_000)
	requireBalance(t, host, addr, 1_000)

	info, err := host.Contract(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(testCodeID), info.CodeID)
	require.Equal(t, alice, info.Creator)
	require.Equal(t, "vault", info.Label)
	require.Equal(t, uint64(testBlock.Height), info.Height)

	version, err := host.ContractVersion(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, &ContractVersion{
		Contract: "vault", Version: "1.0.0",
	}, version)

	// A second instance gets a different address.
	addr2 := instantiateVault(t, host, 0)
	require.NotEqual(t, addr, addr2)

	infos, err := host.Contracts(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	_, err = host.Instantiate(
		ctx, testBlock, alice, 99, "nope", []byte(`{}`), nil,
	)
	require.ErrorIs(t, err, ErrCodeNotFound)

	// Instantiation without enough funds leaves no instance behind.
	_, err = host.Instantiate(
		ctx, testBlock, bob, testCodeID, "vault", []byte(`{}`),
		[]Coin{{Denom: testDenom, Amount: 1}},
	)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	infos, err = host.Contracts(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
}

// TestExecuteTransfer tests that transfers of a response are executed from
// the contract account.
func TestExecuteTransfer(t *testing.T) {
	host := newTestChain(t)
	addr := instantiateVault(t, host, 1_000)

	result, err := execute(host, bob, addr, &vaultMsg{
		Action: "pay", To: bob, Amount: 400,
	})
	require.NoError(t, err)

	requireBalance(t, host, addr, 600)
	requireBalance(t, host, bob, 400)

	method, ok := result.Response.Attribute("method")
	require.True(t, ok)
	require.Equal(t, "pay", method)

	require.Len(t, result.Events, 2)
	require.Equal(t, EventTypeWasm, result.Events[0].Type)
	require.Equal(t, EventTypeTransfer, result.Events[1].Type)

	sender, err := host.Query(context.Background(), testBlock, addr, nil)
	require.NoError(t, err)
	require.Equal(t, bob, string(sender))
}

// TestExecuteRollback tests that a failing transfer or contract error undoes
// all writes of the call.
func TestExecuteRollback(t *testing.T) {
	ctx := context.Background()
	host := newTestChain(t)
	addr := instantiateVault(t, host, 100)

	// Record alice as the last sender.
	_, err := execute(host, alice, addr, &vaultMsg{Action: "noop"})
	require.NoError(t, err)

	// The contract can't pay more than it holds.
	_, err = execute(host, bob, addr, &vaultMsg{
		Action: "pay", To: bob, Amount: 101,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// A contract error aborts the call.
	_, err = execute(host, bob, addr, &vaultMsg{Action: "fail"})
	require.ErrorIs(t, err, errVaultFailure)

	requireBalance(t, host, addr, 100)
	requireBalance(t, host, bob, 0)

	sender, err := host.Query(ctx, testBlock, addr, nil)
	require.NoError(t, err)
	require.Equal(t, alice, string(sender))

	// Attached funds are returned as well.
	_, err = host.Execute(
		ctx, testBlock, alice, addr, []byte(`{"action":"fail"}`),
		[]Coin{{Denom: testDenom, Amount: 50}},
	)
	require.ErrorIs(t, err, errVaultFailure)
	requireBalance(t, host, alice, 9_900)

	_, err = execute(host, alice, "xswap1unknown", &vaultMsg{})
	require.ErrorIs(t, err, ErrContractNotFound)

	_, err = execute(host, "", addr, &vaultMsg{})
	require.ErrorIs(t, err, ErrInvalidMessage)
}

// TestNestedCall tests that nested calls run with the caller contract as
// sender and share the atomicity of the outer call.
func TestNestedCall(t *testing.T) {
	ctx := context.Background()
	host := newTestChain(t)
	outer := instantiateVault(t, host, 0)
	inner := instantiateVault(t, host, 500)

	result, err := execute(host, alice, outer, &vaultMsg{
		Action: "call",
		Target: inner,
		Inner:  &vaultMsg{Action: "pay", To: bob, Amount: 200},
	})
	require.NoError(t, err)

	requireBalance(t, host, inner, 300)
	requireBalance(t, host, bob, 200)

	sender, err := host.Query(ctx, testBlock, inner, nil)
	require.NoError(t, err)
	require.Equal(t, outer, string(sender))

	// Outer wasm event, inner wasm event, inner transfer.
	require.Len(t, result.Events, 3)
	require.Equal(t, EventTypeWasm, result.Events[1].Type)
	require.Equal(t, inner, result.Events[1].Attributes[0].Value)
	require.Equal(t, EventTypeTransfer, result.Events[2].Type)

	// A failing nested call fails the outer call and undoes the writes of
	// both contracts.
	_, err = execute(host, bob, outer, &vaultMsg{
		Action: "call",
		Target: inner,
		Inner:  &vaultMsg{Action: "pay", To: bob, Amount: 1_000},
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	sender, err = host.Query(ctx, testBlock, outer, nil)
	require.NoError(t, err)
	require.Equal(t, alice, string(sender))

	sender, err = host.Query(ctx, testBlock, inner, nil)
	require.NoError(t, err)
	require.Equal(t, outer, string(sender))

	_, err = execute(host, alice, outer, &vaultMsg{
		Action: "call", Target: "xswap1missing",
		Inner: &vaultMsg{Action: "noop"},
	})
	require.ErrorIs(t, err, ErrContractNotFound)
}

// TestBank tests minting, sending and the balance queries.
func TestBank(t *testing.T) {
	ctx := context.Background()
	host := newTestChain(t)

	err := host.Mint(ctx, alice, []Coin{{Denom: "uatom", Amount: 5}})
	require.NoError(t, err)

	coins, err := host.Balances(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, []Coin{
		{Denom: "uatom", Amount: 5},
		{Denom: testDenom, Amount: 10_000},
	}, coins)

	err = host.Send(ctx, alice, bob, []Coin{{Denom: "uatom", Amount: 6}})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = host.Send(ctx, alice, bob, []Coin{{Denom: "uatom", Amount: 0}})
	require.ErrorIs(t, err, ErrInvalidCoin)

	err = host.Mint(
		ctx, alice, []Coin{{Denom: testDenom, Amount: math.MaxUint64}},
	)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	requireBalance(t, host, alice, 10_000)

	err = host.Send(ctx, alice, bob, []Coin{{Denom: "uatom", Amount: 5}})
	require.NoError(t, err)

	coins, err = host.Balances(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, []Coin{{Denom: testDenom, Amount: 10_000}}, coins)
}

// TestLastBlock tests the block bookkeeping.
func TestLastBlock(t *testing.T) {
	ctx := context.Background()
	host := newTestChain(t)

	height, appHash, err := host.LastBlock(ctx)
	require.NoError(t, err)
	require.Zero(t, height)
	require.Empty(t, appHash)

	require.NoError(t, host.CommitBlock(ctx, 5, []byte{1, 2, 3}))

	height, appHash, err = host.LastBlock(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 5, height)
	require.Equal(t, []byte{1, 2, 3}, appHash)
}

// TestRegisterCodeTwice tests that code ids are unique.
func TestRegisterCodeTwice(t *testing.T) {
	host := newTestChain(t)

	err := host.RegisterCode(&Code{ID: testCodeID, Contract: &vault{}})
	require.ErrorIs(t, err, ErrCodeExists)
}

// TestAccountAddress tests the derivation of account addresses from public
// keys.
func TestAccountAddress(t *testing.T) {
	pubKey := []byte{0x02, 0x01, 0x02, 0x03}

	addr, err := AccountAddress(DefaultBech32HRP, pubKey)
	require.NoError(t, err)

	again, err := AccountAddress(DefaultBech32HRP, pubKey)
	require.NoError(t, err)
	require.Equal(t, addr, again)

	other, err := AccountAddress(DefaultBech32HRP, []byte{0x03})
	require.NoError(t, err)
	require.NotEqual(t, addr, other)

	// Account addresses never parse as contract addresses.
	_, err = ParseContractAddress(DefaultBech32HRP, addr)
	require.Error(t, err)

	_, err = AccountAddress(DefaultBech32HRP, nil)
	require.Error(t, err)
}

// TestSequence tests that every sequence of an account is consumed exactly
// once and in order.
func TestSequence(t *testing.T) {
	ctx := context.Background()
	host := newTestChain(t)

	seq, err := host.Sequence(ctx, alice)
	require.NoError(t, err)
	require.Zero(t, seq)

	require.NoError(t, host.IncrementSequence(ctx, alice, 0))
	require.ErrorIs(
		t, host.IncrementSequence(ctx, alice, 0), ErrInvalidSequence,
	)
	require.ErrorIs(
		t, host.IncrementSequence(ctx, alice, 5), ErrInvalidSequence,
	)
	require.NoError(t, host.IncrementSequence(ctx, alice, 1))

	seq, err = host.Sequence(ctx, alice)
	require.NoError(t, err)
	require.EqualValues(t, 2, seq)

	seq, err = host.Sequence(ctx, bob)
	require.NoError(t, err)
	require.Zero(t, seq)
}
