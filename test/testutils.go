package test

import (
	"context"
	"testing"
	"time"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/kvdb"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

var (
	// Timeout bounds the runtime of guarded tests.
	Timeout = time.Second * 5

	// StartTime is the block time tests start at.
	StartTime = time.Unix(1700000000, 0)
)

const (
	// ChainID is the chain id of test blocks.
	ChainID = "xswap-test"

	// Denom is the denomination test accounts are funded with.
	Denom = "utoken"
)

// Host is a chain on a throwaway database with a test clock that drives the
// block time.
type Host struct {
	*chain.Chain

	// Clock is the source of the block time.
	Clock *clock.TestClock

	height int64
}

// NewHost creates a bolt backed host with the given codes registered.
func NewHost(t *testing.T, codes ...*chain.Code) *Host {
	t.Helper()

	host := &Host{
		Chain: chain.New(kvdb.NewTestBoltDB(t), &chain.Config{
			Bech32HRP: chain.DefaultBech32HRP,
		}),
		Clock: clock.NewTestClock(StartTime),
	}

	for _, code := range codes {
		require.NoError(t, host.RegisterCode(code))
	}

	return host
}

// Block returns the next block at the current clock time.
func (h *Host) Block() chain.Block {
	h.height++

	return chain.Block{
		Height:  h.height,
		Time:    h.Clock.Now(),
		ChainID: ChainID,
	}
}

// Advance moves the clock forward.
func (h *Host) Advance(d time.Duration) {
	h.Clock.SetTime(h.Clock.Now().Add(d))
}

// Fund mints test coins to an account.
func (h *Host) Fund(t *testing.T, addr string, amount uint64) {
	t.Helper()

	err := h.Mint(
		context.Background(), addr,
		[]chain.Coin{{Denom: Denom, Amount: amount}},
	)
	require.NoError(t, err)
}

// Instantiate creates a contract instance and returns its address.
func (h *Host) Instantiate(t *testing.T, sender string, codeID uint64,
	msg []byte, funds ...chain.Coin) string {

	t.Helper()

	result, err := h.Chain.Instantiate(
		context.Background(), h.Block(), sender, codeID, "test", msg,
		funds,
	)
	require.NoError(t, err)

	return result.Contract
}

// Execute runs a command in a new block.
func (h *Host) Execute(sender, contract string, msg []byte,
	funds ...chain.Coin) (*chain.Result, error) {

	return h.Chain.Execute(
		context.Background(), h.Block(), sender, contract, msg, funds,
	)
}

// Query runs a query at the current clock time.
func (h *Host) Query(contract string, msg []byte) ([]byte, error) {
	return h.Chain.Query(
		context.Background(), chain.Block{
			Height:  h.height,
			Time:    h.Clock.Now(),
			ChainID: ChainID,
		}, contract, msg,
	)
}

// RequireBalance asserts the test denom balance of an account.
func (h *Host) RequireBalance(t *testing.T, addr string, want uint64) {
	t.Helper()

	balance, err := h.Balance(context.Background(), addr, Denom)
	require.NoError(t, err)
	require.Equal(t, want, balance, "balance of %v", addr)
}

// Coins returns the given amount of the test denom.
func Coins(amount uint64) chain.Coin {
	return chain.Coin{Denom: Denom, Amount: amount}
}
