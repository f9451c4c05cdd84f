package pingpong

import (
	"testing"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/test"
	"github.com/stretchr/testify/require"
)

// TestPingPong tests both entry points of the contract.
func TestPingPong(t *testing.T) {
	test.Guard(t)

	host := test.NewHost(t, &chain.Code{
		ID:       3,
		Name:     "pingpong",
		Contract: New(),
	})
	addr := host.Instantiate(t, "alice", 3, []byte(`{}`))

	result, err := host.Execute("alice", addr, []byte(`{"ping":{}}`))
	require.NoError(t, err)

	method, ok := result.Response.Attribute("method")
	require.True(t, ok)
	require.Equal(t, "ping", method)

	answer, err := host.Query(addr, []byte(`{"get_ping":{}}`))
	require.NoError(t, err)
	require.Equal(t, `"pong"`, string(answer))

	_, err = host.Execute("alice", addr, []byte(`{"pong":{}}`))
	require.ErrorIs(t, err, chain.ErrInvalidMessage)

	_, err = host.Execute("alice", addr, []byte(`{"ping":{"n":1}}`))
	require.ErrorIs(t, err, chain.ErrInvalidMessage)

	_, err = host.Query(addr, []byte(`{"ping":{}}`))
	require.ErrorIs(t, err, chain.ErrInvalidMessage)
}
