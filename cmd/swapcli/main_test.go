package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/lightninglabs/xswap/abci"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/kvdb"
	"github.com/lightninglabs/xswap/swapd"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

// TestParseCoins tests the coin notation of the command line.
func TestParseCoins(t *testing.T) {
	coins, err := parseCoins("")
	require.NoError(t, err)
	require.Nil(t, coins)

	coins, err = parseCoins("1000utoken, 5stake")
	require.NoError(t, err)
	require.Equal(t, []chain.Coin{
		{Denom: "utoken", Amount: 1000},
		{Denom: "stake", Amount: 5},
	}, coins)

	for _, invalid := range []string{
		"utoken", "1000", "-5utoken", "99999999999999999999utoken",
	} {
		_, err := parseCoins(invalid)
		require.Error(t, err, invalid)
	}
}

// TestReadMsg tests inline and file messages.
func TestReadMsg(t *testing.T) {
	msg, err := readMsg(`{"ping":{}}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"ping":{}}`, string(msg))

	_, err = readMsg(`{"ping":`)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "msg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"get_ping":{}}`), 0600))

	msg, err = readMsg("@" + path)
	require.NoError(t, err)
	require.JSONEq(t, `{"get_ping":{}}`, string(msg))

	_, err = readMsg("@" + path + ".missing")
	require.Error(t, err)
}

// TestDevnetSwap runs an escrow through the devnet, one block per
// transaction, and refunds it once the test clock passes the timelock.
func TestDevnetSwap(t *testing.T) {
	start := time.Unix(1700000000, 0)
	testClock := clock.NewTestClock(start)

	d, err := newDevnet(kvdb.NewTestBoltDB(t), testClock, "xswap-test")
	require.NoError(t, err)

	store := newKeyStore(t.TempDir())
	key, err := store.create("maker")
	require.NoError(t, err)
	maker, err := store.address("maker")
	require.NoError(t, err)

	require.NoError(t, d.host.Mint(
		t.Context(), maker,
		[]chain.Coin{{Denom: "utoken", Amount: 1000}},
	))

	result, err := d.submit(key, &abci.Tx{
		Type:   abci.TxTypeInstantiate,
		CodeID: swapd.CodeIDEscrow,
		Label:  "escrow",
		Msg:    json.RawMessage(`{"owner":"maker"}`),
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, result.Height)
	contract := result.Contract
	require.NotEmpty(t, contract)

	msg, err := escrow.EncodeExecuteMsg(&escrow.CreateEscrowMsg{
		Escrow: escrow.Escrow{
			OrderHash: "abc",
			Maker:     maker,
			Taker:     "taker",
			Token:     "utoken",
			Amount:    1000,
			Hashlock:  escrow.HashPreimage("secret"),
			Timelock:  uint64(start.Add(time.Hour).Unix()),
		},
	})
	require.NoError(t, err)

	result, err = d.submit(key, &abci.Tx{
		Type:     abci.TxTypeExecute,
		Contract: contract,
		Msg:      msg,
		Funds:    []chain.Coin{{Denom: "utoken", Amount: 1000}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, result.Height)
	require.Len(t, result.AppHash, 64)

	refund, err := escrow.EncodeExecuteMsg(&escrow.RefundMsg{
		OrderHash: "abc",
	})
	require.NoError(t, err)

	refundTx := &abci.Tx{
		Type:     abci.TxTypeExecute,
		Contract: contract,
		Msg:      refund,
	}

	// Too early, the failed block still advances the height and
	// consumes the sequence.
	_, err = d.submit(key, refundTx)
	require.ErrorIs(t, err, errTxFailed)
	require.ErrorContains(t, err, "timelock not expired")

	seq, err := d.host.Sequence(t.Context(), maker)
	require.NoError(t, err)
	require.EqualValues(t, 3, seq)

	// Replaying the signed refund is rejected.
	raw, err := refundTx.Encode()
	require.NoError(t, err)
	resp, err := d.app.CheckTx(
		t.Context(), &abcitypes.CheckTxRequest{Tx: raw},
	)
	require.NoError(t, err)
	require.Equal(t, abci.CodeInvalidSequence, resp.Code)

	testClock.SetTime(start.Add(time.Hour))

	result, err = d.submit(key, refundTx)
	require.NoError(t, err)
	require.EqualValues(t, 4, result.Height)

	balance, err := d.query("/bank/"+maker+"/utoken", nil)
	require.NoError(t, err)
	require.Equal(t, "1000", string(balance))

	answer, err := d.query("/contract/"+contract,
		[]byte(`{"get_escrow":{"order_hash":"abc"}}`))
	require.NoError(t, err)

	var stored escrow.Escrow
	require.NoError(t, json.Unmarshal(answer, &stored))
	require.True(t, stored.IsRefunded)

	_, err = d.query("/nope", nil)
	require.Error(t, err)
}

// TestKeyStore tests storing keys and resolving key names to addresses.
func TestKeyStore(t *testing.T) {
	store := newKeyStore(t.TempDir())

	names, err := store.list()
	require.NoError(t, err)
	require.Empty(t, names)

	key, err := store.create("bob")
	require.NoError(t, err)
	_, err = store.create("alice")
	require.NoError(t, err)

	_, err = store.create("bob")
	require.ErrorContains(t, err, "already exists")

	_, err = store.create("../bob")
	require.ErrorIs(t, err, errInvalidKeyName)

	loaded, err := store.load("bob")
	require.NoError(t, err)
	require.Equal(t, key.Serialize(), loaded.Serialize())

	info, err := os.Stat(filepath.Join(store.dir, "bob.key"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	names, err = store.list()
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, names)

	addr, err := abci.SenderAddress(chain.DefaultBech32HRP, key.PubKey())
	require.NoError(t, err)

	resolved, err := store.resolve("bob")
	require.NoError(t, err)
	require.Equal(t, addr, resolved)

	resolved, err = store.resolve(addr)
	require.NoError(t, err)
	require.Equal(t, addr, resolved)

	resolved, err = store.resolve("carol")
	require.NoError(t, err)
	require.Equal(t, "carol", resolved)

	_, err = store.load("carol")
	require.ErrorIs(t, err, errKeyNotFound)
}
