package abci

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/pingpong"
	"github.com/lightninglabs/xswap/resolver"
	"github.com/lightninglabs/xswap/test"
	"github.com/stretchr/testify/require"
)

var genesisTime = time.Unix(1700000000, 0)

// account is a test key with its address and the sequence of its next
// transaction.
type account struct {
	key  *btcec.PrivateKey
	addr string
	seq  uint64
}

// newAccount derives a deterministic key from the name.
func newAccount(t *testing.T, name string) *account {
	t.Helper()

	seed := sha256.Sum256([]byte(name))
	key, _ := btcec.PrivKeyFromBytes(seed[:])

	addr, err := SenderAddress(chain.DefaultBech32HRP, key.PubKey())
	require.NoError(t, err)

	return &account{key: key, addr: addr}
}

// sign signs the transaction with the next sequence of the account.
func (a *account) sign(t *testing.T, tx *Tx) *Tx {
	t.Helper()

	tx.Sequence = a.seq
	a.seq++

	require.NoError(t, tx.Sign(test.ChainID, chain.DefaultBech32HRP, a.key))

	return tx
}

func testAppState(maker string) string {
	return fmt.Sprintf(`{
	"balances": [
		{"address": %[1]q, "coins": [{"denom": "utoken", "amount": "10000"}]}
	],
	"contracts": [
		{"code_id": 1, "label": "escrow", "sender": %[1]q, "msg": "{\"owner\":\"maker\"}"},
		{"code_id": 3, "label": "pingpong", "sender": %[1]q}
	]
}`, maker)
}

// newTestApp returns an application after InitChain with the test app
// state funding the maker, and the address of the genesis escrow.
func newTestApp(t *testing.T, maker string) (*Application, string) {
	t.Helper()

	host := test.NewHost(t,
		&chain.Code{ID: 1, Name: "escrow", Contract: escrow.New()},
		&chain.Code{ID: 2, Name: "resolver", Contract: resolver.New()},
		&chain.Code{ID: 3, Name: "pingpong", Contract: pingpong.New()},
	)
	app := NewApplication(host.Chain, &Config{Version: "test"})

	_, err := app.InitChain(context.Background(), &abcitypes.InitChainRequest{
		Time:          genesisTime,
		ChainId:       test.ChainID,
		InitialHeight: 1,
		AppStateBytes: []byte(testAppState(maker)),
	})
	require.NoError(t, err)

	infos, err := host.Contracts(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	for _, info := range infos {
		if info.CodeID == 1 {
			return app, info.Address
		}
	}

	t.Fatal("no genesis escrow")

	return nil, ""
}

func query(t *testing.T, app *Application, path string,
	data []byte) *abcitypes.QueryResponse {

	t.Helper()

	resp, err := app.Query(context.Background(), &abcitypes.QueryRequest{
		Path: path,
		Data: data,
	})
	require.NoError(t, err)

	return resp
}

func encodeTx(t *testing.T, tx *Tx) []byte {
	t.Helper()

	raw, err := tx.Encode()
	require.NoError(t, err)

	return raw
}

// escrowTx returns an unsigned escrow command.
func escrowTx(t *testing.T, contract string, msg escrow.ExecuteMsg,
	funds ...chain.Coin) *Tx {

	t.Helper()

	raw, err := escrow.EncodeExecuteMsg(msg)
	require.NoError(t, err)

	return &Tx{
		Type:     TxTypeExecute,
		Contract: contract,
		Msg:      raw,
		Funds:    funds,
	}
}

// TestInitChain tests that the genesis state is applied and queryable.
func TestInitChain(t *testing.T) {
	maker := newAccount(t, "maker")
	app, escrowAddr := newTestApp(t, maker.addr)

	resp := query(t, app, "/ping", nil)
	require.Equal(t, CodeOK, resp.Code)
	require.Equal(t, pingpong.Pong, string(resp.Value))

	resp = query(t, app, "/bank/"+maker.addr+"/utoken", nil)
	require.Equal(t, CodeOK, resp.Code)
	require.Equal(t, "10000", string(resp.Value))

	resp = query(t, app, "/bank/"+maker.addr, nil)
	require.Equal(t, CodeInvalidTx, resp.Code)

	resp = query(t, app, "/contract/"+escrowAddr,
		[]byte(`{"list_escrows":{}}`))
	require.Equal(t, CodeOK, resp.Code, resp.Log)
	require.JSONEq(t, `[]`, string(resp.Value))

	resp = query(t, app, "/contract/xswap1unknown",
		[]byte(`{"list_escrows":{}}`))
	require.Equal(t, CodeNotFound, resp.Code)

	resp = query(t, app, "/nope", nil)
	require.Equal(t, CodeInvalidTx, resp.Code)

	info, err := app.Info(context.Background(), &abcitypes.InfoRequest{})
	require.NoError(t, err)
	require.Zero(t, info.LastBlockHeight)
	require.Equal(t, "test", info.Version)
}

// TestFinalizeBlock tests that every tx of a block gets its own result and
// that failed txs leave no trace.
func TestFinalizeBlock(t *testing.T) {
	ctx := context.Background()
	maker := newAccount(t, "maker")
	taker := newAccount(t, "taker")
	app, escrowAddr := newTestApp(t, maker.addr)

	blockTime := genesisTime.Add(time.Minute)
	e := escrow.Escrow{
		OrderHash: "abc",
		Maker:     maker.addr,
		Taker:     taker.addr,
		Token:     test.Denom,
		Amount:    1_000,
		Hashlock:  escrow.HashPreimage("secret"),
		Timelock:  uint64(blockTime.Add(time.Hour).Unix()),
	}

	create := maker.sign(t, escrowTx(
		t, escrowAddr, &escrow.CreateEscrowMsg{Escrow: e},
		test.Coins(1_000),
	))

	txs := [][]byte{
		encodeTx(t, create),
		[]byte("not a tx"),
		encodeTx(t, taker.sign(t, escrowTx(
			t, escrowAddr, &escrow.ClaimMsg{
				OrderHash: "abc", Preimage: "wrong",
			},
		))),
		encodeTx(t, maker.sign(t, escrowTx(
			t, escrowAddr, &escrow.ClaimMsg{
				OrderHash: "abc", Preimage: "secret",
			},
		))),
		encodeTx(t, taker.sign(t, escrowTx(
			t, escrowAddr, &escrow.ClaimMsg{
				OrderHash: "abc", Preimage: "secret",
			},
		))),
	}

	resp, err := app.FinalizeBlock(ctx, &abcitypes.FinalizeBlockRequest{
		Txs:    txs,
		Height: 2,
		Time:   blockTime,
	})
	require.NoError(t, err)
	require.Len(t, resp.TxResults, len(txs))

	codes := make([]uint32, 0, len(txs))
	for _, result := range resp.TxResults {
		codes = append(codes, result.Code)
	}
	require.Equal(t, []uint32{
		CodeOK, CodeInvalidTx, CodeRejected, CodeUnauthorized, CodeOK,
	}, codes)
	require.Contains(t, resp.TxResults[2].Log, "invalid preimage")
	require.Len(t, resp.AppHash, 32)

	// The claim emitted the contract attributes and the transfer.
	var types []string
	for _, event := range resp.TxResults[4].Events {
		types = append(types, event.Type)
	}
	require.Equal(t, []string{
		chain.EventTypeWasm, chain.EventTypeTransfer,
	}, types)

	_, err = app.Commit(ctx, &abcitypes.CommitRequest{})
	require.NoError(t, err)

	balance := query(t, app, fmt.Sprintf("/bank/%v/utoken", taker.addr), nil)
	require.Equal(t, "1000", string(balance.Value))

	info, err := app.Info(ctx, &abcitypes.InfoRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 2, info.LastBlockHeight)
	require.Equal(t, resp.AppHash, info.LastBlockAppHash)

	// A replayed transaction and one that claims to be sent by the maker
	// are rejected without effect, and the results chain onto the
	// previous hash.
	forged := taker.sign(t, escrowTx(
		t, escrowAddr, &escrow.CreateEscrowMsg{Escrow: e},
		test.Coins(1_000),
	))
	forged.Sender = maker.addr

	next, err := app.FinalizeBlock(ctx, &abcitypes.FinalizeBlockRequest{
		Txs:    [][]byte{encodeTx(t, create), encodeTx(t, forged)},
		Height: 3,
		Time:   blockTime.Add(time.Second),
	})
	require.NoError(t, err)
	require.Equal(t, CodeInvalidSequence, next.TxResults[0].Code)
	require.Equal(t, CodeUnauthorized, next.TxResults[1].Code)
	require.Len(t, next.AppHash, 32)
	require.NotEqual(t, resp.AppHash, next.AppHash)

	balance = query(t, app, fmt.Sprintf("/bank/%v/utoken", maker.addr), nil)
	require.Equal(t, "9000", string(balance.Value))

	raw, err := escrow.EncodeQueryMsg(
		&escrow.GetEscrowQuery{OrderHash: "abc"},
	)
	require.NoError(t, err)

	answer := query(t, app, "/contract/"+escrowAddr, raw)
	require.Equal(t, CodeOK, answer.Code)

	var stored escrow.Escrow
	require.NoError(t, json.Unmarshal(answer.Value, &stored))
	require.True(t, stored.IsClaimed)
}

// TestCheckTx tests the envelope, signature and sequence checks.
func TestCheckTx(t *testing.T) {
	ctx := context.Background()
	alice := newAccount(t, "alice")
	bob := newAccount(t, "bob")
	app, _ := newTestApp(t, alice.addr)

	execute := func() *Tx {
		return &Tx{
			Type:     TxTypeExecute,
			Contract: "c",
			Msg:      json.RawMessage(`{}`),
		}
	}
	signed := func(tx *Tx) *Tx {
		alice.seq = 0
		return alice.sign(t, tx)
	}

	require.NoError(t, app.host.IncrementSequence(ctx, bob.addr, 0))

	tests := []struct {
		name string
		tx   func() []byte
		code uint32
	}{
		{
			name: "execute",
			tx: func() []byte {
				return encodeTx(t, signed(execute()))
			},
			code: CodeOK,
		},
		{
			name: "instantiate",
			tx: func() []byte {
				return encodeTx(t, signed(&Tx{
					Type:   TxTypeInstantiate,
					CodeID: 1,
					Msg:    json.RawMessage(`{}`),
				}))
			},
			code: CodeOK,
		},
		{
			name: "missing code id",
			tx: func() []byte {
				return encodeTx(t, signed(&Tx{
					Type: TxTypeInstantiate,
					Msg:  json.RawMessage(`{}`),
				}))
			},
			code: CodeInvalidTx,
		},
		{
			name: "reserved label",
			tx: func() []byte {
				return encodeTx(t, signed(&Tx{
					Type:   TxTypeInstantiate,
					CodeID: 1,
					Label:  "[genesis]: x",
					Msg:    json.RawMessage(`{}`),
				}))
			},
			code: CodeInvalidTx,
		},
		{
			name: "unknown type",
			tx: func() []byte {
				tx := execute()
				tx.Type = "migrate"
				return encodeTx(t, signed(tx))
			},
			code: CodeInvalidTx,
		},
		{
			name: "missing msg",
			tx: func() []byte {
				tx := execute()
				tx.Msg = nil
				return encodeTx(t, signed(tx))
			},
			code: CodeInvalidTx,
		},
		{
			name: "unknown field",
			tx: func() []byte {
				return []byte(`{"type":"execute","sender":"a",` +
					`"contract":"c","msg":{},"fee":1}`)
			},
			code: CodeInvalidTx,
		},
		{
			name: "unsigned",
			tx: func() []byte {
				tx := signed(execute())
				tx.Signature = ""
				return encodeTx(t, tx)
			},
			code: CodeUnauthorized,
		},
		{
			name: "other sender",
			tx: func() []byte {
				tx := signed(execute())
				tx.Sender = bob.addr
				return encodeTx(t, tx)
			},
			code: CodeUnauthorized,
		},
		{
			name: "tampered funds",
			tx: func() []byte {
				tx := signed(execute())
				tx.Funds = []chain.Coin{test.Coins(1)}
				return encodeTx(t, tx)
			},
			code: CodeUnauthorized,
		},
		{
			name: "other chain",
			tx: func() []byte {
				tx := execute()
				require.NoError(t, tx.Sign(
					"other-chain", chain.DefaultBech32HRP,
					alice.key,
				))
				return encodeTx(t, tx)
			},
			code: CodeUnauthorized,
		},
		{
			name: "stale sequence",
			tx: func() []byte {
				bob.seq = 0
				return encodeTx(t, bob.sign(t, execute()))
			},
			code: CodeInvalidSequence,
		},
		{
			name: "queued sequence",
			tx: func() []byte {
				bob.seq = 5
				return encodeTx(t, bob.sign(t, execute()))
			},
			code: CodeOK,
		},
	}

	for _, tc := range tests {
		resp, err := app.CheckTx(
			ctx, &abcitypes.CheckTxRequest{Tx: tc.tx()},
		)
		require.NoError(t, err)
		require.Equal(t, tc.code, resp.Code, tc.name)
	}
}

// TestProposals tests the proposal handling.
func TestProposals(t *testing.T) {
	ctx := context.Background()
	alice := newAccount(t, "alice")
	app, _ := newTestApp(t, alice.addr)

	valid := encodeTx(t, alice.sign(t, &Tx{
		Type:     TxTypeExecute,
		Contract: "c",
		Msg:      json.RawMessage(`{}`),
	}))

	prepared, err := app.PrepareProposal(
		ctx, &abcitypes.PrepareProposalRequest{
			Txs:        [][]byte{valid, valid, valid},
			MaxTxBytes: int64(2*len(valid) + 1),
		},
	)
	require.NoError(t, err)
	require.Len(t, prepared.Txs, 2)

	processed, err := app.ProcessProposal(
		ctx, &abcitypes.ProcessProposalRequest{
			Txs: [][]byte{valid},
		},
	)
	require.NoError(t, err)
	require.Equal(t, abcitypes.PROCESS_PROPOSAL_STATUS_ACCEPT,
		processed.Status)

	unsigned := encodeTx(t, &Tx{
		Type:     TxTypeExecute,
		Sender:   alice.addr,
		Contract: "c",
		Msg:      json.RawMessage(`{}`),
	})

	for _, bad := range [][]byte{[]byte("junk"), unsigned} {
		processed, err = app.ProcessProposal(
			ctx, &abcitypes.ProcessProposalRequest{
				Txs: [][]byte{valid, bad},
			},
		)
		require.NoError(t, err)
		require.Equal(t, abcitypes.PROCESS_PROPOSAL_STATUS_REJECT,
			processed.Status)
	}
}

// TestErrorCode tests the mapping of errors to result codes.
func TestErrorCode(t *testing.T) {
	wrap := func(err error) error {
		return fmt.Errorf("outer: %w", err)
	}

	require.Equal(t, CodeOK, errorCode(nil))
	require.Equal(t, CodeUnauthorized, errorCode(wrap(ErrInvalidSignature)))
	require.Equal(t, CodeInvalidSequence,
		errorCode(wrap(chain.ErrInvalidSequence)))
	require.Equal(t, CodeInvalidTx, errorCode(chain.ErrInvalidMessage))
	require.Equal(t, CodeUnauthorized,
		errorCode(wrap(resolver.ErrUnauthorized)))
	require.Equal(t, CodeNotFound, errorCode(wrap(escrow.ErrEscrowNotFound)))
	require.Equal(t, CodeInsufficientFunds,
		errorCode(wrap(chain.ErrInsufficientFunds)))
	require.Equal(t, CodeRejected,
		errorCode(wrap(escrow.ErrTimelockExpired)))
	require.Equal(t, CodeExecFailed, errorCode(escrow.ErrInvalidAmount))
}
