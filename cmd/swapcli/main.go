package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/lightninglabs/xswap/abci"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/kvdb"
	"github.com/lightninglabs/xswap/swapd"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/urfave/cli"
)

var (
	// errTxFailed is returned when a submitted transaction has a non-zero
	// result code.
	errTxFailed = errors.New("transaction failed")

	defaultChainID = "xswap-devnet"

	defaultEscrowExpiry = time.Hour
)

func printRespJSON(resp interface{}) {
	jsonStr, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}

	fmt.Println(string(jsonStr))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[swapcli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()

	app.Version = swapd.Version()
	app.Name = "swapcli"
	app.Usage = "run swap contracts on a local devnet database"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "swapdir",
			Value: swapd.SwapDirBase,
			Usage: "path to swapd's base directory",
		},
		cli.StringFlag{
			Name:  "backend",
			Value: kvdb.BackendBolt,
			Usage: "the database backend {bbolt, badger, sqlite}",
		},
		cli.StringFlag{
			Name:  "chainid",
			Value: defaultChainID,
			Usage: "the chain id of the devnet blocks",
		},
		cli.Int64Flag{
			Name: "at",
			Usage: "run at this unix time instead of the current " +
				"time, to exercise timelocks",
		},
	}
	app.Commands = []cli.Command{
		genesisCommand, instantiateCommand, executeCommand,
		queryCommand, balanceCommand, mintCommand,
		listEscrowsCommand, createEscrowCommand, claimCommand,
		refundCommand, pingCommand, viewCommand, keysCommand,
	}

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

// devnet is a single node chain on the local database. Every submitted
// transaction is finalized in its own block.
type devnet struct {
	host  *chain.Chain
	app   *abci.Application
	clock clock.Clock

	chainID string
}

// getDevnet opens the devnet database selected by the global flags.
func getDevnet(ctx *cli.Context) (*devnet, func(), error) {
	swapDir := ctx.GlobalString("swapdir")

	dbCfg := kvdb.DefaultConfig(swapDir)
	dbCfg.Backend = ctx.GlobalString("backend")
	if dbCfg.Backend == kvdb.BackendPostgres {
		return nil, nil, fmt.Errorf("the devnet only runs on file " +
			"based backends")
	}

	if err := os.MkdirAll(swapDir, os.ModePerm); err != nil {
		return nil, nil, err
	}

	db, err := kvdb.Open(dbCfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	var clk clock.Clock = clock.NewDefaultClock()
	if ctx.GlobalIsSet("at") {
		clk = clock.NewTestClock(time.Unix(ctx.GlobalInt64("at"), 0))
	}

	d, err := newDevnet(db, clk, ctx.GlobalString("chainid"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return d, cleanup, nil
}

// newDevnet creates a devnet on an open database.
func newDevnet(db kvdb.Backend, clk clock.Clock,
	chainID string) (*devnet, error) {

	host := chain.New(db, &chain.Config{
		Bech32HRP: chain.DefaultBech32HRP,
	})
	if err := swapd.RegisterDefaultCodes(host); err != nil {
		return nil, err
	}

	return &devnet{
		host:  host,
		clock: clk,
		app: abci.NewApplication(host, &abci.Config{
			ChainID: chainID,
			Version: swapd.Version(),
		}),
		chainID: chainID,
	}, nil
}

// txResult is the printed outcome of a transaction.
type txResult struct {
	Height   int64           `json:"height"`
	Code     uint32          `json:"code"`
	Contract string          `json:"contract,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Events   []chain.Event   `json:"events,omitempty"`
	AppHash  string          `json:"app_hash"`
}

// submit signs the transaction with the next sequence of the key, then
// finalizes and commits a block holding it.
func (d *devnet) submit(key *btcec.PrivateKey,
	tx *abci.Tx) (*txResult, error) {

	ctx := context.Background()
	hrp := d.host.Bech32HRP()

	sender, err := abci.SenderAddress(hrp, key.PubKey())
	if err != nil {
		return nil, err
	}

	tx.Sequence, err = d.host.Sequence(ctx, sender)
	if err != nil {
		return nil, err
	}

	if err := tx.Sign(d.chainID, hrp, key); err != nil {
		return nil, err
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}

	raw, err := tx.Encode()
	if err != nil {
		return nil, err
	}

	height, _, err := d.host.LastBlock(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := d.app.FinalizeBlock(ctx, &abcitypes.FinalizeBlockRequest{
		Txs:    [][]byte{raw},
		Height: height + 1,
		Time:   d.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if _, err := d.app.Commit(ctx, &abcitypes.CommitRequest{}); err != nil {
		return nil, err
	}

	exec := resp.TxResults[0]
	if exec.Code != abci.CodeOK {
		return nil, fmt.Errorf("%w (code %d): %v", errTxFailed,
			exec.Code, exec.Log)
	}

	return &txResult{
		Height:   height + 1,
		Code:     exec.Code,
		Contract: exec.Log,
		Data:     exec.Data,
		Events:   convertEvents(exec.Events),
		AppHash:  fmt.Sprintf("%x", resp.AppHash),
	}, nil
}

// query runs an ABCI query and returns the answer.
func (d *devnet) query(path string, data []byte) ([]byte, error) {
	resp, err := d.app.Query(
		context.Background(), &abcitypes.QueryRequest{
			Path: path,
			Data: data,
		},
	)
	if err != nil {
		return nil, err
	}

	if resp.Code != abci.CodeOK {
		return nil, fmt.Errorf("query %v failed (code %d): %v", path,
			resp.Code, resp.Log)
	}

	return resp.Value, nil
}

// convertEvents maps ABCI events back to host events for printing.
func convertEvents(events []abcitypes.Event) []chain.Event {
	converted := make([]chain.Event, 0, len(events))
	for _, event := range events {
		attrs := make([]chain.Attribute, 0, len(event.Attributes))
		for _, attr := range event.Attributes {
			attrs = append(attrs, chain.Attribute{
				Key:   attr.Key,
				Value: attr.Value,
			})
		}

		converted = append(converted, chain.Event{
			Type:       event.Type,
			Attributes: attrs,
		})
	}

	return converted
}

// parseCoins parses a comma separated list of coins in the <amount><denom>
// notation, for example 1000utoken,5stake.
func parseCoins(text string) ([]chain.Coin, error) {
	if text == "" {
		return nil, nil
	}

	var coins []chain.Coin
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)

		split := strings.IndexFunc(part, func(r rune) bool {
			return r < '0' || r > '9'
		})
		if split <= 0 {
			return nil, fmt.Errorf("invalid coin %q", part)
		}

		amount, err := strconv.ParseUint(part[:split], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in %q: %w",
				part, err)
		}

		coins = append(coins, chain.Coin{
			Denom:  part[split:],
			Amount: amount,
		})
	}

	return coins, nil
}

// readMsg returns the message argument, reading it from a file if it starts
// with @.
func readMsg(msg string) (json.RawMessage, error) {
	if strings.HasPrefix(msg, "@") {
		data, err := os.ReadFile(filepath.Clean(msg[1:]))
		if err != nil {
			return nil, err
		}
		msg = string(data)
	}

	if !json.Valid([]byte(msg)) {
		return nil, fmt.Errorf("msg is not valid JSON")
	}

	return json.RawMessage(msg), nil
}
