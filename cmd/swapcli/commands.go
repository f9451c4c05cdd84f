package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/xswap/abci"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/swapd"
	"github.com/urfave/cli"
)

var (
	contractFlag = cli.StringFlag{
		Name:  "contract",
		Usage: "the address of the contract",
	}
	fundsFlag = cli.StringFlag{
		Name:  "funds",
		Usage: "coins sent along, e.g. 1000utoken",
	}
	msgFlag = cli.StringFlag{
		Name:  "msg",
		Usage: "the JSON message, or @file to read it from a file",
	}
)

var genesisCommand = cli.Command{
	Name:  "genesis",
	Usage: "initialize the devnet from a seed file",
	Description: "Funds the seed balances and instantiates the seed " +
		"contracts. Only works on an empty devnet.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "seedfile",
			Usage: "the YAML seed file",
		},
	},
	Action: genesis,
}

func genesis(ctx *cli.Context) error {
	seed, err := swapd.LoadSeed(ctx.String("seedfile"))
	if err != nil {
		return err
	}

	d, cleanup, err := getDevnet(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	contracts, err := d.host.Contracts(context.Background())
	if err != nil {
		return err
	}
	if len(contracts) > 0 {
		return fmt.Errorf("devnet already has %d contracts",
			len(contracts))
	}

	appState, err := json.Marshal(seed)
	if err != nil {
		return err
	}

	_, err = d.app.InitChain(
		context.Background(), &abcitypes.InitChainRequest{
			ChainId:       d.chainID,
			InitialHeight: 1,
			Time:          d.clock.Now(),
			AppStateBytes: appState,
		},
	)
	if err != nil {
		return err
	}

	contracts, err = d.host.Contracts(context.Background())
	if err != nil {
		return err
	}

	printRespJSON(contracts)
	return nil
}

var instantiateCommand = cli.Command{
	Name:      "instantiate",
	Usage:     "create a contract instance",
	ArgsUsage: "code_id",
	Flags: []cli.Flag{
		fromFlag, msgFlag, fundsFlag,
		cli.StringFlag{
			Name:  "label",
			Usage: "a human readable label of the instance",
		},
	},
	Action: instantiate,
}

func instantiate(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "instantiate")
	}

	codeID, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid code id: %w", err)
	}

	msg := ctx.String("msg")
	if msg == "" {
		msg = "{}"
	}

	return submit(ctx, &abci.Tx{
		Type:   abci.TxTypeInstantiate,
		CodeID: codeID,
		Label:  ctx.String("label"),
	}, msg)
}

var executeCommand = cli.Command{
	Name:  "execute",
	Usage: "execute a contract command",
	Flags: []cli.Flag{fromFlag, contractFlag, msgFlag, fundsFlag},
	Action: func(ctx *cli.Context) error {
		return submit(ctx, &abci.Tx{
			Type:     abci.TxTypeExecute,
			Contract: ctx.String("contract"),
		}, ctx.String("msg"))
	},
}

// submit completes the transaction with the message and funds flags, signs
// it with the key of the from flag and runs it in a new block.
func submit(ctx *cli.Context, tx *abci.Tx, msg string) error {
	raw, err := readMsg(msg)
	if err != nil {
		return err
	}
	tx.Msg = raw

	tx.Funds, err = parseCoins(ctx.String("funds"))
	if err != nil {
		return err
	}

	key, err := getKeyStore(ctx).load(ctx.String("from"))
	if err != nil {
		return err
	}

	d, cleanup, err := getDevnet(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := d.submit(key, tx)
	if err != nil {
		return err
	}

	printRespJSON(result)
	return nil
}

var queryCommand = cli.Command{
	Name:   "query",
	Usage:  "query a contract",
	Flags:  []cli.Flag{contractFlag, msgFlag},
	Action: query,
}

func query(ctx *cli.Context) error {
	msg, err := readMsg(ctx.String("msg"))
	if err != nil {
		return err
	}

	return queryContract(ctx, ctx.String("contract"), msg)
}

// queryContract prints the answer of a contract query.
func queryContract(ctx *cli.Context, contract string, msg []byte) error {
	d, cleanup, err := getDevnet(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	answer, err := d.query("/contract/"+contract, msg)
	if err != nil {
		return err
	}

	printRespJSON(json.RawMessage(answer))
	return nil
}

var balanceCommand = cli.Command{
	Name:      "balance",
	Usage:     "show the balances of an address or key",
	ArgsUsage: "address|key",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "balance")
		}

		d, cleanup, err := getDevnet(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		addr, err := getKeyStore(ctx).resolve(ctx.Args().First())
		if err != nil {
			return err
		}

		coins, err := d.host.Balances(context.Background(), addr)
		if err != nil {
			return err
		}

		printRespJSON(coins)
		return nil
	},
}

var mintCommand = cli.Command{
	Name:      "mint",
	Usage:     "credit new coins to an address or key",
	ArgsUsage: "address|key coins",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.ShowCommandHelp(ctx, "mint")
		}

		coins, err := parseCoins(ctx.Args().Get(1))
		if err != nil {
			return err
		}

		d, cleanup, err := getDevnet(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		addr, err := getKeyStore(ctx).resolve(ctx.Args().First())
		if err != nil {
			return err
		}

		err = d.host.Mint(context.Background(), addr, coins)
		if err != nil {
			return err
		}

		fmt.Printf("Minted %v to %v\n", chain.CoinsString(coins), addr)
		return nil
	},
}

var listEscrowsCommand = cli.Command{
	Name:  "listescrows",
	Usage: "list the escrows of an escrow contract",
	Flags: []cli.Flag{
		contractFlag,
		cli.StringFlag{
			Name:  "start_after",
			Usage: "only list escrows after this order hash",
		},
		cli.UintFlag{
			Name:  "limit",
			Usage: "the maximum number of escrows to list",
		},
	},
	Action: func(ctx *cli.Context) error {
		q := &escrow.ListEscrowsQuery{}
		if ctx.IsSet("start_after") {
			startAfter := ctx.String("start_after")
			q.StartAfter = &startAfter
		}
		if ctx.IsSet("limit") {
			limit := uint32(ctx.Uint("limit"))
			q.Limit = &limit
		}

		msg, err := escrow.EncodeQueryMsg(q)
		if err != nil {
			return err
		}

		return queryContract(ctx, ctx.String("contract"), msg)
	},
}

var createEscrowCommand = cli.Command{
	Name:      "createescrow",
	Usage:     "lock funds in a new escrow",
	ArgsUsage: "order_hash preimage",
	Description: "Creates an escrow locked to the sha256 hash of the " +
		"preimage. The signing key is the maker and funds the escrow.",
	Flags: []cli.Flag{
		fromFlag, contractFlag,
		cli.StringFlag{
			Name:  "taker",
			Usage: "the address or key that can claim the escrow",
		},
		cli.StringFlag{
			Name:  "amount",
			Usage: "the escrowed coin, e.g. 1000utoken",
		},
		cli.DurationFlag{
			Name:  "expiry",
			Usage: "time until the maker can refund the escrow",
			Value: defaultEscrowExpiry,
		},
	},
	Action: createEscrow,
}

func createEscrow(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "createescrow")
	}

	coins, err := parseCoins(ctx.String("amount"))
	if err != nil {
		return err
	}
	if len(coins) != 1 {
		return fmt.Errorf("escrows hold a single coin")
	}

	store := getKeyStore(ctx)
	key, err := store.load(ctx.String("from"))
	if err != nil {
		return err
	}
	maker, err := abci.SenderAddress(store.hrp, key.PubKey())
	if err != nil {
		return err
	}
	taker, err := store.resolve(ctx.String("taker"))
	if err != nil {
		return err
	}

	d, cleanup, err := getDevnet(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	timelock := d.clock.Now().Add(ctx.Duration("expiry"))
	msg, err := escrow.EncodeExecuteMsg(&escrow.CreateEscrowMsg{
		Escrow: escrow.Escrow{
			OrderHash: ctx.Args().First(),
			Maker:     maker,
			Taker:     taker,
			Token:     coins[0].Denom,
			Amount:    coins[0].Amount,
			Hashlock:  escrow.HashPreimage(ctx.Args().Get(1)),
			Timelock:  uint64(timelock.Unix()),
		},
	})
	if err != nil {
		return err
	}

	result, err := d.submit(key, &abci.Tx{
		Type:     abci.TxTypeExecute,
		Contract: ctx.String("contract"),
		Msg:      msg,
		Funds:    coins,
	})
	if err != nil {
		return err
	}

	printRespJSON(result)
	return nil
}

var claimCommand = cli.Command{
	Name:      "claim",
	Usage:     "claim an escrow with the preimage",
	ArgsUsage: "order_hash preimage",
	Flags:     []cli.Flag{fromFlag, contractFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.ShowCommandHelp(ctx, "claim")
		}

		return executeEscrow(ctx, &escrow.ClaimMsg{
			OrderHash: ctx.Args().First(),
			Preimage:  ctx.Args().Get(1),
		})
	},
}

var refundCommand = cli.Command{
	Name:      "refund",
	Usage:     "refund an expired escrow to the maker",
	ArgsUsage: "order_hash",
	Flags:     []cli.Flag{fromFlag, contractFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "refund")
		}

		return executeEscrow(ctx, &escrow.RefundMsg{
			OrderHash: ctx.Args().First(),
		})
	},
}

// executeEscrow submits an escrow command.
func executeEscrow(ctx *cli.Context, cmd escrow.ExecuteMsg) error {
	msg, err := escrow.EncodeExecuteMsg(cmd)
	if err != nil {
		return err
	}

	return submit(ctx, &abci.Tx{
		Type:     abci.TxTypeExecute,
		Contract: ctx.String("contract"),
	}, string(msg))
}

var pingCommand = cli.Command{
	Name:  "ping",
	Usage: "check that the devnet answers queries",
	Action: func(ctx *cli.Context) error {
		d, cleanup, err := getDevnet(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		answer, err := d.query("/ping", nil)
		if err != nil {
			return err
		}

		fmt.Println(string(answer))
		return nil
	},
}

var viewCommand = cli.Command{
	Name:  "view",
	Usage: "dump all contract instances and the last block",
	Action: func(ctx *cli.Context) error {
		d, cleanup, err := getDevnet(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		height, appHash, err := d.host.LastBlock(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Height: %d, app hash: %x\n", height, appHash)

		contracts, err := d.host.Contracts(context.Background())
		if err != nil {
			return err
		}

		spew.Dump(contracts)
		return nil
	},
}
