package swapd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/labels"
)

// view prints all contracts and escrows currently in the database.
func view(config *Config) error {
	d := New(config)
	if err := d.openHost(); err != nil {
		return err
	}
	defer d.close()

	ctx := context.Background()

	height, _, err := d.host.LastBlock(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Height: %d\n", height)

	contracts, err := d.host.Contracts(ctx)
	if err != nil {
		return err
	}

	for _, info := range contracts {
		origin := "created by " + info.Creator
		if labels.IsGenesis(info.Label) {
			origin = "genesis"
		}

		fmt.Printf("Contract %v (code %d, %q) %v at height %d\n",
			info.Address, info.CodeID, labels.Strip(info.Label),
			origin, info.Height)

		if info.CodeID != CodeIDEscrow {
			continue
		}

		if err := viewEscrows(ctx, d.host, info.Address); err != nil {
			return err
		}
	}

	return nil
}

// viewEscrows prints all escrows of an escrow contract, page by page.
func viewEscrows(ctx context.Context, host *chain.Chain,
	contract string) error {

	limit := uint32(escrow.MaxListLimit)
	query := &escrow.ListEscrowsQuery{Limit: &limit}

	for {
		msg, err := escrow.EncodeQueryMsg(query)
		if err != nil {
			return err
		}

		answer, err := host.Query(ctx, chain.Block{}, contract, msg)
		if err != nil {
			return err
		}

		var escrows []*escrow.Escrow
		if err := json.Unmarshal(answer, &escrows); err != nil {
			return err
		}

		for _, e := range escrows {
			state, err := e.State()
			if err != nil {
				return err
			}

			fmt.Printf("  %v\n", e.OrderHash)
			fmt.Printf("    State: %v\n", state)
			fmt.Printf("    Maker: %v\n", e.Maker)
			fmt.Printf("    Taker: %v\n", e.Taker)
			fmt.Printf("    Amount: %d%v\n", e.Amount, e.Token)
			fmt.Printf("    Hashlock: %v\n", e.Hashlock)
			fmt.Printf("    Timelock: %v\n",
				time.Unix(int64(e.Timelock), 0).UTC())
		}

		if len(escrows) < int(limit) {
			return nil
		}

		last := escrows[len(escrows)-1].OrderHash
		query.StartAfter = &last
	}
}
