package abci

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/labels"
)

// GenesisState is the initial state of the chain, carried as app_state in
// the genesis file.
type GenesisState struct {
	// Balances are minted before any contract is instantiated.
	Balances []GenesisBalance `json:"balances" yaml:"balances"`

	// Contracts are instantiated in order.
	Contracts []GenesisContract `json:"contracts" yaml:"contracts"`
}

// GenesisBalance funds an account.
type GenesisBalance struct {
	Address string       `json:"address" yaml:"address"`
	Coins   []chain.Coin `json:"coins" yaml:"coins"`
}

// GenesisContract is a contract instance created at genesis.
type GenesisContract struct {
	CodeID uint64       `json:"code_id" yaml:"code_id"`
	Label  string       `json:"label" yaml:"label"`
	Sender string       `json:"sender" yaml:"sender"`
	Msg    string       `json:"msg" yaml:"msg"`
	Funds  []chain.Coin `json:"funds,omitempty" yaml:"funds,omitempty"`
}

// ParseGenesisState decodes the app_state of a genesis file. Empty state
// decodes to an empty genesis.
func ParseGenesisState(appState []byte) (*GenesisState, error) {
	state := &GenesisState{}
	if len(appState) == 0 {
		return state, nil
	}

	if err := json.Unmarshal(appState, state); err != nil {
		return nil, fmt.Errorf("invalid app state: %w", err)
	}

	return state, nil
}

// IsEmpty reports whether the genesis sets up nothing.
func (g *GenesisState) IsEmpty() bool {
	return len(g.Balances) == 0 && len(g.Contracts) == 0
}

// apply mints the balances and instantiates the contracts. It returns the
// addresses of the new contracts in order.
func (g *GenesisState) apply(ctx context.Context, host *chain.Chain,
	block chain.Block) ([]string, error) {

	for _, balance := range g.Balances {
		if err := host.Mint(ctx, balance.Address, balance.Coins); err != nil {
			return nil, fmt.Errorf("genesis balance of %v: %w",
				balance.Address, err)
		}
	}

	addresses := make([]string, 0, len(g.Contracts))
	for _, contract := range g.Contracts {
		msg := contract.Msg
		if msg == "" {
			msg = "{}"
		}

		result, err := Apply(ctx, host, block, &Tx{
			Type:   TxTypeInstantiate,
			Sender: contract.Sender,
			CodeID: contract.CodeID,
			Label:  labels.Genesis(contract.Label),
			Msg:    json.RawMessage(msg),
			Funds:  contract.Funds,
		})
		if err != nil {
			return nil, fmt.Errorf("genesis contract %q: %w",
				contract.Label, err)
		}

		addresses = append(addresses, result.Contract)
	}

	return addresses, nil
}
