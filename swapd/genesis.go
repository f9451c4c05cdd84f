package swapd

import (
	"encoding/json"
	"fmt"
	"os"

	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/lightninglabs/xswap/abci"
	"gopkg.in/yaml.v3"
)

// LoadSeed reads a YAML seed file describing the genesis balances and
// contracts. An empty path yields an empty genesis.
func LoadSeed(path string) (*abci.GenesisState, error) {
	state := &abci.GenesisState{}
	if path == "" {
		return state, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	if err := yaml.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse seed file %v: %w", path, err)
	}

	if err := validateSeed(state); err != nil {
		return nil, fmt.Errorf("seed file %v: %w", path, err)
	}

	return state, nil
}

// validateSeed checks that every contract refers to a known code and
// carries a JSON instantiate message.
func validateSeed(state *abci.GenesisState) error {
	known := make(map[uint64]bool)
	for _, code := range DefaultCodes() {
		known[code.ID] = true
	}

	for i, contract := range state.Contracts {
		if !known[contract.CodeID] {
			return fmt.Errorf("contract %d: unknown code id %d", i,
				contract.CodeID)
		}

		if contract.Sender == "" {
			return fmt.Errorf("contract %d: missing sender", i)
		}

		if contract.Msg != "" && !json.Valid([]byte(contract.Msg)) {
			return fmt.Errorf("contract %d: msg is not valid JSON",
				i)
		}
	}

	for _, balance := range state.Balances {
		if balance.Address == "" {
			return fmt.Errorf("balance without address")
		}
	}

	return nil
}

// WriteAppState stores the genesis state as app_state in the CometBFT
// genesis file. An existing app state is replaced.
func WriteAppState(genesisFile string, state *abci.GenesisState) error {
	genDoc, err := cmttypes.GenesisDocFromFile(genesisFile)
	if err != nil {
		return err
	}

	appState, err := json.Marshal(state)
	if err != nil {
		return err
	}
	genDoc.AppState = appState

	return genDoc.SaveAs(genesisFile)
}
