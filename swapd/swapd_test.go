package swapd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btclog/v2"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/lightninglabs/xswap/abci"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/kvdb"
	"github.com/stretchr/testify/require"
)

const testSeed = `
balances:
  - address: maker
    coins:
      - denom: utoken
        amount: 5000
contracts:
  - code_id: 1
    label: escrow
    sender: maker
    msg: '{"owner":"maker"}'
  - code_id: 2
    label: resolver
    sender: maker
    msg: '{"resolver_address":"resolver"}'
`

// TestValidateSwapDir tests that the swap dir moves all other directories
// and conflicts with explicitly set ones.
func TestValidateSwapDir(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.SwapDir = dir
	require.NoError(t, Validate(&cfg))

	require.Equal(t, dir, cfg.DataDir)
	require.Equal(t, filepath.Join(dir, defaultLogDirname), cfg.LogDir)
	require.Equal(t, filepath.Join(dir, defaultCometDirname), cfg.CometHome)
	require.Equal(t, dir, cfg.DB.Bolt.DBPath)
	require.DirExists(t, cfg.LogDir)

	cfg = DefaultConfig()
	cfg.SwapDir = dir
	cfg.LogDir = t.TempDir()
	require.ErrorContains(t, Validate(&cfg), "logdir")

	cfg = DefaultConfig()
	cfg.SwapDir = dir
	cfg.CometHome = t.TempDir()
	require.ErrorContains(t, Validate(&cfg), "comethome")

	cfg = DefaultConfig()
	cfg.SwapDir = dir
	cfg.ChainID = ""
	require.Error(t, Validate(&cfg))
}

// TestConfigPath tests where the config file is looked up.
func TestConfigPath(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, defaultConfigFile, getConfigPath(cfg, SwapDirBase))
	require.Equal(t, filepath.Join("/tmp/swap", defaultConfigFilename),
		getConfigPath(cfg, "/tmp/swap"))

	cfg.ConfigFile = "/etc/swapd.conf"
	require.Equal(t, "/etc/swapd.conf", getConfigPath(cfg, "/tmp/swap"))
}

// TestDebugLevels tests the parsing of the debuglevel option.
func TestDebugLevels(t *testing.T) {
	var buf bytes.Buffer
	mgr := newSubLoggerManager(&buf)
	escrowLog := mgr.genSubLogger("ESCR", nil)
	chainLog := mgr.genSubLogger("CHAN", nil)

	require.Equal(t, []string{"CHAN", "ESCR"}, mgr.SupportedSubsystems())

	require.NoError(t, mgr.parseAndSetDebugLevels("debug"))
	require.Equal(t, btclog.LevelDebug, escrowLog.Level())
	require.Equal(t, btclog.LevelDebug, chainLog.Level())

	require.NoError(t, mgr.parseAndSetDebugLevels("ESCR=trace,CHAN=warn"))
	require.Equal(t, btclog.LevelTrace, escrowLog.Level())
	require.Equal(t, btclog.LevelWarn, chainLog.Level())

	require.Error(t, mgr.parseAndSetDebugLevels("loud"))
	require.Error(t, mgr.parseAndSetDebugLevels("NOPE=info"))
	require.Error(t, mgr.parseAndSetDebugLevels("ESCR=loud"))
	require.Error(t, mgr.parseAndSetDebugLevels("ESCR=info=x"))

	escrowLog.Infof("hello")
	require.Contains(t, buf.String(), "ESCR")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

// TestLoadSeed tests reading and validating seed files.
func TestLoadSeed(t *testing.T) {
	state, err := LoadSeed("")
	require.NoError(t, err)
	require.True(t, state.IsEmpty())

	state, err = LoadSeed(writeFile(t, testSeed))
	require.NoError(t, err)
	require.Equal(t, []abci.GenesisBalance{{
		Address: "maker",
		Coins:   []chain.Coin{{Denom: "utoken", Amount: 5000}},
	}}, state.Balances)
	require.Len(t, state.Contracts, 2)
	require.Equal(t, CodeIDResolver, state.Contracts[1].CodeID)
	require.JSONEq(t, `{"resolver_address":"resolver"}`,
		state.Contracts[1].Msg)

	invalid := []string{
		"contracts:\n  - code_id: 9\n    sender: maker\n",
		"contracts:\n  - code_id: 1\n",
		"contracts:\n  - code_id: 1\n    sender: a\n    msg: '{'\n",
		"balances:\n  - coins: []\n",
		"balances: [",
	}
	for _, content := range invalid {
		_, err := LoadSeed(writeFile(t, content))
		require.Error(t, err, content)
	}

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestWriteAppState tests that the seed ends up as app state of the
// genesis file.
func TestWriteAppState(t *testing.T) {
	file := filepath.Join(t.TempDir(), "genesis.json")

	genDoc := &cmttypes.GenesisDoc{
		ChainID:     "xswap-test",
		GenesisTime: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, genDoc.ValidateAndComplete())
	require.NoError(t, genDoc.SaveAs(file))

	seed, err := LoadSeed(writeFile(t, testSeed))
	require.NoError(t, err)
	require.NoError(t, WriteAppState(file, seed))

	stored, err := cmttypes.GenesisDocFromFile(file)
	require.NoError(t, err)
	require.Equal(t, "xswap-test", stored.ChainID)

	state, err := abci.ParseGenesisState(stored.AppState)
	require.NoError(t, err)
	require.Equal(t, seed, state)
}

// TestRegisterDefaultCodes tests that the default codes can only be
// registered once.
func TestRegisterDefaultCodes(t *testing.T) {
	host := chain.New(kvdb.NewTestBoltDB(t), &chain.Config{})

	require.NoError(t, RegisterDefaultCodes(host))
	require.Len(t, host.Codes(), 3)
	require.ErrorIs(t, RegisterDefaultCodes(host), chain.ErrCodeExists)
}

// TestView tests that view lists the escrows of the genesis contracts.
func TestView(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SwapDir = t.TempDir()
	require.NoError(t, Validate(&cfg))

	seed, err := LoadSeed(writeFile(t, testSeed))
	require.NoError(t, err)

	d := New(&cfg)
	require.NoError(t, d.openHost())

	app := abci.NewApplication(d.host, &abci.Config{Genesis: seed})
	_, err = app.InitChain(
		context.Background(), &abcitypes.InitChainRequest{
			ChainId:       "xswap-test",
			InitialHeight: 1,
			Time:          time.Unix(1700000000, 0),
		},
	)
	require.NoError(t, err)

	contracts, err := d.host.Contracts(context.Background())
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	balance, err := d.host.Balance(context.Background(), "maker", "utoken")
	require.NoError(t, err)
	require.EqualValues(t, 5000, balance)

	d.close()

	require.NoError(t, view(&cfg))
}

// TestVersion tests the version string.
func TestVersion(t *testing.T) {
	require.Equal(t, "0.1.0-alpha", semanticVersion())
	require.Equal(t, "rc-1", normalizeVerString("rc.-1!"))

	Commit = "abcdef"
	defer func() { Commit = "" }()

	require.Equal(t, "0.1.0-alpha commit=abcdef", Version())
}
