package swapd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/kvdb"
	"github.com/lightningnetwork/lnd/lncfg"
)

const (
	defaultConfigFilename = "swapd.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "swapd.log"
	defaultCometDirname   = "cometbft"
	defaultChainID        = "xswap-devnet"
)

var (
	// SwapDirBase is the default main directory where swapd stores its
	// data.
	SwapDirBase = btcutil.AppDataDir("swapd", false)

	defaultLogDir     = filepath.Join(SwapDirBase, defaultLogDirname)
	defaultCometHome  = filepath.Join(SwapDirBase, defaultCometDirname)
	defaultConfigFile = filepath.Join(SwapDirBase, defaultConfigFilename)
)

type viewParameters struct{}

type initParameters struct{}

// Config is the configuration of the swap daemon.
type Config struct {
	ShowVersion bool `long:"version" description:"Display version information and exit"`

	SwapDir    string `long:"swapdir" description:"The directory for all of swapd's data."`
	ConfigFile string `long:"configfile" description:"Path to configuration file."`
	DataDir    string `long:"datadir" description:"Directory for the contract state."`
	LogDir     string `long:"logdir" description:"Directory to log output."`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	ChainID   string `long:"chainid" description:"The chain id used when the genesis file doesn't set one."`
	CometHome string `long:"comethome" description:"The CometBFT home directory holding config/config.toml, the genesis file and the node keys."`
	SeedFile  string `long:"seedfile" description:"YAML file with the genesis balances and contracts. Used when the genesis file carries no app state."`

	Chain *chain.Config `group:"chain" namespace:"chain"`

	DB *kvdb.Config `group:"db" namespace:"db"`

	View viewParameters `command:"view" alias:"v" description:"View all contracts and escrows in the database. This command can only be executed when swapd is not running."`

	Init initParameters `command:"init" description:"Write the seed file as app state into the CometBFT genesis file and exit."`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		SwapDir:    SwapDirBase,
		ConfigFile: defaultConfigFile,
		DataDir:    SwapDirBase,
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,
		ChainID:    defaultChainID,
		CometHome:  defaultCometHome,
		Chain: &chain.Config{
			Bech32HRP: chain.DefaultBech32HRP,
		},
		DB: kvdb.DefaultConfig(SwapDirBase),
	}
}

// Validate cleans up paths in the config provided and validates it.
func Validate(cfg *Config) error {
	// Cleanup any paths before we use them.
	cfg.SwapDir = lncfg.CleanAndExpandPath(cfg.SwapDir)
	cfg.DataDir = lncfg.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = lncfg.CleanAndExpandPath(cfg.LogDir)
	cfg.CometHome = lncfg.CleanAndExpandPath(cfg.CometHome)
	cfg.SeedFile = lncfg.CleanAndExpandPath(cfg.SeedFile)

	// Since our swap directory overrides our log/data dir values, make
	// sure that they are not set when swap dir is set. We hard fail here
	// rather than overwriting and potentially confusing the user.
	logDirSet := cfg.LogDir != defaultLogDir
	dataDirSet := cfg.DataDir != SwapDirBase
	cometHomeSet := cfg.CometHome != defaultCometHome
	swapDirSet := cfg.SwapDir != SwapDirBase

	if swapDirSet {
		if logDirSet {
			return fmt.Errorf("swapdir overwrites logdir, please " +
				"only set one value")
		}

		if dataDirSet {
			return fmt.Errorf("swapdir overwrites datadir, please " +
				"only set one value")
		}

		if cometHomeSet {
			return fmt.Errorf("swapdir overwrites comethome, " +
				"please only set one value")
		}

		// Once we are satisfied that neither config value was set, we
		// replace them with our swap dir.
		cfg.DataDir = cfg.SwapDir
		cfg.LogDir = filepath.Join(cfg.SwapDir, defaultLogDirname)
		cfg.CometHome = filepath.Join(cfg.SwapDir, defaultCometDirname)
	}

	if cfg.ChainID == "" {
		return fmt.Errorf("chain id must be set")
	}

	if cfg.Chain == nil || cfg.Chain.Bech32HRP == "" {
		return fmt.Errorf("bech32 prefix must be set")
	}

	if cfg.DB == nil {
		return fmt.Errorf("database config must be set")
	}

	// File based backends that still point at the default location
	// follow the data dir.
	defaults := kvdb.DefaultConfig(SwapDirBase)
	moved := kvdb.DefaultConfig(cfg.DataDir)
	if cfg.DB.Bolt != nil && cfg.DB.Bolt.DBPath == defaults.Bolt.DBPath {
		cfg.DB.Bolt.DBPath = moved.Bolt.DBPath
	}
	if cfg.DB.Badger != nil && cfg.DB.Badger.Dir == defaults.Badger.Dir {
		cfg.DB.Badger.Dir = moved.Badger.Dir
	}
	if cfg.DB.Sqlite != nil && cfg.DB.Sqlite.DatabaseFileName ==
		defaults.Sqlite.DatabaseFileName {

		cfg.DB.Sqlite.DatabaseFileName = moved.Sqlite.DatabaseFileName
	}

	// If either of these directories do not exist, create them.
	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		return err
	}

	return os.MkdirAll(cfg.LogDir, os.ModePerm)
}

// getConfigPath gets our config path based on the values that are set in our
// config.
func getConfigPath(cfg Config, swapDir string) string {
	// If the config file path provided by the user is set, then we just
	// use this value.
	if cfg.ConfigFile != defaultConfigFile {
		return lncfg.CleanAndExpandPath(cfg.ConfigFile)
	}

	// Otherwise the config file lives in the swap directory, which might
	// be a custom one.
	return filepath.Join(swapDir, defaultConfigFilename)
}
