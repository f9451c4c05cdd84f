package swapd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtcfg "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/spf13/viper"
)

// loadCometConfig reads config/config.toml of the CometBFT home directory.
func loadCometConfig(home string) (*cmtcfg.Config, error) {
	config := cmtcfg.DefaultConfig()
	config.SetRoot(home)

	v := viper.New()
	v.SetConfigFile(filepath.Join(home, "config", "config.toml"))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// Unmarshal may overwrite the root with the value from the file.
	config.SetRoot(home)

	if err := config.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}

	return config, nil
}

// newNode creates a CometBFT node running app in process.
func newNode(ctx context.Context, home string, app abcitypes.Application,
	w io.Writer) (*nm.Node, error) {

	config, err := loadCometConfig(home)
	if err != nil {
		return nil, err
	}

	pv := privval.LoadFilePV(
		config.PrivValidatorKeyFile(),
		config.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load node's key: %w", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(w))
	logger, err = cmtflags.ParseLogLevel(
		config.LogLevel, logger, cmtcfg.DefaultLogLevel,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	node, err := nm.NewNode(
		ctx,
		config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		nm.DefaultGenesisDocProviderFunc(config),
		cmtcfg.DefaultDBProvider,
		nm.DefaultMetricsProvider(config.Instrumentation),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("creating node: %w", err)
	}

	return node, nil
}

// genesisFile returns the path of the genesis file of the CometBFT home
// directory.
func genesisFile(home string) (string, error) {
	config, err := loadCometConfig(home)
	if err != nil {
		return "", err
	}

	return config.GenesisFile(), nil
}
