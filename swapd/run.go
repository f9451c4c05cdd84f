package swapd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/lncfg"
	"github.com/lightningnetwork/lnd/signal"
)

// loadConfig parses the command line, then the config file, then the
// command line again so flags take precedence over the file.
func loadConfig() (*Config, *flags.Parser, error) {
	config := DefaultConfig()

	// Parse command line flags.
	parser := flags.NewParser(&config, flags.Default)
	parser.SubcommandsOptional = true

	_, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	// Parse ini file.
	swapDir := lncfg.CleanAndExpandPath(config.SwapDir)
	configFile := getConfigPath(config, swapDir)

	if err := flags.IniParse(configFile, &config); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, nil, err
		}
	}

	// Parse command line flags again to restore flags overwritten by ini
	// parse.
	_, err = parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	return &config, parser, nil
}

// Run starts the swap daemon and blocks until it's shut down again.
func Run() error {
	config, parser, err := loadConfig()
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if config.ShowVersion {
		fmt.Println(appName, "version", Version())
		os.Exit(0)
	}

	// Validate our config before we proceed.
	if err := Validate(config); err != nil {
		return err
	}

	logFile, err := os.OpenFile(
		filepath.Join(config.LogDir, defaultLogFilename),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600,
	)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logOut := io.MultiWriter(os.Stdout, logFile)
	SetupLoggers(logOut)

	// Special show command to list supported subsystems and exit.
	if config.DebugLevel == "show" {
		fmt.Printf("Supported subsystems: %v\n",
			logMgr.SupportedSubsystems())
		os.Exit(0)
	}

	err = logMgr.parseAndSetDebugLevels(config.DebugLevel)
	if err != nil {
		return err
	}

	log.Infof("Version: %v", Version())

	if parser.Active != nil {
		switch parser.Active.Name {
		case "view":
			return view(config)

		case "init":
			return initGenesis(config)

		default:
			return fmt.Errorf("unimplemented command %v",
				parser.Active.Name)
		}
	}

	// Start listening for signal interrupts so the node can be shut down
	// cleanly.
	interceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-interceptor.ShutdownChannel():
			log.Infof("Received shutdown request")
			cancel()

		case <-ctx.Done():
		}
	}()

	return New(config).Run(ctx, logOut)
}

// initGenesis writes the seed file into the genesis file of the CometBFT
// home directory.
func initGenesis(config *Config) error {
	if config.SeedFile == "" {
		return fmt.Errorf("init requires --seedfile")
	}

	seed, err := LoadSeed(config.SeedFile)
	if err != nil {
		return err
	}

	file, err := genesisFile(config.CometHome)
	if err != nil {
		return err
	}

	if err := WriteAppState(file, seed); err != nil {
		return err
	}

	log.Infof("Wrote %d balances and %d contracts to %v",
		len(seed.Balances), len(seed.Contracts), file)

	return nil
}
