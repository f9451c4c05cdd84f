package swapd

import (
	"context"
	"errors"
	"io"

	"github.com/lightninglabs/xswap/abci"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/kvdb"
	"golang.org/x/sync/errgroup"
)

// ErrNodeStopped is returned when the CometBFT node quits without being
// asked to.
var ErrNodeStopped = errors.New("cometbft node stopped unexpectedly")

// Daemon is the swap daemon: the contract host on its database, served to an
// in-process CometBFT node.
type Daemon struct {
	cfg *Config

	db   kvdb.Backend
	host *chain.Chain
}

// New creates a daemon from a validated config.
func New(cfg *Config) *Daemon {
	return &Daemon{
		cfg: cfg,
	}
}

// openHost opens the database and registers the contract codes.
func (d *Daemon) openHost() error {
	log.Infof("Opening %v database", d.cfg.DB.Backend)

	db, err := kvdb.Open(d.cfg.DB)
	if err != nil {
		return err
	}

	host := chain.New(db, d.cfg.Chain)
	if err := RegisterDefaultCodes(host); err != nil {
		_ = db.Close()
		return err
	}

	d.db = db
	d.host = host

	return nil
}

// close closes the database.
func (d *Daemon) close() {
	if d.db == nil {
		return
	}

	if err := d.db.Close(); err != nil {
		log.Errorf("Error closing database: %v", err)
	}
	d.db = nil
}

// Run starts the node and blocks until ctx is canceled or the node quits.
// Node output is written to w.
func (d *Daemon) Run(ctx context.Context, w io.Writer) error {
	seed, err := LoadSeed(d.cfg.SeedFile)
	if err != nil {
		return err
	}

	if err := d.openHost(); err != nil {
		return err
	}
	defer d.close()

	height, appHash, err := d.host.LastBlock(ctx)
	if err != nil {
		return err
	}
	log.Infof("Contract state at height %d, app hash %x", height, appHash)

	app := abci.NewApplication(d.host, &abci.Config{
		ChainID: d.cfg.ChainID,
		Genesis: seed,
		Version: Version(),
	})

	node, err := newNode(ctx, d.cfg.CometHome, app, w)
	if err != nil {
		return err
	}

	log.Infof("Starting CometBFT node %v", node.NodeInfo().ID())
	if err := node.Start(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()

		if !node.IsRunning() {
			return nil
		}

		log.Infof("Stopping CometBFT node")
		if err := node.Stop(); err != nil {
			return err
		}
		node.Wait()

		return nil
	})

	g.Go(func() error {
		select {
		case <-node.Quit():
			if ctx.Err() == nil {
				return ErrNodeStopped
			}

			return nil

		case <-ctx.Done():
			return nil
		}
	})

	err = g.Wait()
	log.Infof("Daemon stopped")

	return err
}
