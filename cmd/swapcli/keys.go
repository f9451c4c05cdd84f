package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/lightninglabs/xswap/abci"
	"github.com/lightninglabs/xswap/chain"
	"github.com/urfave/cli"
)

const (
	keysDirName = "keys"
	keyFileExt  = ".key"
)

var (
	// errKeyNotFound is returned when there is no key file of that name.
	errKeyNotFound = errors.New("key not found")

	errInvalidKeyName = errors.New("invalid key name")

	fromFlag = cli.StringFlag{
		Name:  "from",
		Usage: "the name of the key signing the transaction",
	}
)

// keyStore keeps hex encoded private keys in one file per key.
type keyStore struct {
	dir string
	hrp string
}

func newKeyStore(swapDir string) *keyStore {
	return &keyStore{
		dir: filepath.Join(swapDir, keysDirName),
		hrp: chain.DefaultBech32HRP,
	}
}

func getKeyStore(ctx *cli.Context) *keyStore {
	return newKeyStore(ctx.GlobalString("swapdir"))
}

func (s *keyStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return "", fmt.Errorf("%w %q", errInvalidKeyName, name)
	}

	return filepath.Join(s.dir, name+keyFileExt), nil
}

// create generates and stores a new key. Existing keys are never
// overwritten.
func (s *keyStore) create(name string) (*btcec.PrivateKey, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("key %v already exists", name)
		}
		return nil, err
	}
	defer f.Close()

	_, err = f.WriteString(hex.EncodeToString(key.Serialize()) + "\n")
	if err != nil {
		return nil, err
	}

	return key, nil
}

// load reads a stored key.
func (s *keyStore) load(name string) (*btcec.PrivateKey, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", errKeyNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("key file %v is corrupt", path)
	}

	key, _ := btcec.PrivKeyFromBytes(raw)

	return key, nil
}

// list returns the names of the stored keys, sorted.
func (s *keyStore) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, keyFileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, keyFileExt))
	}
	sort.Strings(names)

	return names, nil
}

// address returns the account address of a stored key.
func (s *keyStore) address(name string) (string, error) {
	key, err := s.load(name)
	if err != nil {
		return "", err
	}

	return abci.SenderAddress(s.hrp, key.PubKey())
}

// resolve returns the address of the key of that name, or the argument
// itself if there is no such key.
func (s *keyStore) resolve(nameOrAddr string) (string, error) {
	addr, err := s.address(nameOrAddr)
	switch {
	case err == nil:
		return addr, nil

	case errors.Is(err, errKeyNotFound),
		errors.Is(err, errInvalidKeyName):

		return nameOrAddr, nil

	default:
		return "", err
	}
}

type keyInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	PubKey  string `json:"pub_key"`
}

func (s *keyStore) info(name string) (*keyInfo, error) {
	key, err := s.load(name)
	if err != nil {
		return nil, err
	}

	addr, err := abci.SenderAddress(s.hrp, key.PubKey())
	if err != nil {
		return nil, err
	}

	return &keyInfo{
		Name:    name,
		Address: addr,
		PubKey:  hex.EncodeToString(schnorr.SerializePubKey(key.PubKey())),
	}, nil
}

var keysCommand = cli.Command{
	Name:  "keys",
	Usage: "manage the keys that sign transactions",
	Subcommands: []cli.Command{
		{
			Name:      "add",
			Usage:     "generate a new key",
			ArgsUsage: "name",
			Action: func(ctx *cli.Context) error {
				if ctx.NArg() != 1 {
					return cli.ShowCommandHelp(ctx, "add")
				}

				store := getKeyStore(ctx)
				name := ctx.Args().First()
				if _, err := store.create(name); err != nil {
					return err
				}

				info, err := store.info(name)
				if err != nil {
					return err
				}

				printRespJSON(info)
				return nil
			},
		},
		{
			Name:      "show",
			Usage:     "show the address of a key",
			ArgsUsage: "name",
			Action: func(ctx *cli.Context) error {
				if ctx.NArg() != 1 {
					return cli.ShowCommandHelp(ctx, "show")
				}

				info, err := getKeyStore(ctx).info(
					ctx.Args().First(),
				)
				if err != nil {
					return err
				}

				printRespJSON(info)
				return nil
			},
		},
		{
			Name:  "list",
			Usage: "list the stored keys",
			Action: func(ctx *cli.Context) error {
				store := getKeyStore(ctx)
				names, err := store.list()
				if err != nil {
					return err
				}

				infos := make([]*keyInfo, 0, len(names))
				for _, name := range names {
					info, err := store.info(name)
					if err != nil {
						return err
					}
					infos = append(infos, info)
				}

				printRespJSON(infos)
				return nil
			},
		},
	},
}
