package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/xswap/kvdb"
)

var (
	// ErrCodeNotFound is returned when a code id isn't registered.
	ErrCodeNotFound = errors.New("code not found")

	// ErrCodeExists is returned when a code id is registered twice.
	ErrCodeExists = errors.New("code already registered")

	// ErrInvalidMessage is returned for messages the host refuses to
	// process, before the contract is reached.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrWrongContractType is returned when a nested call reaches a
	// contract of a different code than the caller expects.
	ErrWrongContractType = errors.New("wrong contract type")
)

// Config holds the host options.
type Config struct {
	// Bech32HRP is the human readable part of contract addresses.
	Bech32HRP string `long:"bech32hrp" description:"Human readable prefix of contract addresses."`
}

// Chain is the execution environment contracts run in. Every state changing
// operation runs in a single database transaction: the call, the transfers
// it emits and all nested calls either commit together or not at all.
type Chain struct {
	cfg *Config
	db  kvdb.Backend

	codes   map[uint64]*Code
	codesMu sync.RWMutex
}

// New creates a new host on top of the given database.
func New(db kvdb.Backend, cfg *Config) *Chain {
	if cfg.Bech32HRP == "" {
		cfg.Bech32HRP = DefaultBech32HRP
	}

	return &Chain{
		cfg:   cfg,
		db:    db,
		codes: make(map[uint64]*Code),
	}
}

// Bech32HRP returns the human readable part of the addresses of this host.
func (c *Chain) Bech32HRP() string {
	return c.cfg.Bech32HRP
}

// RegisterCode makes a contract code available for instantiation.
func (c *Chain) RegisterCode(code *Code) error {
	c.codesMu.Lock()
	defer c.codesMu.Unlock()

	if _, ok := c.codes[code.ID]; ok {
		return fmt.Errorf("%w: %d", ErrCodeExists, code.ID)
	}

	c.codes[code.ID] = code

	log.Debugf("Registered code %d (%v)", code.ID, code.Name)

	return nil
}

// Codes returns all registered codes.
func (c *Chain) Codes() []*Code {
	c.codesMu.RLock()
	defer c.codesMu.RUnlock()

	codes := make([]*Code, 0, len(c.codes))
	for _, code := range c.codes {
		codes = append(codes, code)
	}

	return codes
}

// code returns the registered code with the given id.
func (c *Chain) code(id uint64) (*Code, error) {
	c.codesMu.RLock()
	defer c.codesMu.RUnlock()

	code, ok := c.codes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCodeNotFound, id)
	}

	return code, nil
}

// Instantiate creates a new instance of the given code. Funds are moved from
// the sender to the new contract before its Instantiate runs.
func (c *Chain) Instantiate(ctx context.Context, block Block, sender string,
	codeID uint64, label string, msg []byte,
	funds []Coin) (*Result, error) {

	if sender == "" {
		return nil, fmt.Errorf("%w: missing sender", ErrInvalidMessage)
	}

	code, err := c.code(codeID)
	if err != nil {
		return nil, err
	}

	log.Tracef("Instantiate code %d from %v: %v", codeID, sender,
		spew.Sdump(string(msg)))

	var result *Result
	err = c.db.Update(ctx, func(tx kvdb.RwTx) error {
		result = nil

		seq, err := nextSequence(tx)
		if err != nil {
			return err
		}

		address, err := ContractAddress(c.cfg.Bech32HRP, codeID, seq)
		if err != nil {
			return err
		}

		height := uint64(0)
		if block.Height > 0 {
			height = uint64(block.Height)
		}

		err = putInstance(tx, &ContractInfo{
			Address:  address,
			CodeID:   codeID,
			Label:    label,
			Creator:  sender,
			Height:   height,
			Sequence: seq,
		})
		if err != nil {
			return err
		}

		events := []Event{{
			Type: EventTypeInstantiate,
			Attributes: []Attribute{
				{Key: AttributeKeyContract, Value: address},
				{Key: "code_id", Value: fmt.Sprint(codeID)},
			},
		}}

		result, err = c.call(
			ctx, tx, block, sender, address, funds, events,
			func(deps *Deps, env Env,
				info MessageInfo) (*Response, error) {

				return code.Contract.Instantiate(
					ctx, deps, env, info, msg,
				)
			},
		)

		return err
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Instantiated code %d (%v) at %v", codeID, code.Name,
		result.Contract)

	return result, nil
}

// Execute runs a command on an existing contract.
func (c *Chain) Execute(ctx context.Context, block Block, sender,
	contract string, msg []byte, funds []Coin) (*Result, error) {

	if sender == "" {
		return nil, fmt.Errorf("%w: missing sender", ErrInvalidMessage)
	}

	log.Tracef("Execute on %v from %v: %v", contract, sender,
		spew.Sdump(string(msg)))

	var result *Result
	err := c.db.Update(ctx, func(tx kvdb.RwTx) error {
		result = nil

		instance, err := fetchInstance(tx, contract)
		if err != nil {
			return err
		}

		code, err := c.code(instance.CodeID)
		if err != nil {
			return err
		}

		result, err = c.call(
			ctx, tx, block, sender, contract, funds, nil,
			func(deps *Deps, env Env,
				info MessageInfo) (*Response, error) {

				return code.Contract.Execute(
					ctx, deps, env, info, msg,
				)
			},
		)

		return err
	})
	if err != nil {
		log.Debugf("Execute on %v from %v failed: %v", contract,
			sender, err)

		return nil, err
	}

	return result, nil
}

// call moves the funds, runs the contract and dispatches its transfers,
// all inside tx.
func (c *Chain) call(ctx context.Context, tx kvdb.RwTx, block Block, sender,
	contract string, funds []Coin, events []Event,
	run func(*Deps, Env, MessageInfo) (*Response, error)) (*Result, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(funds) > 0 {
		if err := send(tx, sender, contract, funds); err != nil {
			return nil, err
		}

		events = append(events, transferEvent(sender, contract, funds))
	}

	deps := &Deps{
		tx:       tx,
		host:     c,
		block:    block,
		contract: contract,
	}
	env := Env{
		Block:    block,
		Contract: contract,
	}
	info := MessageInfo{
		Sender: sender,
		Funds:  funds,
	}

	resp, err := run(deps, env, info)
	if err != nil {
		return nil, err
	}

	transfers, err := c.dispatch(tx, contract, resp)
	if err != nil {
		return nil, err
	}

	events = append(events, wasmEvent(contract, resp))
	events = append(events, deps.events...)
	events = append(events, transfers...)

	return &Result{
		Contract: contract,
		Response: resp,
		Events:   events,
	}, nil
}

// dispatch executes the transfers of a response from the contract account.
func (c *Chain) dispatch(tx kvdb.RwTx, contract string,
	resp *Response) ([]Event, error) {

	if resp == nil {
		return nil, fmt.Errorf("contract %v returned no response",
			contract)
	}

	events := make([]Event, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		if msg.ToAddress == "" {
			return nil, fmt.Errorf("%w: transfer without "+
				"recipient", ErrInvalidMessage)
		}

		if err := send(tx, contract, msg.ToAddress, msg.Amount); err != nil {
			return nil, fmt.Errorf("transfer from %v: %w",
				contract, err)
		}

		events = append(
			events, transferEvent(contract, msg.ToAddress, msg.Amount),
		)
	}

	return events, nil
}

// Query runs a read-only query on a contract.
func (c *Chain) Query(ctx context.Context, block Block, contract string,
	msg []byte) ([]byte, error) {

	var answer []byte
	err := c.db.View(ctx, func(tx kvdb.RTx) error {
		answer = nil

		instance, err := fetchInstance(tx, contract)
		if err != nil {
			return err
		}

		code, err := c.code(instance.CodeID)
		if err != nil {
			return err
		}

		deps := &QueryDeps{
			tx:       tx,
			contract: contract,
		}
		env := Env{
			Block:    block,
			Contract: contract,
		}

		answer, err = code.Contract.Query(ctx, deps, env, msg)

		return err
	})
	if err != nil {
		return nil, err
	}

	return answer, nil
}

// Mint credits new coins to an account. It is used to fund genesis and
// devnet accounts.
func (c *Chain) Mint(ctx context.Context, to string, coins []Coin) error {
	return c.db.Update(ctx, func(tx kvdb.RwTx) error {
		return mint(tx, to, coins)
	})
}

// Send moves coins between two accounts.
func (c *Chain) Send(ctx context.Context, from, to string,
	coins []Coin) error {

	return c.db.Update(ctx, func(tx kvdb.RwTx) error {
		return send(tx, from, to, coins)
	})
}

// Balance returns the balance of an account in the given denomination.
func (c *Chain) Balance(ctx context.Context, addr,
	denom string) (uint64, error) {

	var balance uint64
	err := c.db.View(ctx, func(tx kvdb.RTx) error {
		bucket, err := tx.ReadBucket(bankBucketKey)
		if err != nil {
			return err
		}

		balance, err = getBalance(bucket, addr, denom)

		return err
	})

	return balance, err
}

// Balances returns all balances of an account.
func (c *Chain) Balances(ctx context.Context, addr string) ([]Coin, error) {
	var coins []Coin
	err := c.db.View(ctx, func(tx kvdb.RTx) error {
		var err error
		coins, err = allBalances(tx, addr)

		return err
	})

	return coins, err
}

// Contract returns the registry entry of a contract.
func (c *Chain) Contract(ctx context.Context,
	address string) (*ContractInfo, error) {

	var info *ContractInfo
	err := c.db.View(ctx, func(tx kvdb.RTx) error {
		var err error
		info, err = fetchInstance(tx, address)

		return err
	})

	return info, err
}

// Contracts returns all contract instances in address order.
func (c *Chain) Contracts(ctx context.Context) ([]*ContractInfo, error) {
	var infos []*ContractInfo
	err := c.db.View(ctx, func(tx kvdb.RTx) error {
		var err error
		infos, err = fetchInstances(tx)

		return err
	})

	return infos, err
}

// ContractVersion returns the version info a contract recorded.
func (c *Chain) ContractVersion(ctx context.Context,
	address string) (*ContractVersion, error) {

	var version *ContractVersion
	err := c.db.View(ctx, func(tx kvdb.RTx) error {
		var err error
		version, err = fetchContractVersion(tx, address)

		return err
	})

	return version, err
}

// LastBlock returns the height and app hash of the last committed block.
func (c *Chain) LastBlock(ctx context.Context) (int64, []byte, error) {
	var (
		height  int64
		appHash []byte
	)
	err := c.db.View(ctx, func(tx kvdb.RTx) error {
		bucket, err := tx.ReadBucket(chainMetaBucketKey)
		if err != nil {
			return err
		}

		value, err := bucket.Get(lastHeightKey)
		switch {
		case errors.Is(err, kvdb.ErrKeyNotFound):
			return nil

		case err != nil:
			return err
		}
		height = int64(byteOrder.Uint64(value))

		appHash, err = bucket.Get(lastAppHashKey)
		if errors.Is(err, kvdb.ErrKeyNotFound) {
			return nil
		}

		return err
	})
	if err != nil {
		return 0, nil, err
	}

	return height, appHash, nil
}

// CommitBlock records the height and app hash of a finished block.
func (c *Chain) CommitBlock(ctx context.Context, height int64,
	appHash []byte) error {

	return c.db.Update(ctx, func(tx kvdb.RwTx) error {
		bucket, err := tx.ReadWriteBucket(chainMetaBucketKey)
		if err != nil {
			return err
		}

		err = bucket.Put(lastHeightKey, itob(uint64(height)))
		if err != nil {
			return err
		}

		return bucket.Put(lastAppHashKey, appHash)
	})
}
