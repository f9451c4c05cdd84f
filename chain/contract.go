package chain

import (
	"context"

	"github.com/lightninglabs/xswap/kvdb"
)

// Contract is the code of a contract. Implementations keep no state of their
// own, everything lives in the storage handed in through Deps.
type Contract interface {
	// Instantiate initializes a new contract instance.
	Instantiate(ctx context.Context, deps *Deps, env Env,
		info MessageInfo, msg []byte) (*Response, error)

	// Execute runs a state changing command.
	Execute(ctx context.Context, deps *Deps, env Env, info MessageInfo,
		msg []byte) (*Response, error)

	// Query runs a read-only query and returns the JSON encoded answer.
	Query(ctx context.Context, deps *QueryDeps, env Env,
		msg []byte) ([]byte, error)
}

// Code is a registered contract code.
type Code struct {
	// ID is the code id instances refer to.
	ID uint64

	// Name is a human readable name of the code.
	Name string

	// Contract is the implementation.
	Contract Contract
}

// QueryDeps gives read-only access to the storage of a contract.
type QueryDeps struct {
	tx       kvdb.RTx
	contract string
}

// Storage returns the named store of the contract.
func (d *QueryDeps) Storage(name string) (kvdb.RBucket, error) {
	return d.tx.ReadBucket(storageBucket(d.contract, name))
}

// ContractVersion returns the name and version the contract recorded at
// instantiation.
func (d *QueryDeps) ContractVersion() (*ContractVersion, error) {
	return fetchContractVersion(d.tx, d.contract)
}

// Deps gives a contract read-write access to its own storage for the
// duration of a call, and lets it call other contracts.
type Deps struct {
	tx       kvdb.RwTx
	host     *Chain
	block    Block
	contract string

	// events collects the events of nested calls, in execution order.
	events []Event
}

// Storage returns the named store of the contract. Stores of different
// contracts never overlap.
func (d *Deps) Storage(name string) (kvdb.RwBucket, error) {
	return d.tx.ReadWriteBucket(storageBucket(d.contract, name))
}

// SetContractVersion records the name and version of the contract code.
func (d *Deps) SetContractVersion(name, version string) error {
	return putContractVersion(d.tx, d.contract, &ContractVersion{
		Contract: name,
		Version:  version,
	})
}

// Callee is a contract instance reached through a nested call. The callee
// runs inside the transaction of the caller, with the calling contract as
// sender and without funds.
type Callee struct {
	// Address is the address of the called contract.
	Address string

	// CodeID is the code of the called contract.
	CodeID uint64

	// Contract is the implementation of the called contract.
	Contract Contract

	// Deps is the storage of the called contract.
	Deps *Deps

	// Env is the environment of the called contract.
	Env Env

	// Info names the calling contract as sender.
	Info MessageInfo
}

// Call runs fn against the contract at address as a synchronous nested call.
// Transfers in the returned response are executed from the callee's account
// before Call returns. Any error fails the caller, and with it the whole
// transaction.
func (d *Deps) Call(ctx context.Context, address string,
	fn func(ctx context.Context, callee *Callee) (*Response,
		error)) (*Response, error) {

	instance, err := fetchInstance(d.tx, address)
	if err != nil {
		return nil, err
	}

	code, err := d.host.code(instance.CodeID)
	if err != nil {
		return nil, err
	}

	calleeDeps := &Deps{
		tx:       d.tx,
		host:     d.host,
		block:    d.block,
		contract: address,
	}
	callee := &Callee{
		Address:  address,
		CodeID:   instance.CodeID,
		Contract: code.Contract,
		Deps:     calleeDeps,
		Env: Env{
			Block:    d.block,
			Contract: address,
		},
		Info: MessageInfo{
			Sender: d.contract,
		},
	}

	log.Debugf("Nested call from %v into %v", d.contract, address)

	resp, err := fn(ctx, callee)
	if err != nil {
		return nil, err
	}

	transfers, err := d.host.dispatch(d.tx, address, resp)
	if err != nil {
		return nil, err
	}

	d.events = append(d.events, wasmEvent(address, resp))
	d.events = append(d.events, calleeDeps.events...)
	d.events = append(d.events, transfers...)

	return resp, nil
}

// storageBucket returns the bucket name of a named store of a contract.
func storageBucket(contract, name string) []byte {
	return []byte("contract/" + contract + "/" + name)
}
