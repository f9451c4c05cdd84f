package chain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/lightninglabs/xswap/kvdb"
	"github.com/lightningnetwork/lnd/tlv"
)

var (
	// contractsBucketKey is the bucket of the contract registry, keyed by
	// contract address.
	contractsBucketKey = []byte("contracts")

	// versionsBucketKey holds the name and version every contract
	// recorded at instantiation, keyed by contract address.
	versionsBucketKey = []byte("contract_versions")

	// chainMetaBucketKey holds host wide values.
	chainMetaBucketKey = []byte("chain_meta")

	// sequenceKey is the key of the next contract instance sequence.
	sequenceKey = []byte("instance_seq")

	// lastHeightKey is the key of the height of the last committed block.
	lastHeightKey = []byte("last_height")

	// lastAppHashKey is the key of the app hash of the last committed
	// block.
	lastAppHashKey = []byte("last_app_hash")

	// ErrContractNotFound is returned when no contract exists at an
	// address.
	ErrContractNotFound = errors.New("contract not found")

	// ErrContractVersionNotFound is returned when a contract never
	// recorded its version.
	ErrContractVersionNotFound = errors.New("contract version not found")
)

const (
	typeInstanceCodeID tlv.Type = 0
	typeInstanceLabel  tlv.Type = 1
	typeInstanceAdmin  tlv.Type = 2
	typeInstanceHeight tlv.Type = 3
	typeInstanceSeq    tlv.Type = 4

	typeVersionContract tlv.Type = 0
	typeVersionVersion  tlv.Type = 1
)

// ContractInfo is the registry entry of a contract instance.
type ContractInfo struct {
	// Address is the address of the instance.
	Address string `json:"address"`

	// CodeID is the code the instance runs.
	CodeID uint64 `json:"code_id"`

	// Label is a human readable label given at instantiation.
	Label string `json:"label"`

	// Creator is the address that instantiated the contract.
	Creator string `json:"creator"`

	// Height is the block height of the instantiation.
	Height uint64 `json:"created_height"`

	// Sequence is the instance sequence number the address was derived
	// from.
	Sequence uint64 `json:"sequence"`
}

// ContractVersion is the name and version a contract records for itself.
type ContractVersion struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

// serializeContractInfo encodes a registry entry as a TLV stream.
func serializeContractInfo(info *ContractInfo) ([]byte, error) {
	label := []byte(info.Label)
	creator := []byte(info.Creator)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeInstanceCodeID, &info.CodeID),
		tlv.MakePrimitiveRecord(typeInstanceLabel, &label),
		tlv.MakePrimitiveRecord(typeInstanceAdmin, &creator),
		tlv.MakePrimitiveRecord(typeInstanceHeight, &info.Height),
		tlv.MakePrimitiveRecord(typeInstanceSeq, &info.Sequence),
	)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// deserializeContractInfo decodes a registry entry.
func deserializeContractInfo(address string,
	value []byte) (*ContractInfo, error) {

	info := &ContractInfo{Address: address}

	var label, creator []byte
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeInstanceCodeID, &info.CodeID),
		tlv.MakePrimitiveRecord(typeInstanceLabel, &label),
		tlv.MakePrimitiveRecord(typeInstanceAdmin, &creator),
		tlv.MakePrimitiveRecord(typeInstanceHeight, &info.Height),
		tlv.MakePrimitiveRecord(typeInstanceSeq, &info.Sequence),
	)
	if err != nil {
		return nil, err
	}

	if err := stream.Decode(bytes.NewReader(value)); err != nil {
		return nil, err
	}

	info.Label = string(label)
	info.Creator = string(creator)

	return info, nil
}

// putInstance stores a registry entry.
func putInstance(tx kvdb.RwTx, info *ContractInfo) error {
	bucket, err := tx.ReadWriteBucket(contractsBucketKey)
	if err != nil {
		return err
	}

	value, err := serializeContractInfo(info)
	if err != nil {
		return err
	}

	return bucket.Put([]byte(info.Address), value)
}

// fetchInstance loads a registry entry.
func fetchInstance(tx kvdb.RTx, address string) (*ContractInfo, error) {
	bucket, err := tx.ReadBucket(contractsBucketKey)
	if err != nil {
		return nil, err
	}

	value, err := bucket.Get([]byte(address))
	switch {
	case errors.Is(err, kvdb.ErrKeyNotFound):
		return nil, fmt.Errorf("%w: %v", ErrContractNotFound, address)

	case err != nil:
		return nil, err
	}

	return deserializeContractInfo(address, value)
}

// fetchInstances loads all registry entries in address order.
func fetchInstances(tx kvdb.RTx) ([]*ContractInfo, error) {
	bucket, err := tx.ReadBucket(contractsBucketKey)
	if err != nil {
		return nil, err
	}

	var infos []*ContractInfo
	err = bucket.ForEachAfter(nil, func(k, v []byte) error {
		info, err := deserializeContractInfo(string(k), v)
		if err != nil {
			return err
		}

		infos = append(infos, info)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return infos, nil
}

// putContractVersion stores the version info of a contract.
func putContractVersion(tx kvdb.RwTx, address string,
	version *ContractVersion) error {

	bucket, err := tx.ReadWriteBucket(versionsBucketKey)
	if err != nil {
		return err
	}

	contract := []byte(version.Contract)
	ver := []byte(version.Version)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeVersionContract, &contract),
		tlv.MakePrimitiveRecord(typeVersionVersion, &ver),
	)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return err
	}

	return bucket.Put([]byte(address), b.Bytes())
}

// fetchContractVersion loads the version info of a contract.
func fetchContractVersion(tx kvdb.RTx,
	address string) (*ContractVersion, error) {

	bucket, err := tx.ReadBucket(versionsBucketKey)
	if err != nil {
		return nil, err
	}

	value, err := bucket.Get([]byte(address))
	switch {
	case errors.Is(err, kvdb.ErrKeyNotFound):
		return nil, fmt.Errorf("%w: %v", ErrContractVersionNotFound,
			address)

	case err != nil:
		return nil, err
	}

	var contract, ver []byte
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeVersionContract, &contract),
		tlv.MakePrimitiveRecord(typeVersionVersion, &ver),
	)
	if err != nil {
		return nil, err
	}

	if err := stream.Decode(bytes.NewReader(value)); err != nil {
		return nil, err
	}

	return &ContractVersion{
		Contract: string(contract),
		Version:  string(ver),
	}, nil
}

// nextSequence returns the next instance sequence and increments the
// counter.
func nextSequence(tx kvdb.RwTx) (uint64, error) {
	bucket, err := tx.ReadWriteBucket(chainMetaBucketKey)
	if err != nil {
		return 0, err
	}

	var seq uint64
	value, err := bucket.Get(sequenceKey)
	switch {
	case errors.Is(err, kvdb.ErrKeyNotFound):
		seq = 1

	case err != nil:
		return 0, err

	default:
		seq = byteOrder.Uint64(value)
	}

	if err := bucket.Put(sequenceKey, itob(seq+1)); err != nil {
		return 0, err
	}

	return seq, nil
}
