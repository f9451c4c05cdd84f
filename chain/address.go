package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// DefaultBech32HRP is the human readable part of contract addresses if none
// is configured.
const DefaultBech32HRP = "xswap"

// accountAddressLen is the payload length of account addresses. It differs
// from the sha256 payload of contract addresses, so the two never collide.
const accountAddressLen = 20

// AccountAddress derives the address of the account controlled by the given
// serialized public key: the bech32 encoding of the first 20 bytes of
// sha256(pubkey).
func AccountAddress(hrp string, pubKey []byte) (string, error) {
	if len(pubKey) == 0 {
		return "", fmt.Errorf("missing public key")
	}

	hash := sha256.Sum256(pubKey)

	conv, err := bech32.ConvertBits(hash[:accountAddressLen], 8, 5, true)
	if err != nil {
		return "", err
	}

	return bech32.Encode(hrp, conv)
}

// ContractAddress derives the address of the seq-th contract instance of the
// given code. The address is the bech32 encoding of
// sha256(code_id || seq).
func ContractAddress(hrp string, codeID, seq uint64) (string, error) {
	var preimage [16]byte
	binary.BigEndian.PutUint64(preimage[:8], codeID)
	binary.BigEndian.PutUint64(preimage[8:], seq)

	hash := sha256.Sum256(preimage[:])

	conv, err := bech32.ConvertBits(hash[:], 8, 5, true)
	if err != nil {
		return "", err
	}

	return bech32.Encode(hrp, conv)
}

// ParseContractAddress decodes a contract address and checks its human
// readable part.
func ParseContractAddress(hrp, addr string) ([]byte, error) {
	gotHRP, data, err := bech32.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid contract address %v: %w", addr,
			err)
	}

	if gotHRP != hrp {
		return nil, fmt.Errorf("invalid contract address %v: expected "+
			"prefix %v, got %v", addr, hrp, gotHRP)
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("invalid contract address %v: %w", addr,
			err)
	}

	if len(payload) != sha256.Size {
		return nil, fmt.Errorf("invalid contract address %v: payload "+
			"length %d", addr, len(payload))
	}

	return payload, nil
}
