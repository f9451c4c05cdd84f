package abci

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/xswap/chain"
)

var (
	// txSignTag is the BIP-340 tag of transaction signature hashes.
	txSignTag = []byte("xswap/tx")

	// ErrInvalidSignature is returned when the envelope isn't signed by
	// the key of its sender.
	ErrInvalidSignature = errors.New("invalid signature")
)

// SenderAddress returns the account address of a public key.
func SenderAddress(hrp string, pubKey *btcec.PublicKey) (string, error) {
	return chain.AccountAddress(hrp, schnorr.SerializePubKey(pubKey))
}

// SignHash returns the hash the sender signs. It commits to the chain id and
// to every field of the envelope except the signature.
func (t *Tx) SignHash(chainID string) (*chainhash.Hash, error) {
	unsigned := *t
	unsigned.Signature = ""

	raw, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, err
	}

	return chainhash.TaggedHash(txSignTag, []byte(chainID), raw), nil
}

// Sign sets the sender and public key of the envelope to the ones of the key
// and signs it. The sequence must be set before.
func (t *Tx) Sign(chainID, hrp string, key *btcec.PrivateKey) error {
	sender, err := SenderAddress(hrp, key.PubKey())
	if err != nil {
		return err
	}

	t.Sender = sender
	t.PubKey = hex.EncodeToString(schnorr.SerializePubKey(key.PubKey()))

	hash, err := t.SignHash(chainID)
	if err != nil {
		return err
	}

	sig, err := schnorr.Sign(key, hash[:])
	if err != nil {
		return err
	}

	t.Signature = hex.EncodeToString(sig.Serialize())

	return nil
}

// Verify checks that the sender is the account of the public key and that
// the key signed the envelope for this chain.
func (t *Tx) Verify(chainID, hrp string) error {
	keyBytes, err := hex.DecodeString(t.PubKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrInvalidSignature, err)
	}

	pubKey, err := schnorr.ParsePubKey(keyBytes)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrInvalidSignature, err)
	}

	sender, err := SenderAddress(hrp, pubKey)
	if err != nil {
		return err
	}
	if sender != t.Sender {
		return fmt.Errorf("%w: key of %v can't sign for %v",
			ErrInvalidSignature, sender, t.Sender)
	}

	sigBytes, err := hex.DecodeString(t.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	hash, err := t.SignHash(chainID)
	if err != nil {
		return err
	}

	if !sig.Verify(hash[:], pubKey) {
		return fmt.Errorf("%w: signature doesn't match", ErrInvalidSignature)
	}

	return nil
}
