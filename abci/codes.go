package abci

import (
	"errors"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/resolver"
)

// Result codes of transactions and queries.
const (
	// CodeOK is returned for successful transactions.
	CodeOK uint32 = iota

	// CodeInvalidTx is returned for transactions that can't be decoded.
	CodeInvalidTx

	// CodeExecFailed is returned for transactions that failed for any
	// other reason.
	CodeExecFailed

	// CodeUnauthorized is returned when the sender isn't allowed to run
	// the command.
	CodeUnauthorized

	// CodeNotFound is returned for unknown contracts, escrows and orders.
	CodeNotFound

	// CodeInsufficientFunds is returned when a transfer isn't covered.
	CodeInsufficientFunds

	// CodeRejected is returned when a command isn't valid in the current
	// state, for example a claim after the timelock.
	CodeRejected

	// CodeInvalidSequence is returned for transactions that don't carry
	// the next sequence of their sender.
	CodeInvalidSequence
)

// Codespace is the codespace of all results.
const Codespace = "xswap"

// errorCode maps an error to a result code.
func errorCode(err error) uint32 {
	is := func(targets ...error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}

		return false
	}

	switch {
	case err == nil:
		return CodeOK

	case is(chain.ErrInvalidMessage):
		return CodeInvalidTx

	case is(chain.ErrInvalidSequence):
		return CodeInvalidSequence

	case is(ErrInvalidSignature, escrow.ErrUnauthorized,
		resolver.ErrUnauthorized):

		return CodeUnauthorized

	case is(chain.ErrContractNotFound, chain.ErrCodeNotFound,
		escrow.ErrEscrowNotFound, resolver.ErrOrderNotFound):

		return CodeNotFound

	case is(chain.ErrInsufficientFunds):
		return CodeInsufficientFunds

	case is(escrow.ErrEscrowNotActive, escrow.ErrTimelockExpired,
		escrow.ErrTimelockNotExpired, escrow.ErrInvalidPreimage,
		escrow.ErrEscrowAlreadyExists, resolver.ErrOrderAlreadyExists):

		return CodeRejected

	default:
		return CodeExecFailed
	}
}
