package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/fsm"
)

// States.
var (
	// Creating validates a new escrow.
	Creating = fsm.StateType("Creating")

	// Active is the state of a funded escrow that can be claimed or
	// refunded.
	Active = fsm.StateType("Active")

	// Claiming checks a claim against the timelock, the hashlock and the
	// taker.
	Claiming = fsm.StateType("Claiming")

	// Claimed is the terminal state of an escrow paid out to the taker.
	Claimed = fsm.StateType("Claimed")

	// Refunding checks a refund against the timelock and the maker.
	Refunding = fsm.StateType("Refunding")

	// Refunded is the terminal state of an escrow paid back to the maker.
	Refunded = fsm.StateType("Refunded")
)

// Events.
var (
	// OnCreate is sent to create a new escrow.
	OnCreate = fsm.EventType("OnCreate")

	// OnCreated is sent once a new escrow passed validation.
	OnCreated = fsm.EventType("OnCreated")

	// OnClaim is sent when the taker claims the escrow.
	OnClaim = fsm.EventType("OnClaim")

	// OnClaimed is sent once a claim passed all checks.
	OnClaimed = fsm.EventType("OnClaimed")

	// OnRefund is sent when the maker asks for a refund.
	OnRefund = fsm.EventType("OnRefund")

	// OnRefunded is sent once a refund passed all checks.
	OnRefunded = fsm.EventType("OnRefunded")
)

// claimRequest is the event context of OnClaim.
type claimRequest struct {
	preimage string
}

// lifecycle drives a single escrow through its states. It lives for the
// duration of one contract call.
type lifecycle struct {
	*fsm.StateMachine

	escrow *Escrow
	now    uint64
	caller string
	funds  []chain.Coin

	// payout is the transfer the call has to emit, set by the claim and
	// refund actions.
	payout *chain.BankSend

	log *OrderLog
}

// Lifecycle returns the state graph of an escrow.
func Lifecycle() fsm.States {
	return (&lifecycle{}).states()
}

// newLifecycle creates a lifecycle for the escrow, resuming from the state
// its status flags describe. A nil escrow is one that doesn't exist yet.
func newLifecycle(e *Escrow, orderHash string, env chain.Env,
	info chain.MessageInfo) (*lifecycle, error) {

	l := &lifecycle{
		escrow: e,
		now:    env.Block.Seconds(),
		caller: info.Sender,
		funds:  info.Funds,
		log: &OrderLog{
			Logger:    log,
			OrderHash: orderHash,
		},
	}

	state := fsm.EmptyState
	if e != nil {
		var err error
		state, err = e.State()
		if err != nil {
			return nil, err
		}
	}

	l.StateMachine = fsm.NewStateMachineWithState(l.states(), state)
	l.ActionEntryFunc = func(n fsm.Notification) {
		l.log.Debugf("%v -> %v (%v)", n.PreviousState, n.NextState,
			n.Event)
	}

	return l, nil
}

// states returns the state graph of the lifecycle.
func (l *lifecycle) states() fsm.States {
	return fsm.States{
		fsm.EmptyState: fsm.State{
			Action: fsm.NoOpAction,
			Transitions: fsm.Transitions{
				OnCreate: Creating,
			},
		},
		Creating: fsm.State{
			Action: l.createAction,
			Transitions: fsm.Transitions{
				OnCreated:   Active,
				fsm.OnError: fsm.EmptyState,
			},
		},
		Active: fsm.State{
			Action: fsm.NoOpAction,
			Transitions: fsm.Transitions{
				OnClaim:  Claiming,
				OnRefund: Refunding,
			},
		},
		Claiming: fsm.State{
			Action: l.claimAction,
			Transitions: fsm.Transitions{
				OnClaimed:   Claimed,
				fsm.OnError: Active,
			},
		},
		Claimed: fsm.State{
			Action: fsm.NoOpAction,
		},
		Refunding: fsm.State{
			Action: l.refundAction,
			Transitions: fsm.Transitions{
				OnRefunded:  Refunded,
				fsm.OnError: Active,
			},
		},
		Refunded: fsm.State{
			Action: fsm.NoOpAction,
		},
	}
}

// createAction validates a new escrow. The call must attach exactly the
// escrowed coin, since all escrows of an instance share the contract
// balance.
func (l *lifecycle) createAction(_ context.Context,
	_ fsm.EventContext) fsm.EventType {

	switch {
	case l.escrow.Amount == 0:
		return l.HandleError(ErrInvalidAmount)

	case l.escrow.Timelock <= l.now:
		return l.HandleError(fmt.Errorf("%w: timelock %d is not after "+
			"block time %d", ErrInvalidTimelock, l.escrow.Timelock,
			l.now))

	case !fundsMatch(l.funds, l.escrow.Token, l.escrow.Amount):
		return l.HandleError(fmt.Errorf("%w: got %v, expected %d%v",
			ErrInvalidFunds, chain.CoinsString(l.funds),
			l.escrow.Amount, l.escrow.Token))
	}

	l.escrow.setState(Active)

	return OnCreated
}

// fundsMatch reports whether funds is exactly one coin of the given
// denomination and amount.
func fundsMatch(funds []chain.Coin, denom string, amount uint64) bool {
	return len(funds) == 1 && funds[0].Denom == denom &&
		funds[0].Amount == amount
}

// claimAction checks a claim. The checks run in a fixed order: expiry,
// preimage, then the caller.
func (l *lifecycle) claimAction(_ context.Context,
	eventCtx fsm.EventContext) fsm.EventType {

	req, ok := eventCtx.(*claimRequest)
	if !ok {
		return l.HandleError(fsm.ErrInvalidContextType)
	}

	switch {
	case l.now >= l.escrow.Timelock:
		return l.HandleError(fmt.Errorf("%w: block time %d, timelock "+
			"%d", ErrTimelockExpired, l.now, l.escrow.Timelock))

	case !l.escrow.MatchesPreimage(req.preimage):
		return l.HandleError(ErrInvalidPreimage)

	case l.caller != l.escrow.Taker:
		return l.HandleError(fmt.Errorf("%w: %v is not the taker",
			ErrUnauthorized, l.caller))
	}

	l.escrow.setState(Claimed)
	l.payout = &chain.BankSend{
		ToAddress: l.escrow.Taker,
		Amount: []chain.Coin{{
			Denom:  l.escrow.Token,
			Amount: l.escrow.Amount,
		}},
	}

	return OnClaimed
}

// refundAction checks a refund: the timelock must be reached and the caller
// must be the maker.
func (l *lifecycle) refundAction(_ context.Context,
	_ fsm.EventContext) fsm.EventType {

	switch {
	case l.now < l.escrow.Timelock:
		return l.HandleError(fmt.Errorf("%w: block time %d, timelock "+
			"%d", ErrTimelockNotExpired, l.now, l.escrow.Timelock))

	case l.caller != l.escrow.Maker:
		return l.HandleError(fmt.Errorf("%w: %v is not the maker",
			ErrUnauthorized, l.caller))
	}

	l.escrow.setState(Refunded)
	l.payout = &chain.BankSend{
		ToAddress: l.escrow.Maker,
		Amount: []chain.Coin{{
			Denom:  l.escrow.Token,
			Amount: l.escrow.Amount,
		}},
	}

	return OnRefunded
}

// send sends the event and maps the outcome to an escrow error. rejected is
// returned if the current state doesn't accept the event.
func (l *lifecycle) send(ctx context.Context, event fsm.EventType,
	eventCtx fsm.EventContext, rejected error) error {

	err := l.SendEvent(ctx, event, eventCtx)
	switch {
	case errors.Is(err, fsm.ErrEventRejected):
		return rejected

	case err != nil:
		return err

	case l.LastActionError != nil:
		return l.LastActionError
	}

	return nil
}
