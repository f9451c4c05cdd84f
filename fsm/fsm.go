package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrEventRejected is the error returned when the state machine cannot
	// process an event in the state that it is in.
	ErrEventRejected = errors.New("event rejected")

	// ErrInvalidContextType is returned by actions that receive an event
	// context of an unexpected type.
	ErrInvalidContextType = errors.New("invalid context")
)

const (
	// EmptyState represents the default state of the system.
	EmptyState StateType = ""

	// NoOp represents a no-op event.
	NoOp EventType = "NoOp"

	// OnError can be used when an action returns a generic error.
	OnError EventType = "OnError"
)

// StateType represents an extensible state type in the state machine.
type StateType string

// EventType represents an extensible event type in the state machine.
type EventType string

// EventContext represents the context to be passed to the action
// implementation.
type EventContext interface{}

// Action represents the action to be executed in a given state.
type Action func(ctx context.Context, eventCtx EventContext) EventType

// Transitions represents a mapping of events and states.
type Transitions map[EventType]StateType

// State binds a state with an action and a set of events it can handle.
type State struct {
	// Action is the action to be executed in the state.
	Action Action

	// Transitions is a mapping of events and states.
	Transitions Transitions
}

// States represents a mapping of states and their implementations.
type States map[StateType]State

// Notification represents a notification sent to the state machine's
// observers.
type Notification struct {
	// PreviousState is the state the state machine was in before the event
	// was processed.
	PreviousState StateType

	// NextState is the state the state machine is in after the event was
	// processed.
	NextState StateType

	// Event is the event that was processed.
	Event EventType

	// LastActionError is the error returned by the last action, if any.
	LastActionError error
}

// Observer is an interface that can be implemented by types that want to
// observe the state machine.
type Observer interface {
	Notify(Notification)
}

// StateMachine runs actions synchronously in the goroutine that sends the
// event. Every call to SendEvent drives the machine until an action returns
// NoOp.
type StateMachine struct {
	// States is the state machine definition.
	States States

	// ActionEntryFunc is called before every action with the transition
	// that led to it.
	ActionEntryFunc func(Notification)

	// LastActionError is an error set by the last action executed.
	LastActionError error

	// mutex ensures that only 1 event is processed by the state machine at
	// any given time.
	mutex sync.Mutex

	previous StateType
	current  StateType

	observers     []Observer
	observerMutex sync.Mutex
}

// NewStateMachine creates a new state machine in the empty state.
func NewStateMachine(states States) *StateMachine {
	return NewStateMachineWithState(states, EmptyState)
}

// NewStateMachineWithState creates a new state machine that resumes from the
// given state, for example one that was loaded from disk.
func NewStateMachineWithState(states States,
	current StateType) *StateMachine {

	return &StateMachine{
		States:    states,
		current:   current,
		observers: make([]Observer, 0),
	}
}

// CurrentState returns the state the machine is in.
func (s *StateMachine) CurrentState() StateType {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.current
}

// Accepts reports whether the current state has a transition for the event.
func (s *StateMachine) Accepts(event EventType) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	state, ok := s.States[s.current]
	if !ok {
		return false
	}

	_, ok = state.Transitions[event]

	return ok
}

// nextState returns the state definition the event leads to, or an error if
// the event can't be handled in the current state.
func (s *StateMachine) nextState(event EventType) (StateType, State, error) {
	current, ok := s.States[s.current]
	if !ok {
		return "", State{}, NewErrConfigError(
			fmt.Sprintf("current state %q not found", s.current),
		)
	}

	next, ok := current.Transitions[event]
	if !ok {
		return "", State{}, ErrEventRejected
	}

	state, ok := s.States[next]
	if !ok {
		return "", State{}, NewErrConfigError(
			fmt.Sprintf("next state %q not found", next),
		)
	}

	if state.Action == nil {
		return "", State{}, NewErrConfigError(
			fmt.Sprintf("state %q has no action", next),
		)
	}

	return next, state, nil
}

// SendEvent sends an event to the state machine and runs the actions of the
// states it moves through. It returns ErrEventRejected if the current state
// has no transition for the event. Errors of actions don't fail SendEvent,
// they are available as LastActionError once it returns.
func (s *StateMachine) SendEvent(ctx context.Context, event EventType,
	eventCtx EventContext) error {

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.States == nil {
		return NewErrConfigError("state machine config is nil")
	}

	s.LastActionError = nil

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, state, err := s.nextState(event)
		if err != nil {
			return err
		}

		s.previous = s.current
		s.current = next

		notification := Notification{
			PreviousState:   s.previous,
			NextState:       s.current,
			Event:           event,
			LastActionError: s.LastActionError,
		}
		s.notify(notification)

		if s.ActionEntryFunc != nil {
			s.ActionEntryFunc(notification)
		}

		event = state.Action(ctx, eventCtx)
		if event == NoOp {
			return nil
		}
	}
}

// notify passes the notification to all registered observers.
func (s *StateMachine) notify(notification Notification) {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()

	for _, observer := range s.observers {
		observer.Notify(notification)
	}
}

// RegisterObserver registers an observer with the state machine.
func (s *StateMachine) RegisterObserver(observer Observer) {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()

	if observer != nil {
		s.observers = append(s.observers, observer)
	}
}

// RemoveObserver removes an observer from the state machine. It returns true
// if the observer was removed, false otherwise.
func (s *StateMachine) RemoveObserver(observer Observer) bool {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()

	for i, o := range s.observers {
		if o == observer {
			s.observers = append(
				s.observers[:i], s.observers[i+1:]...,
			)
			return true
		}
	}

	return false
}

// HandleError is a helper function that can be used by actions to handle
// errors.
func (s *StateMachine) HandleError(err error) EventType {
	log.Debugf("StateMachine action failed in state %v: %v", s.current,
		err)

	s.LastActionError = err

	return OnError
}

// NoOpAction is a no-op action that can be used by states that don't need to
// execute any action.
func NoOpAction(_ context.Context, _ EventContext) EventType {
	return NoOp
}

// ErrConfigError is an error returned when the state machine is misconfigured.
type ErrConfigError error

// NewErrConfigError creates a new ErrConfigError.
func NewErrConfigError(msg string) ErrConfigError {
	return (ErrConfigError)(fmt.Errorf("config error: %s", msg))
}
