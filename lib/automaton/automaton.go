// Package automaton drives a state variable with a table of transitions
// keyed by an input, such as the kind of a received message.
package automaton

import "errors"

// Errors in a transition table. Compile panics with them.
var (
	ErrMissingAt     = errors.New("transition has no triggering state")
	ErrMissingDo     = errors.New("transition has no handler")
	ErrAmbiguous     = errors.New("ambiguous definition, cannot determine correct transition path")
	ErrIllegalState  = errors.New("mutating to this state is not allowed here")
	ErrMultipleSet   = errors.New("mutating the state more than once is illegal")
	ErrSetWithError  = errors.New("it is illegal to mutate the state when an error occurred")
	ErrOkWithoutSet  = errors.New("specified Ok but did not mutate state in Do")
	ErrNotTriggering = errors.New("state is not a state which could have triggered the transition")
)

// Errors returned by Transition for inputs the table does not cover.
var (
	ErrBadKey   = errors.New("transition key not defined in automaton")
	ErrBadState = errors.New("transition not defined for the current state")
)

// Handler performs a transition. It may change the state through handle.
type Handler[S comparable] func(handle *Handle[S], in any) error

// Transition is triggered in any of the states At and runs Do.
// If Ok is set, Do must move the state to one of the states in Ok,
// unless it fails. Without Ok, Do may not change the state.
type Transition[S comparable] struct {
	At []S
	Ok []S
	Do Handler[S]
}

// Transitions maps an input key to the transitions it may trigger.
type Transitions[S, K comparable] map[K][]Transition[S]

// Automaton is a compiled transition table bound to a state variable.
type Automaton[S, K comparable] struct {
	state *S
	table map[K]map[S]*Transition[S]
}

// Compile checks transitions and binds them to state.
// It panics if the table is malformed.
func Compile[S, K comparable](state *S, transitions Transitions[S, K]) *Automaton[S, K] {
	table := make(map[K]map[S]*Transition[S], len(transitions))
	for key, list := range transitions {
		handlers := make(map[S]*Transition[S])
		for i := range list {
			transition := &list[i]
			if len(transition.At) == 0 {
				panic(ErrMissingAt)
			}
			if transition.Do == nil {
				panic(ErrMissingDo)
			}
			for _, at := range transition.At {
				if _, has := handlers[at]; has {
					panic(ErrAmbiguous)
				}
				handlers[at] = transition
			}
		}
		table[key] = handlers
	}
	return &Automaton[S, K]{state: state, table: table}
}

// State returns the current state.
func (a *Automaton[S, K]) State() S {
	return *a.state
}

// Transition runs the transition for key in the current state with input in.
func (a *Automaton[S, K]) Transition(key K, in any) error {
	handlers, ok := a.table[key]
	if !ok {
		return ErrBadKey
	}
	transition, ok := handlers[*a.state]
	if !ok {
		return ErrBadState
	}
	handle := &Handle[S]{state: a.state, at: transition.At, ok: transition.Ok}
	err := transition.Do(handle, in)
	if err != nil && handle.mutated {
		panic(ErrSetWithError)
	}
	if err == nil && transition.Ok != nil && !handle.mutated {
		panic(ErrOkWithoutSet)
	}
	return err
}

// Handle is passed to a Handler for changing the state.
// Changing the state more than once is an error and will trigger a panic.
type Handle[S comparable] struct {
	state   *S
	at      []S
	ok      []S
	mutated bool
}

// Set sets the new state, which must be one of the Ok states of the transition.
func (h *Handle[S]) Set(state S) {
	if !contains(h.ok, state) {
		panic(ErrIllegalState)
	}
	if h.mutated {
		panic(ErrMultipleSet)
	}
	h.mutated = true
	*h.state = state
}

// Is checks the state that triggered the transition.
// The checked state must be one of the At states and the state may not be mutated yet.
func (h *Handle[S]) Is(state S) bool {
	if h.mutated {
		panic(ErrMultipleSet)
	}
	if !contains(h.at, state) {
		panic(ErrNotTriggering)
	}
	return *h.state == state
}

func contains[S comparable](states []S, state S) bool {
	for _, other := range states {
		if other == state {
			return true
		}
	}
	return false
}
