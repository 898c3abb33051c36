package interview

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/looplab/fsm"
)

// NewMachine builds the lifecycle machine of one admitted interview.
func NewMachine(userID int64) *fsm.FSM {
	events := fsm.Events{
		{Name: EventAsk, Src: []string{StateAdmitted, StateAskingQuestion}, Dst: StateAskingQuestion},
		{Name: EventCancel, Src: []string{StateAskingQuestion}, Dst: StateCancelled},
		{Name: EventTimeout, Src: []string{StateAskingQuestion}, Dst: StateTimedOut},
		{Name: EventComplete, Src: []string{StateAdmitted, StateAskingQuestion}, Dst: StateCompleted},
		{Name: EventFail, Src: []string{StateAdmitted, StateAskingQuestion}, Dst: StateFailed},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			log.Printf("[interview] User %d: %s -> %s (event %s)", userID, e.Src, e.Dst, e.Event)
		},
	}

	return fsm.NewFSM(StateAdmitted, events, callbacks)
}

// IsTerminal reports whether state ends an interview.
func IsTerminal(state string) bool {
	switch state {
	case StateCancelled, StateTimedOut, StateCompleted, StateFailed, StateRejected:
		return true
	}
	return false
}

// fire triggers event, treating asking_question -> asking_question as a valid step.
func fire(ctx context.Context, m *fsm.FSM, event string) error {
	err := m.Event(ctx, event)
	if err != nil && !isNoTransitionError(err) {
		return fmt.Errorf("interview: event %s from %s: %w", event, m.Current(), err)
	}
	return nil
}

func isNoTransitionError(err error) bool {
	if err == nil {
		return false
	}
	var noTransitionError fsm.NoTransitionError
	return errors.As(err, &noTransitionError)
}
