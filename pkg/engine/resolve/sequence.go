package resolve

import (
	"github.com/jensneuse/abstractlogger"
)

// SequenceState tracks the progress of one Sequence step.
//
//	Pending -> FirstDispatched -> KeysExtracted -> SecondDispatched -> Merged
//
// Longer sequences loop SecondDispatched -> KeysExtracted for every further operation.
// Failed is reachable from every non terminal state after Pending.
type SequenceState int

const (
	SequenceStatePending SequenceState = iota
	SequenceStateFirstDispatched
	SequenceStateKeysExtracted
	SequenceStateSecondDispatched
	SequenceStateMerged
	SequenceStateFailed
)

func (s SequenceState) String() string {
	switch s {
	case SequenceStatePending:
		return "Pending"
	case SequenceStateFirstDispatched:
		return "FirstDispatched"
	case SequenceStateKeysExtracted:
		return "KeysExtracted"
	case SequenceStateSecondDispatched:
		return "SecondDispatched"
	case SequenceStateMerged:
		return "Merged"
	case SequenceStateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s SequenceState) CanTransition(to SequenceState) bool {
	switch s {
	case SequenceStatePending:
		return to == SequenceStateFirstDispatched
	case SequenceStateFirstDispatched:
		return to == SequenceStateKeysExtracted || to == SequenceStateFailed
	case SequenceStateKeysExtracted:
		return to == SequenceStateSecondDispatched || to == SequenceStateFailed
	case SequenceStateSecondDispatched:
		return to == SequenceStateKeysExtracted || to == SequenceStateMerged || to == SequenceStateFailed
	default:
		return false
	}
}

func (s SequenceState) IsTerminal() bool {
	return s == SequenceStateMerged || s == SequenceStateFailed
}

type sequenceRun struct {
	state     SequenceState
	log       abstractlogger.Logger
	requestID string
	serviceID string
}

func (r *sequenceRun) transition(to SequenceState) {
	if !r.state.CanTransition(to) {
		r.log.Error("resolve.sequence: invalid state transition",
			abstractlogger.String("requestID", r.requestID),
			abstractlogger.String("from", r.state.String()),
			abstractlogger.String("to", to.String()),
		)
	}
	r.log.Debug("resolve.sequence: state transition",
		abstractlogger.String("requestID", r.requestID),
		abstractlogger.String("service", r.serviceID),
		abstractlogger.String("from", r.state.String()),
		abstractlogger.String("to", to.String()),
	)
	r.state = to
}
