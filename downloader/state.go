package downloader

// TransferState is the lifecycle stage of one MultiDownloader run, in the
// same int-backed-iota-plus-String idiom as the engine's other enums.
type TransferState int

const (
	StatePlanned TransferState = iota
	StateProbing
	StateSplitting
	StateRunning
	StateRedistributing
	StateFallingBack
	StateSingleRunning
	StateAssembling
	StateVerifying
	StateCompleted
	StateFailed
)

func (s TransferState) String() string {
	switch s {
	case StatePlanned:
		return "planned"
	case StateProbing:
		return "probing"
	case StateSplitting:
		return "splitting"
	case StateRunning:
		return "running"
	case StateRedistributing:
		return "redistributing"
	case StateFallingBack:
		return "falling_back"
	case StateSingleRunning:
		return "single_running"
	case StateAssembling:
		return "assembling"
	case StateVerifying:
		return "verifying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// transferStateMachine is a small transition-validating setter; invalid
// transitions are a programmer error, not a user-facing one, and panic
// rather than silently corrupt state.
type transferStateMachine struct {
	current TransferState
}

var validTransitions = map[TransferState][]TransferState{
	StatePlanned:        {StateProbing, StateFailed},
	StateProbing:        {StateSplitting, StateSingleRunning, StateFailed},
	StateSplitting:      {StateRunning, StateSingleRunning, StateFailed},
	StateRunning:        {StateRedistributing, StateFallingBack, StateAssembling, StateFailed},
	StateRedistributing: {StateRunning, StateFailed},
	StateFallingBack:    {StateSingleRunning, StateFailed},
	StateSingleRunning:  {StateVerifying, StateFailed},
	StateAssembling:     {StateVerifying, StateFailed},
	StateVerifying:      {StateCompleted, StateFailed},
	StateCompleted:      {},
	StateFailed:         {},
}

func newTransferStateMachine() *transferStateMachine {
	return &transferStateMachine{current: StatePlanned}
}

func (m *transferStateMachine) transition(to TransferState) {
	for _, allowed := range validTransitions[m.current] {
		if allowed == to {
			m.current = to
			return
		}
	}
	panic("invalid transfer state transition: " + m.current.String() + " -> " + to.String())
}
