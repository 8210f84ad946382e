package visit

import "fmt"

const (
	StatusPending        = "pending"
	StatusWithNurse      = "with-nurse"
	StatusReadyForDoctor = "ready-for-doctor"
	StatusWithDoctor     = "with-doctor"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
)

// transitions lists the statuses reachable from each non-terminal status.
// Pending may skip steps when the nurse or the whole triage is bypassed.
var transitions = map[string][]string{
	StatusPending:        {StatusWithNurse, StatusReadyForDoctor, StatusCompleted, StatusCancelled},
	StatusWithNurse:      {StatusReadyForDoctor, StatusCancelled},
	StatusReadyForDoctor: {StatusWithDoctor, StatusCompleted, StatusCancelled},
	StatusWithDoctor:     {StatusCompleted, StatusCancelled},
}

func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusWithNurse, StatusReadyForDoctor, StatusWithDoctor, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func IsTerminal(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports an action attempted in a status that does not allow it.
type TransitionError struct {
	Action string
	Status string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot %s. Visit is in %s status", e.Action, e.Status)
}
