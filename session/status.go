package session

import "github.com/rustyeddy/tradesim/sim"

type Status string

const (
	StatusCreated  Status = "CREATED"
	StatusRunning  Status = "RUNNING"
	StatusPaused   Status = "PAUSED"
	StatusStopped  Status = "STOPPED"
	StatusArchived Status = "ARCHIVED"
)

var transitions = map[Status][]Status{
	StatusCreated: {StatusRunning},
	StatusRunning: {StatusPaused, StatusStopped},
	StatusPaused:  {StatusRunning, StatusStopped},
	StatusStopped: {StatusArchived},
}

// CanTransition reports whether to directly follows s.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Live sessions still own a clock and accept funding.
func (s Status) Live() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusPaused:
		return true
	default:
		return false
	}
}

func checkTransition(from, to Status) error {
	if from.CanTransition(to) {
		return nil
	}
	return sim.Reject(sim.ReasonInvalidTransition, "%s -> %s", from, to)
}
