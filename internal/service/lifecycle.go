package service

import "fmt"

// TransitionTable maps a status to the set of statuses it may move to.
// Statuses absent from the table are terminal.
type TransitionTable map[string][]string

// Can reports whether the edge from current to next is in the table.
func (t TransitionTable) Can(current, next string) bool {
	for _, s := range t[current] {
		if s == next {
			return true
		}
	}
	return false
}

// Validate returns ErrInvalidTransition, annotated with the offending edge,
// when the move is not allowed.
func (t TransitionTable) Validate(current, next string) error {
	if !t.Can(current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}
	return nil
}
