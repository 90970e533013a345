package models

import "fmt"

// InvalidTransitionError is returned whenever a caller attempts a state
// change the adjacency table forbids. It is rejected before any side
// effect and must never be retried.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s → %s (%s %s)", e.Entity, e.From, e.To, e.Entity, e.ID)
}
