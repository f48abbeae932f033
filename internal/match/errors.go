package match

import "errors"

// ErrNoMatchFound is returned when probing completes without a hypothesis
// that survives verification. It is a terminal outcome for the pair of
// sets, distinct from configuration or input errors.
var ErrNoMatchFound = errors.New("no match found")
