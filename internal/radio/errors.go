package radio

import "errors"

// ErrInvalidState is returned when a requested operation is illegal from
// the current state. The request has no side effects and the state is
// unchanged.
var ErrInvalidState = errors.New("INVALID_STATE")
