package task

import "errors"

// ErrValidation marks malformed user input: a missing shortcut, an
// unparseable date, a non-positive period. Handlers surface it as reply
// text; nothing is mutated.
var ErrValidation = errors.New("invalid input")
