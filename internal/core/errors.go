package core

import "errors"

var (
	// ErrNoDefaultRoom means no default ROM hash is known yet; connections
	// idle until the catalog resolves one.
	ErrNoDefaultRoom = errors.New("no default room available")
	// ErrUnknownGame means a command named a catalog index that does not
	// resolve to any ROM.
	ErrUnknownGame = errors.New("unknown game selection")
)
