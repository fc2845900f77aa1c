package core

import "errors"

var (
	// ErrInvalidConfig indicates a configuration that cannot produce a world:
	// non-positive dimensions, out-of-range probabilities, unknown names or an
	// infeasible household layout. It is always returned before the first tick.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvariantViolation indicates a bug in the simulation core, such as a
	// tally that does not sum to the population or a backward compartment
	// transition. The run stops and the error is not retried.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotRunning is returned by Step once the simulation has halted.
	ErrNotRunning = errors.New("simulation is not running")
)
