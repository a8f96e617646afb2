package spin

import "errors"

// Domain errors shared across the numerical core. Each is reported at
// the granularity of a single run, grid point, or fit; batch drivers
// decide whether to skip, retry with a new seed, or abort.
var (
	// ErrConfiguration indicates invalid or mismatched input shape or
	// parameters. Fatal, never retried.
	ErrConfiguration = errors.New("spinchain: configuration contract violated")

	// ErrNonFinite indicates a NaN or Inf appeared in the state.
	ErrNonFinite = errors.New("spinchain: non-finite state (NaN or Inf)")

	// ErrStepBudget indicates the adaptive solver exhausted its step
	// budget before covering the requested span. The partial trajectory
	// is retained alongside the error.
	ErrStepBudget = errors.New("spinchain: integration step budget exhausted")

	// ErrNonConvergence indicates the relaxer ran out of iterations
	// before meeting its energy tolerance. The last state and energy
	// trace are retained alongside the error.
	ErrNonConvergence = errors.New("spinchain: relaxation did not converge")

	// ErrTrackingLost indicates the soliton core was undetectable at
	// some sample inside the fitting window.
	ErrTrackingLost = errors.New("spinchain: soliton core lost")

	// ErrInsufficientData indicates fewer than two distinct field
	// values were available for a mobility fit.
	ErrInsufficientData = errors.New("spinchain: not enough points for fit")

	// ErrCanceled indicates a run was aborted by its context.
	ErrCanceled = errors.New("spinchain: run canceled")
)
