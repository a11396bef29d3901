// Package model provides the shared estimator plumbing: the explicit
// unfit/fitted state every stateful component carries.
package model

// EstimatorState represents the lifecycle state of an estimator.
type EstimatorState int

const (
	// NotFitted means the estimator carries no fitted parameters; only Fit
	// (or metadata injection) is valid.
	NotFitted EstimatorState = iota
	// Fitted means fitted parameters are present and immutable; Transform
	// and ReverseTransform are valid.
	Fitted
)

// BaseEstimator is embedded by every stateful estimator. It makes the
// unfit/fitted distinction an explicit value so calling an operation in the
// wrong state is an immediate, typed runtime error instead of silent misuse.
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted reports whether the estimator has been fitted.
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted marks the estimator as fitted.
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// State returns the current lifecycle state.
func (e *BaseEstimator) State() EstimatorState {
	return e.state
}
