// Package orchestrator implements the research pipeline that turns an
// aeronautics question into a reviewed document.
//
// A run walks six stages: two gates (domain relevance and ethics) followed
// by knowledge-base answering, web research, synthesis and bias review.
// Stages never choose their successor. Each returns a signal and a state
// delta, and the engine looks the signal up in the transition table
// (router.go) to decide where the run goes next.
//
// The manager owns the run lifecycle on top of the engine:
//   - Validating questions at intake
//   - Submitting runs to the worker pool or running them synchronously
//   - Publishing progress events to the event bus
//   - Persisting run records via state storage
//   - Cancelling runs and shutting down
package orchestrator
