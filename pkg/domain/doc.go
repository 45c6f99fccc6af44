// Package domain holds the types shared by the orchestrator, its adapters and
// its API surfaces.
//
// The central type is PipelineState, the record threaded through every stage
// of one run. Stages never mutate it directly; they return a StageResult whose
// StateDelta is folded in by the flow engine.
package domain
