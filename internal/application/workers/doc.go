// Package workers implements the bounded pool that executes submitted runs.
//
// Runs are queued on a fixed-capacity channel and picked up by a fixed
// number of goroutines. Submission never blocks: a full queue is reported
// as ErrQueueFull so the API can push back on callers.
//
// The health monitor tracks worker status and queue depth and records metrics.
package workers
