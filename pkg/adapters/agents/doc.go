// Package agents implements the pipeline workers on top of an LLM client.
//
// Every agent renders its prompt from the input map with text/template,
// sends one completion request and returns the text of the answer. The
// judges take their system and user prompts verbatim from the input; the
// other agents own their prompts.
//
// Errors are reported as *ports.WorkerError, so the orchestrator can tell
// retryable failures (timeout, transport) from the rest. An empty answer is
// a malformed response.
package agents
