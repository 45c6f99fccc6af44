package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
)

const (
	workerRelevance = "relevance"
	workerEthics    = "ethics"
	workerKnowledge = "knowledge"
	workerWeb       = "web"
	workerSynthesis = "synthesis"
	workerBias      = "bias"
	workerRetriever = "retriever"
)

// recorder records the order and inputs of collaborator calls across all
// fake workers of a run.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	inputs map[string]map[string]string
}

func newRecorder() *recorder {
	return &recorder{inputs: make(map[string]map[string]string)}
}

func (r *recorder) record(name string, input map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	r.inputs[name] = input
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) Input(name string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputs[name]
}

func (r *recorder) Count(name string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

type replyFunc func(ctx context.Context, input map[string]string) (string, error)

func reply(text string) replyFunc {
	return func(context.Context, map[string]string) (string, error) { return text, nil }
}

func fail(err error) replyFunc {
	return func(context.Context, map[string]string) (string, error) { return "", err }
}

// blockUntilDone waits for the call context to end and returns its error.
func blockUntilDone(ctx context.Context, _ map[string]string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (r *recorder) worker(name string, fn replyFunc) ports.Worker {
	return ports.WorkerFunc(func(ctx context.Context, input map[string]string) (string, error) {
		r.record(name, input)
		return fn(ctx, input)
	})
}

type retrieverFunc func(ctx context.Context, query string) ([]domain.Passage, error)

func (f retrieverFunc) Search(ctx context.Context, query string) ([]domain.Passage, error) {
	return f(ctx, query)
}

func (r *recorder) retriever(passages []domain.Passage, err error) ports.Retriever {
	return retrieverFunc(func(_ context.Context, query string) ([]domain.Passage, error) {
		r.record(workerRetriever, map[string]string{domain.InputQuestion: query})
		return passages, err
	})
}

var testPassages = []domain.Passage{
	{Content: "Lift is the force that opposes weight.", Source: "aerodynamics.pdf", Trust: domain.TrustTrusted},
	{Content: "Lift comes from wing shape only.", Source: "forum.txt", Trust: domain.TrustUntrusted},
}

// happyWorkers returns workers that all succeed, with affirmative judges.
func happyWorkers(r *recorder) Workers {
	return Workers{
		RelevanceJudge:    r.worker(workerRelevance, reply(" True ")),
		EthicsJudge:       r.worker(workerEthics, reply("TRUE")),
		KnowledgeAnswerer: r.worker(workerKnowledge, reply("kb answer [source:aerodynamics.pdf]")),
		WebResearcher:     r.worker(workerWeb, reply("web answer")),
		Synthesizer:       r.worker(workerSynthesis, reply("# Lift\n\nsynthesized")),
		BiasReviewer:      r.worker(workerBias, reply("# Lift\n\nreviewed")),
		Retriever:         r.retriever(testPassages, nil),
	}
}

func newTestEngine(t *testing.T, w Workers, opts Options) *Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	e, err := NewEngine(w, opts)
	require.NoError(t, err)
	return e
}
