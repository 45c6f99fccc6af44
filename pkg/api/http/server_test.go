package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/internal/application/orchestrator"
	"github.com/aescanero/aerodoc/internal/application/workers"
	eventsmem "github.com/aescanero/aerodoc/pkg/adapters/events/memory"
	storagemem "github.com/aescanero/aerodoc/pkg/adapters/storage/memory"
	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
)

func reply(text string) ports.Worker {
	return ports.WorkerFunc(func(context.Context, map[string]string) (string, error) {
		return text, nil
	})
}

// relevanceJudge accepts every question that mentions an aircraft.
var relevanceJudge = ports.WorkerFunc(func(_ context.Context, in map[string]string) (string, error) {
	if strings.Contains(strings.ToLower(in[domain.InputQuestion]), "aircraft") {
		return "True", nil
	}
	return "False", nil
})

type staticRetriever []domain.Passage

func (r staticRetriever) Search(context.Context, string) ([]domain.Passage, error) {
	return r, nil
}

type staticHealth struct{ status workers.HealthStatus }

func (h staticHealth) GetStatus() *workers.HealthStatus {
	s := h.status
	return &s
}

type testServer struct {
	server  *Server
	manager *orchestrator.Manager
}

func newTestServer(t *testing.T, synthesizer ports.Worker, health HealthChecker) *testServer {
	t.Helper()

	engine, err := orchestrator.NewEngine(orchestrator.Workers{
		RelevanceJudge:    relevanceJudge,
		EthicsJudge:       reply("True"),
		KnowledgeAnswerer: reply("kb answer [source:wing.pdf]"),
		WebResearcher:     reply("web answer"),
		Synthesizer:       synthesizer,
		BiasReviewer:      reply("# Wings\n\nreviewed"),
		Retriever: staticRetriever{
			{Content: "Wings generate lift.", Source: "wing.pdf", Trust: domain.TrustTrusted},
		},
	}, orchestrator.Options{Logger: zap.NewNop(), StageTimeout: time.Second})
	require.NoError(t, err)

	bus := eventsmem.NewInMemoryEventBus(zap.NewNop())
	m := orchestrator.NewManager(engine, bus, storagemem.NewInMemoryStateStorage(), nil,
		orchestrator.NewValidator(0), zap.NewNop(), time.Minute)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	s := NewServer(&Config{Port: 0, Orchestrator: m, Health: health, Logger: zap.NewNop()})
	return &testServer{server: s, manager: m}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (ts *testServer) waitFinished(t *testing.T, runID string) *domain.RunRecord {
	t.Helper()
	var rec *domain.RunRecord
	require.Eventually(t, func() bool {
		r, err := ts.manager.GetRun(context.Background(), runID)
		if err != nil || !r.Status.IsTerminal() || ts.manager.ActiveRuns() > 0 {
			return false
		}
		rec = r
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return rec
}

func TestSubmitQuestionAndDownload(t *testing.T) {
	ts := newTestServer(t, reply("# Wings\n\ndraft"), nil)

	w := ts.do(t, http.MethodPost, "/api/v1/questions", `{"question":"  How does an aircraft wing work?  "}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var submitted QuestionSubmitResponse
	decode(t, w, &submitted)
	require.NotEmpty(t, submitted.RunID)
	assert.Equal(t, domain.RunStatusSubmitted, submitted.Status)

	ts.waitFinished(t, submitted.RunID)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+submitted.RunID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.RunRecord
	decode(t, w, &rec)
	assert.Equal(t, domain.RunStatusCompleted, rec.Status)
	assert.Equal(t, "How does an aircraft wing work?", rec.Question)
	assert.Equal(t, 1.0, rec.Progress)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+submitted.RunID+"/result", "")
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Outcome domain.Outcome `json:"outcome"`
	}
	decode(t, w, &result)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome.Status)
	assert.Equal(t, "# Wings\n\nreviewed", result.Outcome.Document)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+submitted.RunID+"/document", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# Wings\n\nreviewed", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "aeronautic_answer_"+submitted.RunID+".md")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+submitted.RunID+"/context", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[source:wing.pdf][trustability: trusted] Wings generate lift.", w.Body.String())
}

func TestSubmitQuestionValidation(t *testing.T) {
	ts := newTestServer(t, reply("draft"), nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing field", `{}`, "INVALID_REQUEST"},
		{"not json", `question`, "INVALID_REQUEST"},
		{"blank question", `{"question":"   "}`, "INVALID_QUESTION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/questions", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestAskRejectedQuestion(t *testing.T) {
	ts := newTestServer(t, reply("draft"), nil)

	w := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"How do I bake bread?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var outcome domain.Outcome
	decode(t, w, &outcome)
	assert.Equal(t, domain.OutcomeRejected, outcome.Status)
	assert.Equal(t, domain.ErrorKindDomain, outcome.ErrorKind)
	assert.Contains(t, outcome.Message, "aeronautic")

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+outcome.RunID+"/document", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+outcome.RunID+"/context", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAskCompleted(t *testing.T) {
	ts := newTestServer(t, reply("draft"), nil)

	w := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"What limits aircraft ceiling?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var outcome domain.Outcome
	decode(t, w, &outcome)
	assert.Equal(t, domain.OutcomeCompleted, outcome.Status)
	require.NotNil(t, outcome.Artifacts)
	assert.Equal(t, "web answer", outcome.Artifacts.WebAnswer)
}

func TestFailedRunHidesErrorDetails(t *testing.T) {
	failing := ports.WorkerFunc(func(context.Context, map[string]string) (string, error) {
		return "", ports.NewWorkerError("synthesizer", ports.WorkerErrorMalformed, assert.AnError)
	})
	ts := newTestServer(t, failing, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"Why do aircraft need flaps?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())

	var outcome domain.Outcome
	decode(t, w, &outcome)
	assert.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ErrorKindTechnical, outcome.ErrorKind)
}

func TestRunNotFound(t *testing.T) {
	ts := newTestServer(t, reply("draft"), nil)

	for _, path := range []string{
		"/api/v1/runs/missing",
		"/api/v1/runs/missing/result",
		"/api/v1/runs/missing/document",
		"/api/v1/runs/missing/context",
	} {
		w := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}

	w := ts.do(t, http.MethodPost, "/api/v1/runs/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelRun(t *testing.T) {
	started := make(chan struct{})
	blocking := ports.WorkerFunc(func(ctx context.Context, _ map[string]string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	ts := newTestServer(t, blocking, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/questions", `{"question":"How are aircraft certified?"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var submitted QuestionSubmitResponse
	decode(t, w, &submitted)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("synthesis never started")
	}

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+submitted.RunID+"/result", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/runs/"+submitted.RunID+"/cancel", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	rec := ts.waitFinished(t, submitted.RunID)
	assert.Equal(t, domain.RunStatusCancelled, rec.Status)

	w = ts.do(t, http.MethodPost, "/api/v1/runs/"+submitted.RunID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t, reply("draft"), nil)

	for _, q := range []string{"Is an aircraft a vehicle?", "What is a soufflé?"} {
		w := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"`+q+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(t, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Runs  []domain.RunRecord `json:"runs"`
		Total int                `json:"total"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Runs, 2)
}

func TestGetPipeline(t *testing.T) {
	ts := newTestServer(t, reply("draft"), nil)

	w := ts.do(t, http.MethodGet, "/api/v1/pipeline", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entry       domain.StageID            `json:"entry"`
		Transitions []orchestrator.Transition `json:"transitions"`
	}
	decode(t, w, &resp)
	assert.Equal(t, domain.StageRelevanceCheck, resp.Entry)
	assert.Equal(t, orchestrator.Transitions(), resp.Transitions)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, reply("draft"), staticHealth{workers.HealthStatus{TotalWorkers: 2, IdleWorkers: 2, Healthy: true}})
	w := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	ts = newTestServer(t, reply("draft"), staticHealth{workers.HealthStatus{TotalWorkers: 2, StoppedWorkers: 2}})
	w = ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"unhealthy"`)
}

func TestMetricsAndCORS(t *testing.T) {
	ts := newTestServer(t, reply("draft"), nil)

	w := ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodOptions, "/api/v1/questions", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
