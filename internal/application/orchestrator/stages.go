package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
)

// affirmativeToken is what a judge answer must contain to pass a gate.
const affirmativeToken = "true"

const (
	relevanceSystem = "You are an expert in aeronautics."
	relevancePrompt = "Is the following question relevant to aeronautics? Question: %s. Answer only with 'True' or 'False'"

	ethicsSystem = `You are an ethical AI expert specialized in content moderation.
Your role is to evaluate if questions are appropriate and ethical.
Consider a question ETHICAL if it:
- Seeks legitimate information
- Has educational or professional purpose
- Does not promote harm, violence, or illegal activities
- Does not involve personal attacks or hate speech
Consider a question UNETHICAL if it:
- Requests harmful, dangerous, or illegal information
- Contains hate speech, discrimination, or personal attacks
- Aims to manipulate, deceive, or cause harm
- Violates privacy or confidentiality
Be permissive with legitimate academic, technical, or professional questions.`
	ethicsPrompt = "Is the following question ethical or harmful? Question: %s. Answer only with 'True' or 'False'"

	domainRejection = "The question is not relevant to aeronautics. Please ask a question about the aeronautic field " +
		"(aircraft, helicopters, drones, aircraft engines, aerodynamics, etc.)."
	ethicsRejection = "The question raises ethical concerns. Please ask an appropriate question that does not " +
		"contain harmful, discriminatory or inappropriate content."
)

// Stage is one step of the pipeline. Stages never call each other; the
// engine composes them.
type Stage interface {
	ID() domain.StageID
	Execute(ctx context.Context, state *domain.PipelineState) domain.StageResult
}

// IsAffirmative classifies a judge answer. Anything that does not contain
// the affirmative token, including garbage, is negative.
func IsAffirmative(answer string) bool {
	return strings.Contains(normalizeVerdict(answer), affirmativeToken)
}

func normalizeVerdict(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// gateStage asks a judge worker a yes/no question about the user question.
type gateStage struct {
	id        domain.StageID
	worker    ports.Worker
	system    string
	prompt    string
	pass      domain.Signal
	kind      domain.ErrorKind
	rejection string
	// technical prefixes the message of a technical failure
	technical string
	verdict   func(d *domain.StateDelta, v string)
}

func newRelevanceStage(w ports.Worker) *gateStage {
	return &gateStage{
		id:        domain.StageRelevanceCheck,
		worker:    w,
		system:    relevanceSystem,
		prompt:    relevancePrompt,
		pass:      domain.SignalProceed,
		kind:      domain.ErrorKindDomain,
		rejection: domainRejection,
		technical: "error during aeronautic validation",
		verdict:   func(d *domain.StateDelta, v string) { d.RelevanceVerdict = domain.Text(v) },
	}
}

func newEthicsStage(w ports.Worker) *gateStage {
	return &gateStage{
		id:        domain.StageEthicsCheck,
		worker:    w,
		system:    ethicsSystem,
		prompt:    ethicsPrompt,
		pass:      domain.SignalSuccess,
		kind:      domain.ErrorKindEthics,
		rejection: ethicsRejection,
		technical: "error during ethics validation",
		verdict:   func(d *domain.StateDelta, v string) { d.EthicsVerdict = domain.Text(v) },
	}
}

func (g *gateStage) ID() domain.StageID {
	return g.id
}

func (g *gateStage) Execute(ctx context.Context, state *domain.PipelineState) domain.StageResult {
	answer, err := g.worker.Invoke(ctx, map[string]string{
		domain.InputSystem:   g.system,
		domain.InputPrompt:   fmt.Sprintf(g.prompt, state.Question),
		domain.InputQuestion: state.Question,
	})
	if err != nil {
		we := ports.ClassifyError(string(g.id), err)
		if we.Kind == ports.WorkerErrorCancelled {
			return domain.Failed(domain.ErrorKindCancelled, "run cancelled", we)
		}
		return domain.Succeeded(domain.SignalValidationFailed,
			domain.Rejection(domain.ErrorKindTechnical, fmt.Sprintf("%s: %v", g.technical, err)))
	}

	verdict := normalizeVerdict(answer)
	if IsAffirmative(answer) {
		var delta domain.StateDelta
		g.verdict(&delta, verdict)
		return domain.Succeeded(g.pass, delta)
	}

	delta := domain.Rejection(g.kind, g.rejection)
	g.verdict(&delta, verdict)
	return domain.Succeeded(domain.SignalValidationFailed, delta)
}

// knowledgeStage retrieves passages and asks the knowledge-base answerer to
// answer from them.
type knowledgeStage struct {
	retriever ports.Retriever
	worker    ports.Worker
}

func (k *knowledgeStage) ID() domain.StageID {
	return domain.StageKnowledgeBase
}

func (k *knowledgeStage) Execute(ctx context.Context, state *domain.PipelineState) domain.StageResult {
	passages, err := k.retriever.Search(ctx, state.Question)
	if err != nil {
		return workerFailure(k.ID(), ports.ClassifyError("retriever", err))
	}
	formatted := domain.FormatPassages(passages)

	answer, err := k.worker.Invoke(ctx, map[string]string{
		domain.InputQuestion: state.Question,
		domain.InputContext:  formatted,
	})
	if err != nil {
		return workerFailure(k.ID(), ports.ClassifyError(string(k.ID()), err))
	}
	if strings.TrimSpace(answer) == "" {
		return workerFailure(k.ID(), emptyOutput(k.ID()))
	}

	return domain.Succeeded(domain.SignalProceed, domain.StateDelta{
		KnowledgeAnswer:  domain.Text(answer),
		RetrievedContext: domain.Text(formatted),
	})
}

// researchStage invokes one worker with fields of the accumulated state and
// writes its output to one field.
type researchStage struct {
	id     domain.StageID
	worker ports.Worker
	input  func(s *domain.PipelineState) map[string]string
	output func(out string) domain.StateDelta
}

func newWebResearchStage(w ports.Worker) *researchStage {
	return &researchStage{
		id:     domain.StageWebResearch,
		worker: w,
		input: func(s *domain.PipelineState) map[string]string {
			return map[string]string{
				domain.InputQuestion:        s.Question,
				domain.InputKnowledgeAnswer: s.KnowledgeAnswer,
			}
		},
		output: func(out string) domain.StateDelta {
			return domain.StateDelta{WebAnswer: domain.Text(out)}
		},
	}
}

func newSynthesisStage(w ports.Worker) *researchStage {
	return &researchStage{
		id:     domain.StageSynthesis,
		worker: w,
		input: func(s *domain.PipelineState) map[string]string {
			return map[string]string{
				domain.InputQuestion:        s.Question,
				domain.InputKnowledgeAnswer: s.KnowledgeAnswer,
				domain.InputWebAnswer:       s.WebAnswer,
				domain.InputPaper:           AggregateResults(s),
			}
		},
		output: func(out string) domain.StateDelta {
			return domain.StateDelta{SynthesizedDocument: domain.Text(out)}
		},
	}
}

func newBiasReviewStage(w ports.Worker) *researchStage {
	return &researchStage{
		id:     domain.StageBiasReview,
		worker: w,
		input: func(s *domain.PipelineState) map[string]string {
			return map[string]string{
				domain.InputQuestion: s.Question,
				domain.InputDocument: s.SynthesizedDocument,
			}
		},
		output: func(out string) domain.StateDelta {
			return domain.StateDelta{ReviewedDocument: domain.Text(out)}
		},
	}
}

func (r *researchStage) ID() domain.StageID {
	return r.id
}

func (r *researchStage) Execute(ctx context.Context, state *domain.PipelineState) domain.StageResult {
	out, err := r.worker.Invoke(ctx, r.input(state))
	if err != nil {
		return workerFailure(r.id, ports.ClassifyError(string(r.id), err))
	}
	if strings.TrimSpace(out) == "" {
		return workerFailure(r.id, emptyOutput(r.id))
	}
	return domain.Succeeded(domain.SignalProceed, r.output(out))
}

// AggregateResults combines the knowledge-base and web answers into the
// synthesizer input.
func AggregateResults(s *domain.PipelineState) string {
	return fmt.Sprintf("RAG Result: %s\n\nWeb Result: %s", s.KnowledgeAnswer, s.WebAnswer)
}

func emptyOutput(id domain.StageID) *ports.WorkerError {
	return ports.NewWorkerError(string(id), ports.WorkerErrorMalformed, errors.New("empty output"))
}

func workerFailure(id domain.StageID, we *ports.WorkerError) domain.StageResult {
	if we.Kind == ports.WorkerErrorCancelled {
		return domain.Failed(domain.ErrorKindCancelled, "run cancelled", we)
	}
	return domain.Failed(domain.ErrorKindTechnical,
		fmt.Sprintf("execution could not complete: %s stage failed (%s)", id, we.Kind), we)
}
