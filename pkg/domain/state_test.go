package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/aerodoc/pkg/domain"
)

func TestNewPipelineState(t *testing.T) {
	s := domain.NewPipelineState("run-1", "What is lift in aerodynamics?")

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "What is lift in aerodynamics?", s.Question)
	assert.Empty(t, s.KnowledgeAnswer)
	assert.Empty(t, s.ReviewedDocument)
	assert.Equal(t, domain.ErrorKindNone, s.ValidationErrorKind)
	assert.False(t, s.Terminal())
}

func TestApplyOnlyWritesSetFields(t *testing.T) {
	s := domain.NewPipelineState("run-1", "q")
	s.Apply(domain.StateDelta{KnowledgeAnswer: domain.Text("kb"), RetrievedContext: domain.Text("ctx")})
	s.Apply(domain.StateDelta{WebAnswer: domain.Text("web")})

	assert.Equal(t, "kb", s.KnowledgeAnswer)
	assert.Equal(t, "ctx", s.RetrievedContext)
	assert.Equal(t, "web", s.WebAnswer)
	assert.Equal(t, "q", s.Question)
}

func TestApplyEmptyDeltaIsNoop(t *testing.T) {
	s := domain.NewPipelineState("run-1", "q")
	s.Apply(domain.StateDelta{SynthesizedDocument: domain.Text("doc")})
	before := s.Clone()

	s.Apply(domain.StateDelta{})

	assert.Equal(t, before, s)
	assert.True(t, domain.StateDelta{}.IsEmpty())
	assert.False(t, domain.StateDelta{WebAnswer: domain.Text("")}.IsEmpty())
}

func TestApplyLaterDeltaOverwrites(t *testing.T) {
	s := domain.NewPipelineState("run-1", "q")
	s.Apply(domain.StateDelta{WebAnswer: domain.Text("first")})
	s.Apply(domain.StateDelta{WebAnswer: domain.Text("second")})

	assert.Equal(t, "second", s.WebAnswer)
}

func TestApplyTerminalFieldsAreExclusive(t *testing.T) {
	t.Run("rejection clears document", func(t *testing.T) {
		s := domain.NewPipelineState("run-1", "q")
		s.Apply(domain.StateDelta{ReviewedDocument: domain.Text("final")})
		require.True(t, s.Terminal())

		s.Apply(domain.Rejection(domain.ErrorKindTechnical, "boom"))

		assert.Empty(t, s.ReviewedDocument)
		assert.Equal(t, domain.ErrorKindTechnical, s.ValidationErrorKind)
		assert.Equal(t, "boom", s.ValidationErrorMessage)
		assert.True(t, s.Terminal())
	})

	t.Run("document clears rejection", func(t *testing.T) {
		s := domain.NewPipelineState("run-1", "q")
		s.Apply(domain.Rejection(domain.ErrorKindDomain, "not aeronautic"))

		s.Apply(domain.StateDelta{ReviewedDocument: domain.Text("final")})

		assert.Equal(t, "final", s.ReviewedDocument)
		assert.Equal(t, domain.ErrorKindNone, s.ValidationErrorKind)
		assert.Empty(t, s.ValidationErrorMessage)
		assert.True(t, s.Terminal())
	})
}

func TestCloneIsIndependent(t *testing.T) {
	s := domain.NewPipelineState("run-1", "q")
	c := s.Clone()
	c.Apply(domain.StateDelta{WebAnswer: domain.Text("web")})

	assert.Empty(t, s.WebAnswer)
}

func TestOutcomeBuilders(t *testing.T) {
	s := domain.NewPipelineState("run-1", "q")
	s.Apply(domain.StateDelta{
		KnowledgeAnswer:     domain.Text("kb"),
		RetrievedContext:    domain.Text("ctx"),
		WebAnswer:           domain.Text("web"),
		SynthesizedDocument: domain.Text("draft"),
		ReviewedDocument:    domain.Text("final"),
	})

	done := domain.Completed(s)
	assert.True(t, done.Succeeded())
	assert.Equal(t, "final", done.Document)
	require.NotNil(t, done.Artifacts)
	assert.Equal(t, "ctx", done.Artifacts.RetrievedContext)
	assert.Equal(t, "draft", done.Artifacts.SynthesizedDocument)

	r := domain.NewPipelineState("run-2", "q")
	r.Apply(domain.Rejection(domain.ErrorKindEthics, "nope"))
	rej := domain.Rejected(r, domain.StageEthicsCheck)
	assert.Equal(t, domain.OutcomeRejected, rej.Status)
	assert.Equal(t, domain.ErrorKindEthics, rej.ErrorKind)
	assert.Equal(t, domain.StageEthicsCheck, rej.Stage)

	c := domain.NewPipelineState("run-3", "q")
	c.Apply(domain.Rejection(domain.ErrorKindCancelled, "cancelled"))
	assert.Equal(t, domain.OutcomeCancelled, domain.Failure(c, domain.StageWebResearch).Status)

	f := domain.NewPipelineState("run-4", "q")
	f.Apply(domain.Rejection(domain.ErrorKindTechnical, "down"))
	assert.Equal(t, domain.OutcomeFailed, domain.Failure(f, domain.StageWebResearch).Status)
}
