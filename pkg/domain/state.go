package domain

// ErrorKind classifies why a run did not produce a reviewed document.
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindDomain    ErrorKind = "domain"
	ErrorKindEthics    ErrorKind = "ethics"
	ErrorKindTechnical ErrorKind = "technical"
	ErrorKindCancelled ErrorKind = "cancelled"
)

// PipelineState is the mutable record owned by the flow engine for the
// lifetime of one run. It is never shared between runs.
type PipelineState struct {
	RunID    string `json:"run_id"`
	Question string `json:"question"`

	RelevanceVerdict string `json:"relevance_verdict,omitempty"`
	EthicsVerdict    string `json:"ethics_verdict,omitempty"`

	KnowledgeAnswer  string `json:"knowledge_answer,omitempty"`
	RetrievedContext string `json:"retrieved_context,omitempty"`
	WebAnswer        string `json:"web_answer,omitempty"`

	SynthesizedDocument string `json:"synthesized_document,omitempty"`
	ReviewedDocument    string `json:"reviewed_document,omitempty"`

	ValidationErrorKind    ErrorKind `json:"validation_error_kind,omitempty"`
	ValidationErrorMessage string    `json:"validation_error_message,omitempty"`
}

// StateDelta carries the fields a stage wants to write. Nil fields are left
// untouched.
type StateDelta struct {
	RelevanceVerdict    *string
	EthicsVerdict       *string
	KnowledgeAnswer     *string
	RetrievedContext    *string
	WebAnswer           *string
	SynthesizedDocument *string
	ReviewedDocument    *string

	ValidationErrorKind    *ErrorKind
	ValidationErrorMessage *string
}

// NewPipelineState creates the initial state of a run.
func NewPipelineState(runID, question string) *PipelineState {
	return &PipelineState{
		RunID:    runID,
		Question: question,
	}
}

// Text returns a pointer to s for use in a StateDelta.
func Text(s string) *string {
	return &s
}

// Rejection builds the delta recording a terminal validation error.
func Rejection(kind ErrorKind, message string) StateDelta {
	return StateDelta{
		ValidationErrorKind:    &kind,
		ValidationErrorMessage: &message,
	}
}

// IsEmpty reports whether the delta writes nothing.
func (d StateDelta) IsEmpty() bool {
	return d == StateDelta{}
}

// Apply folds a delta into the state. It never fails.
//
// The reviewed document and the validation error fields are mutually
// exclusive: writing one side clears the other.
func (s *PipelineState) Apply(d StateDelta) {
	assign(&s.RelevanceVerdict, d.RelevanceVerdict)
	assign(&s.EthicsVerdict, d.EthicsVerdict)
	assign(&s.KnowledgeAnswer, d.KnowledgeAnswer)
	assign(&s.RetrievedContext, d.RetrievedContext)
	assign(&s.WebAnswer, d.WebAnswer)
	assign(&s.SynthesizedDocument, d.SynthesizedDocument)

	if d.ReviewedDocument != nil {
		s.ReviewedDocument = *d.ReviewedDocument
		s.ValidationErrorKind = ErrorKindNone
		s.ValidationErrorMessage = ""
	}

	if d.ValidationErrorKind != nil {
		s.ValidationErrorKind = *d.ValidationErrorKind
		s.ReviewedDocument = ""
	}
	if d.ValidationErrorMessage != nil {
		s.ValidationErrorMessage = *d.ValidationErrorMessage
	}
}

// Terminal reports whether exactly one of the reviewed document or the
// validation error kind is set.
func (s *PipelineState) Terminal() bool {
	hasDoc := s.ReviewedDocument != ""
	hasErr := s.ValidationErrorKind != ErrorKindNone
	return hasDoc != hasErr
}

// Clone returns a copy of the state.
func (s *PipelineState) Clone() *PipelineState {
	c := *s
	return &c
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
