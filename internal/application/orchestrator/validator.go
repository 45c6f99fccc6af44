package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidQuestion is returned when a question fails intake validation.
var ErrInvalidQuestion = errors.New("invalid question")

// DefaultMaxQuestionLength bounds the question size accepted at intake.
const DefaultMaxQuestionLength = 2000

// Validator checks questions before a run is created. Relevance and ethics
// are judged by the pipeline itself; the validator only rejects input that
// cannot be a question at all.
type Validator struct {
	maxLength int
}

// NewValidator creates a question validator.
func NewValidator(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxQuestionLength
	}
	return &Validator{maxLength: maxLength}
}

// Normalize trims the question and validates it.
func (v *Validator) Normalize(question string) (string, error) {
	q := strings.TrimSpace(question)

	if q == "" {
		return "", fmt.Errorf("%w: question is required", ErrInvalidQuestion)
	}

	if !utf8.ValidString(q) {
		return "", fmt.Errorf("%w: question is not valid UTF-8", ErrInvalidQuestion)
	}

	if n := utf8.RuneCountInString(q); n > v.maxLength {
		return "", fmt.Errorf("%w: question is %d characters, maximum is %d", ErrInvalidQuestion, n, v.maxLength)
	}

	return q, nil
}
