package orchestrator

import (
	"errors"
	"fmt"

	"github.com/aescanero/aerodoc/pkg/domain"
)

// ErrNoTransition is returned when a (stage, signal) pair has no entry in the
// transition table.
var ErrNoTransition = errors.New("no transition defined")

// ActionKind is what the engine does after a stage.
type ActionKind string

const (
	ActionGoTo     ActionKind = "goto"
	ActionComplete ActionKind = "terminate-success"
	ActionReject   ActionKind = "terminate-validation-failure"
)

// NextAction is the router's decision.
type NextAction struct {
	Kind  ActionKind     `json:"kind"`
	Stage domain.StageID `json:"stage,omitempty"`
}

// Transition is one row of the transition table.
type Transition struct {
	From   domain.StageID `json:"from"`
	Signal domain.Signal  `json:"signal"`
	Next   NextAction     `json:"next"`
}

func (a NextAction) String() string {
	if a.Kind == ActionGoTo {
		return string(a.Stage)
	}
	return string(a.Kind)
}

type transitionKey struct {
	from   domain.StageID
	signal domain.Signal
}

var (
	terminateSuccess = NextAction{Kind: ActionComplete}
	terminateReject  = NextAction{Kind: ActionReject}
)

func goTo(stage domain.StageID) NextAction {
	return NextAction{Kind: ActionGoTo, Stage: stage}
}

// transitionTable is ordered as it is rendered. The retry signals end the run
// like ValidationFailed: a rejected question is resubmitted as a new run.
var transitionTable = []Transition{
	{domain.StageRelevanceCheck, domain.SignalProceed, goTo(domain.StageEthicsCheck)},
	{domain.StageRelevanceCheck, domain.SignalValidationFailed, terminateReject},
	{domain.StageRelevanceCheck, domain.SignalRetryDomain, terminateReject},
	{domain.StageEthicsCheck, domain.SignalSuccess, goTo(domain.StageKnowledgeBase)},
	{domain.StageEthicsCheck, domain.SignalValidationFailed, terminateReject},
	{domain.StageEthicsCheck, domain.SignalRetryEthics, terminateReject},
	{domain.StageKnowledgeBase, domain.SignalProceed, goTo(domain.StageWebResearch)},
	{domain.StageWebResearch, domain.SignalProceed, goTo(domain.StageSynthesis)},
	{domain.StageSynthesis, domain.SignalProceed, goTo(domain.StageBiasReview)},
	{domain.StageBiasReview, domain.SignalProceed, terminateSuccess},
}

var transitions = func() map[transitionKey]NextAction {
	m := make(map[transitionKey]NextAction, len(transitionTable))
	for _, t := range transitionTable {
		m[transitionKey{t.From, t.Signal}] = t.Next
	}
	return m
}()

// EntryStage is the first stage of every run.
const EntryStage = domain.StageRelevanceCheck

// Next returns the action following a stage that emitted signal. It is a pure
// function of its arguments.
func Next(from domain.StageID, signal domain.Signal) (NextAction, error) {
	next, ok := transitions[transitionKey{from, signal}]
	if !ok {
		return NextAction{}, fmt.Errorf("%w: %s on %s", ErrNoTransition, from, signal)
	}
	return next, nil
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	out := make([]Transition, len(transitionTable))
	copy(out, transitionTable)
	return out
}
