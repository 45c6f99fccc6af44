package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aescanero/aerodoc/pkg/domain"
)

func TestParseTrust(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Trust
	}{
		{"trusted", domain.TrustTrusted},
		{" Trusted ", domain.TrustTrusted},
		{"UNTRUSTED", domain.TrustUntrusted},
		{"unknown", domain.TrustUnknown},
		{"", domain.TrustUnknown},
		{"maybe", domain.TrustUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.ParseTrust(tt.in), tt.in)
	}
}

func TestFormatPassages(t *testing.T) {
	got := domain.FormatPassages([]domain.Passage{
		{Content: "Lift is generated by pressure difference.", Source: "aero.pdf", Trust: domain.TrustTrusted},
		{Content: "Planes fly by magic.", Source: "blog.txt", Trust: domain.TrustUntrusted},
		{Content: "No metadata."},
	})

	want := "[source:aero.pdf][trustability: trusted] Lift is generated by pressure difference.\n\n" +
		"[source:blog.txt][trustability: untrusted] Planes fly by magic.\n\n" +
		"[source:unknown][trustability: unknown] No metadata."
	assert.Equal(t, want, got)
}

func TestFormatPassagesEmpty(t *testing.T) {
	assert.Empty(t, domain.FormatPassages(nil))
}

func TestEventTerminal(t *testing.T) {
	assert.True(t, domain.Event{Type: domain.EventTypeRunCompleted}.IsTerminal())
	assert.True(t, domain.Event{Type: domain.EventTypeRunRejected}.IsTerminal())
	assert.False(t, domain.Event{Type: domain.EventTypeStageStarted}.IsTerminal())

	assert.Equal(t, domain.EventTypeRunFailed, domain.TerminalEventType(domain.OutcomeFailed))
	assert.Equal(t, domain.RunStatusRejected, domain.RunStatusFor(domain.OutcomeRejected))
	assert.True(t, domain.RunStatusCancelled.IsTerminal())
	assert.False(t, domain.RunStatusRunning.IsTerminal())
}
