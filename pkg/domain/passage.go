package domain

import (
	"fmt"
	"strings"
)

// Trust is the trustability label attached to a retrieved passage.
type Trust string

const (
	TrustTrusted   Trust = "trusted"
	TrustUntrusted Trust = "untrusted"
	TrustUnknown   Trust = "unknown"
)

// ParseTrust normalizes a trust label. Unrecognized values map to
// TrustUnknown.
func ParseTrust(s string) Trust {
	switch Trust(strings.ToLower(strings.TrimSpace(s))) {
	case TrustTrusted:
		return TrustTrusted
	case TrustUntrusted:
		return TrustUntrusted
	default:
		return TrustUnknown
	}
}

// Passage is one entry returned by the retrieval collaborator.
type Passage struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Trust   Trust  `json:"trust"`
}

// FormatPassages renders passages as prompt context, one attributed block per
// passage, in the order given.
func FormatPassages(passages []Passage) string {
	blocks := make([]string, 0, len(passages))
	for _, p := range passages {
		src := p.Source
		if src == "" {
			src = "unknown"
		}
		trust := p.Trust
		if trust == "" {
			trust = TrustUnknown
		}
		blocks = append(blocks, fmt.Sprintf("[source:%s][trustability: %s] %s", src, trust, p.Content))
	}
	return strings.Join(blocks, "\n\n")
}
