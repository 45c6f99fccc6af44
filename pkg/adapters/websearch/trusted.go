// Package websearch filters web search results down to trusted sources and
// renders them as text for the web researcher.
package websearch

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aescanero/aerodoc/pkg/ports"
)

//go:embed domains.yaml
var defaultDomainsYAML []byte

type domainsFile struct {
	TrustedDomains []string `yaml:"trusted_domains"`
}

// DefaultTrustedDomains returns the built-in trusted domain list.
func DefaultTrustedDomains() []string {
	domains, err := parseDomains(defaultDomainsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded domains.yaml: %v", err))
	}
	return domains
}

// LoadTrustedDomains reads a YAML file with a trusted_domains list. An
// empty path returns the defaults.
func LoadTrustedDomains(path string) ([]string, error) {
	if path == "" {
		return DefaultTrustedDomains(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trusted domains: %w", err)
	}
	domains, err := parseDomains(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trusted domains %q: %w", path, err)
	}
	return domains, nil
}

func parseDomains(data []byte) ([]string, error) {
	var f domainsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	domains := make([]string, 0, len(f.TrustedDomains))
	for _, d := range f.TrustedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("no trusted domains listed")
	}
	return domains, nil
}

// Filter keeps only results whose link belongs to a trusted domain.
type Filter struct {
	domains []string
}

// NewFilter creates a filter over domains.
func NewFilter(domains []string) *Filter {
	return &Filter{domains: domains}
}

// IsTrusted reports whether link's host is a trusted domain or one of its
// subdomains.
func (f *Filter) IsTrusted(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range f.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Apply returns a copy of resp holding only trusted results. Related
// searches carry no link and are always kept.
func (f *Filter) Apply(resp *ports.SearchResponse) *ports.SearchResponse {
	out := &ports.SearchResponse{
		Query:           resp.Query,
		RelatedSearches: append([]string(nil), resp.RelatedSearches...),
	}
	for _, r := range resp.Organic {
		if f.IsTrusted(r.Link) {
			out.Organic = append(out.Organic, r)
		}
	}
	for _, q := range resp.PeopleAlsoAsk {
		if f.IsTrusted(q.Link) {
			out.PeopleAlsoAsk = append(out.PeopleAlsoAsk, q)
		}
	}
	return out
}

// Format renders filtered results. totalResults is the number of organic
// results before filtering.
func Format(resp *ports.SearchResponse, totalResults int) string {
	if len(resp.Organic) == 0 && len(resp.PeopleAlsoAsk) == 0 {
		return fmt.Sprintf("NO TRUSTED SOURCES FOUND\nTotal results available: %d\nConsider expanding trusted domains list.", totalResults)
	}

	var b strings.Builder
	b.WriteString("TRUSTED SEARCH RESULTS\n")
	fmt.Fprintf(&b, "Query: %s\n", resp.Query)
	fmt.Fprintf(&b, "Total trusted sources found: %d\n", len(resp.Organic))
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n\n")

	if len(resp.Organic) > 0 {
		b.WriteString("ORGANIC RESULTS\n")
		for i, r := range resp.Organic {
			fmt.Fprintf(&b, "%d. **%s**\n", i+1, r.Title)
			fmt.Fprintf(&b, " %s\n", r.Link)
			fmt.Fprintf(&b, "%s\n", r.Snippet)
			fmt.Fprintf(&b, "Position: %d\n\n", r.Position)
		}
	}

	if len(resp.PeopleAlsoAsk) > 0 {
		b.WriteString("PEOPLE ALSO ASK\n")
		for i, q := range resp.PeopleAlsoAsk {
			fmt.Fprintf(&b, "%d. Q: %s\n", i+1, q.Question)
			if q.Snippet != "" {
				fmt.Fprintf(&b, "   A: %s\n", q.Snippet)
			}
			if q.Link != "" {
				fmt.Fprintf(&b, "  %s\n", q.Link)
			}
			b.WriteString("\n")
		}
	}

	if len(resp.RelatedSearches) > 0 {
		b.WriteString("RELATED SEARCHES\n")
		for _, s := range resp.RelatedSearches {
			fmt.Fprintf(&b, "   - %s\n", s)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// TrustedSearcher runs a web search and returns only trusted results as text.
type TrustedSearcher struct {
	searcher ports.WebSearcher
	filter   *Filter
}

// NewTrustedSearcher wraps searcher with a trusted-domain filter.
func NewTrustedSearcher(searcher ports.WebSearcher, domains []string) *TrustedSearcher {
	return &TrustedSearcher{searcher: searcher, filter: NewFilter(domains)}
}

// Search queries the backend and formats the trusted results.
func (s *TrustedSearcher) Search(ctx context.Context, query string) (string, error) {
	resp, err := s.searcher.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if resp.Query == "" {
		resp.Query = query
	}
	return Format(s.filter.Apply(resp), len(resp.Organic)), nil
}
