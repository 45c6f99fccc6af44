package retrieval

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aescanero/aerodoc/pkg/domain"
)

// StaticRetriever returns the same passages for every query.
type StaticRetriever struct {
	passages []domain.Passage
}

// NewStaticRetriever creates a retriever over fixed passages.
func NewStaticRetriever(passages []domain.Passage) *StaticRetriever {
	return &StaticRetriever{passages: passages}
}

type passagesFile struct {
	Passages []struct {
		Content string `yaml:"content"`
		Source  string `yaml:"source"`
		Trust   string `yaml:"trust"`
	} `yaml:"passages"`
}

// LoadStaticRetriever reads passages from a YAML file:
//
//	passages:
//	  - content: Lift is ...
//	    source: aerodynamics.pdf
//	    trust: trusted
func LoadStaticRetriever(path string) (*StaticRetriever, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read passages: %w", err)
	}
	var f passagesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse passages %q: %w", path, err)
	}
	passages := make([]domain.Passage, 0, len(f.Passages))
	for _, p := range f.Passages {
		passages = append(passages, domain.Passage{
			Content: p.Content,
			Source:  p.Source,
			Trust:   domain.ParseTrust(p.Trust),
		})
	}
	return NewStaticRetriever(passages), nil
}

// Search returns a copy of the fixed passages.
func (s *StaticRetriever) Search(ctx context.Context, query string) ([]domain.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.Passage(nil), s.passages...), nil
}
