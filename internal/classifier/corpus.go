package classifier

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/znz-systems/triage/internal/models"
)

//go:embed corpus.yaml
var defaultCorpus []byte

// Corpus is a labeled training set keyed by category.
type Corpus struct {
	Categories map[models.Category][]string `yaml:"categories"`
}

// DefaultCorpus returns the embedded seed corpus.
func DefaultCorpus() (Corpus, error) {
	return ParseCorpus(defaultCorpus)
}

func ParseCorpus(data []byte) (Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Corpus{}, fmt.Errorf("parsing corpus: %w", err)
	}
	if len(c.Categories) == 0 {
		return Corpus{}, errors.New("corpus has no categories")
	}
	for cat, phrases := range c.Categories {
		if !cat.Valid() {
			return Corpus{}, fmt.Errorf("corpus: unknown category %q", cat)
		}
		n := 0
		for _, p := range phrases {
			if strings.TrimSpace(p) != "" {
				n++
			}
		}
		if n == 0 {
			return Corpus{}, fmt.Errorf("corpus: category %q has no phrases", cat)
		}
	}
	return c, nil
}

// Samples flattens the corpus in category order so training is deterministic.
func (c Corpus) Samples() ([]string, []models.Category) {
	cats := make([]models.Category, 0, len(c.Categories))
	for cat := range c.Categories {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	var texts []string
	var labels []models.Category
	for _, cat := range cats {
		for _, p := range c.Categories[cat] {
			if strings.TrimSpace(p) == "" {
				continue
			}
			texts = append(texts, p)
			labels = append(labels, cat)
		}
	}
	return texts, labels
}
