package classifier

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// MaxFeatures caps the vocabulary size.
const MaxFeatures = 1000

var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// Vectorizer maps text to L2-normalized TF-IDF vectors over a fixed
// vocabulary of unigrams and bigrams.
type Vectorizer struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	NgramRange  [2]int         `json:"ngram_range"`
	MaxFeatures int            `json:"max_features"`
}

var ErrEmptyVocabulary = errors.New("training documents produced no terms")

// FitVectorizer learns the vocabulary and smoothed IDF weights from docs.
// The vocabulary keeps the maxFeatures most frequent terms, ties broken
// lexicographically, and indexes them in lexicographic order.
func FitVectorizer(docs []string, maxFeatures int) (*Vectorizer, error) {
	ngrams := [2]int{1, 2}
	counts := make(map[string]int)
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, t := range terms(doc, ngrams) {
			counts[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	if len(counts) == 0 {
		return nil, ErrEmptyVocabulary
	}

	all := make([]string, 0, len(counts))
	for t := range counts {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if counts[all[i]] != counts[all[j]] {
			return counts[all[i]] > counts[all[j]]
		}
		return all[i] < all[j]
	})
	if maxFeatures > 0 && len(all) > maxFeatures {
		all = all[:maxFeatures]
	}
	sort.Strings(all)

	n := float64(len(docs))
	v := &Vectorizer{
		Vocabulary:  make(map[string]int, len(all)),
		IDF:         make([]float64, len(all)),
		NgramRange:  ngrams,
		MaxFeatures: maxFeatures,
	}
	for i, t := range all {
		v.Vocabulary[t] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v, nil
}

func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

// Transform returns the dense feature vector for text. Terms outside the
// vocabulary are ignored; text with no known terms maps to the zero vector.
func (v *Vectorizer) Transform(text string) []float64 {
	x := make([]float64, len(v.IDF))
	for _, t := range terms(text, v.NgramRange) {
		if i, ok := v.Vocabulary[t]; ok {
			x[i]++
		}
	}

	var norm float64
	for i := range x {
		x[i] *= v.IDF[i]
		norm += x[i] * x[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range x {
			x[i] /= norm
		}
	}
	return x
}

func (v *Vectorizer) validate() error {
	if len(v.Vocabulary) == 0 {
		return errors.New("vectorizer: empty vocabulary")
	}
	if len(v.Vocabulary) != len(v.IDF) {
		return fmt.Errorf("vectorizer: %d terms but %d idf weights", len(v.Vocabulary), len(v.IDF))
	}
	if v.NgramRange[0] < 1 || v.NgramRange[1] < v.NgramRange[0] {
		return fmt.Errorf("vectorizer: bad ngram range %v", v.NgramRange)
	}
	used := make([]bool, len(v.IDF))
	for t, i := range v.Vocabulary {
		if i < 0 || i >= len(used) || used[i] {
			return fmt.Errorf("vectorizer: bad index %d for %q", i, t)
		}
		used[i] = true
	}
	for _, w := range v.IDF {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return errors.New("vectorizer: non-finite idf weight")
		}
	}
	return nil
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func terms(text string, ngrams [2]int) []string {
	tokens := tokenize(text)
	var out []string
	for n := ngrams[0]; n <= ngrams[1]; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
