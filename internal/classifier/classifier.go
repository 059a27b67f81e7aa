// Package classifier assigns one of the fixed categories to email text using
// a TF-IDF vectorizer and a multinomial naive Bayes model.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/znz-systems/triage/internal/blob"
	"github.com/znz-systems/triage/internal/metrics"
	"github.com/znz-systems/triage/internal/models"
)

// DefaultConfidence accompanies the default category for blank text and
// failed predictions.
const DefaultConfidence = 0.5

// Source tells where a Result came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceEmpty    Source = "empty"
	SourceFallback Source = "fallback"
)

type Result struct {
	Category   models.Category
	Confidence float64
	Source     Source
}

// Service is safe for concurrent use; its state is never mutated after
// construction.
type Service struct {
	vec   *Vectorizer
	model *NaiveBayes
}

func NewService(vec *Vectorizer, model *NaiveBayes) (*Service, error) {
	if err := checkPair(vec, model); err != nil {
		return nil, err
	}
	return &Service{vec: vec, model: model}, nil
}

// Train fits a vectorizer and model on corpus.
func Train(corpus Corpus) (*Vectorizer, *NaiveBayes, error) {
	texts, labels := corpus.Samples()
	vec, err := FitVectorizer(texts, MaxFeatures)
	if err != nil {
		return nil, nil, err
	}
	x := make([][]float64, len(texts))
	for i, t := range texts {
		x[i] = vec.Transform(t)
	}
	model, err := TrainNaiveBayes(x, labels, Alpha)
	if err != nil {
		return nil, nil, err
	}
	return vec, model, nil
}

// Load reads the artifacts from store. When they are missing it trains on
// the embedded corpus and uses the result without persisting it.
func Load(ctx context.Context, store blob.Store, keys Keys) (*Service, error) {
	vec, model, err := LoadArtifacts(ctx, store, keys)
	if errors.Is(err, ErrArtifactsMissing) {
		slog.Warn("classifier artifacts not found, training from embedded corpus", "error", err)
		corpus, cerr := DefaultCorpus()
		if cerr != nil {
			return nil, cerr
		}
		vec, model, err = Train(corpus)
	}
	if err != nil {
		return nil, fmt.Errorf("loading classifier: %w", err)
	}
	slog.Info("classifier ready", "features", vec.Dim(), "classes", len(model.Classes))
	return NewService(vec, model)
}

// Classify never fails: blank text and internal errors both yield the
// general category with confidence 0.5.
func (s *Service) Classify(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Category: models.CategoryGeneral, Confidence: DefaultConfidence, Source: SourceEmpty}
	}

	category, confidence, err := s.model.Predict(s.vec.Transform(text))
	if err == nil && !category.Valid() {
		err = fmt.Errorf("model returned unknown category %q", category)
	}
	if err != nil {
		slog.Warn("classification failed, using default category", "error", err)
		metrics.ClassifierFallbacks.Inc()
		return Result{Category: models.CategoryGeneral, Confidence: DefaultConfidence, Source: SourceFallback}
	}
	return Result{Category: category, Confidence: confidence, Source: SourceModel}
}
