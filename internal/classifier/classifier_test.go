package classifier

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znz-systems/triage/internal/blob"
	"github.com/znz-systems/triage/internal/models"
)

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, key, _ string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), body...)
	return nil
}

func (m *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, blob.ErrObjectNotFound
	}
	return b, nil
}

func trainedService(t *testing.T) *Service {
	t.Helper()
	corpus, err := DefaultCorpus()
	require.NoError(t, err)
	vec, model, err := Train(corpus)
	require.NoError(t, err)
	svc, err := NewService(vec, model)
	require.NoError(t, err)
	return svc
}

func TestClassifyBlankText(t *testing.T) {
	svc := trainedService(t)
	for _, text := range []string{"", "   ", "\t\n"} {
		got := svc.Classify(text)
		assert.Equal(t, Result{Category: models.CategoryGeneral, Confidence: 0.5, Source: SourceEmpty}, got)
	}
}

func TestClassifySamples(t *testing.T) {
	svc := trainedService(t)
	tests := map[string]models.Category{
		"urgent meeting tomorrow action required": models.CategoryUrgent,
		"employee benefits enrollment form":       models.CategoryHR,
		"invoice payment due for order":           models.CategoryFinancial,
		"team lunch next week":                    models.CategoryGeneral,
		"Critical security alert on the server":   models.CategoryUrgent,
		"Quarterly financial report attached":     models.CategoryFinancial,
	}
	for text, want := range tests {
		t.Run(text, func(t *testing.T) {
			got := svc.Classify(text)
			assert.Equal(t, want, got.Category)
			assert.Equal(t, SourceModel, got.Source)
			assert.Greater(t, got.Confidence, 0.5)
		})
	}
}

func TestClassifyUnknownTermsUsesPriors(t *testing.T) {
	svc := trainedService(t)

	// Three classes share the largest prior; the first in sorted order wins.
	got := svc.Classify("zzzz qqqq")
	assert.Equal(t, models.CategoryFinancial, got.Category)
	assert.InDelta(t, 8.0/31.0, got.Confidence, 1e-9)
}

func TestClassifyBoundsAndClosure(t *testing.T) {
	svc := trainedService(t)
	texts := []string{
		"a", "URGENT!!!", "payroll payroll payroll", "ünïcödé téxt", "12345 678",
		"meeting meeting meeting urgent hr invoice",
	}
	for _, text := range texts {
		got := svc.Classify(text)
		assert.True(t, got.Category.Valid(), "category %q", got.Category)
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
	}
}

func TestClassifyFallsBackOnNonFiniteModel(t *testing.T) {
	svc := trainedService(t)
	broken := *svc.model
	broken.ClassLogPrior = []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	svc = &Service{vec: svc.vec, model: &broken}

	got := svc.Classify("urgent meeting")
	assert.Equal(t, Result{Category: models.CategoryGeneral, Confidence: 0.5, Source: SourceFallback}, got)
}

func TestLoadTrainsWhenArtifactsMissing(t *testing.T) {
	store := newMemBlobs()

	svc, err := Load(context.Background(), store, DefaultKeys())
	require.NoError(t, err)
	assert.Equal(t, models.CategoryUrgent, svc.Classify("urgent action needed").Category)
	assert.Empty(t, store.data, "bootstrap training must not persist artifacts")
}

func TestSaveAndLoadArtifacts(t *testing.T) {
	store := newMemBlobs()
	corpus, err := DefaultCorpus()
	require.NoError(t, err)
	vec, model, err := Train(corpus)
	require.NoError(t, err)

	require.NoError(t, SaveArtifacts(context.Background(), store, DefaultKeys(), vec, model))
	assert.Contains(t, store.data, "vectorizer.json")
	assert.Contains(t, store.data, "model.json")

	loadedVec, loadedModel, err := LoadArtifacts(context.Background(), store, DefaultKeys())
	require.NoError(t, err)
	assert.Equal(t, vec.Vocabulary, loadedVec.Vocabulary)
	assert.Equal(t, model.Classes, loadedModel.Classes)

	text := "budget approval needed today"
	want, _, _ := model.Predict(vec.Transform(text))
	got, _, _ := loadedModel.Predict(loadedVec.Transform(text))
	assert.Equal(t, want, got)
}

func TestLoadArtifactsDimensionMismatch(t *testing.T) {
	store := newMemBlobs()
	corpus, err := DefaultCorpus()
	require.NoError(t, err)
	_, model, err := Train(corpus)
	require.NoError(t, err)

	small, err := FitVectorizer([]string{"only two words"}, 0)
	require.NoError(t, err)
	require.NoError(t, writeJSON(context.Background(), store, "vectorizer.json", small))
	require.NoError(t, writeJSON(context.Background(), store, "model.json", model))

	_, _, err = LoadArtifacts(context.Background(), store, DefaultKeys())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrArtifactsMissing)

	_, err = Load(context.Background(), store, DefaultKeys())
	assert.Error(t, err)

	assert.Error(t, SaveArtifacts(context.Background(), newMemBlobs(), DefaultKeys(), small, model))
}

func TestFitVectorizerCapsVocabulary(t *testing.T) {
	vec, err := FitVectorizer([]string{"alpha beta", "alpha gamma", "beta alpha"}, 2)
	require.NoError(t, err)

	// alpha=3, beta=2, then gamma and the bigrams tie at 1.
	assert.Equal(t, map[string]int{"alpha": 0, "beta": 1}, vec.Vocabulary)
	assert.Equal(t, [2]int{1, 2}, vec.NgramRange)
}

func TestFitVectorizerEmpty(t *testing.T) {
	_, err := FitVectorizer([]string{"a b", "!"}, 10)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestTransformIsUnitLength(t *testing.T) {
	vec, err := FitVectorizer([]string{"invoice payment due", "team lunch"}, MaxFeatures)
	require.NoError(t, err)

	x := vec.Transform("Invoice payment, invoice!")
	var norm float64
	for _, v := range x {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)

	for _, v := range vec.Transform("nothing known") {
		assert.Zero(t, v)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"re", "hr_policy", "2024", "été"}, tokenize("RE: a HR_policy 2024 été!"))
	assert.Equal(t, []string{"team", "lunch", "team lunch"}, terms("Team lunch", [2]int{1, 2}))
}

func TestParseCorpusRejectsUnknownCategory(t *testing.T) {
	_, err := ParseCorpus([]byte("categories:\n  spam:\n    - buy now\n"))
	assert.Error(t, err)

	_, err = ParseCorpus([]byte("categories:\n  hr: []\n"))
	assert.Error(t, err)
}
