package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/znz-systems/triage/internal/models"
)

// Alpha is the additive smoothing applied to feature counts.
const Alpha = 0.1

var ErrNonFinite = errors.New("model produced a non-finite probability")

// NaiveBayes is a multinomial naive Bayes model over TF-IDF features.
type NaiveBayes struct {
	Classes        []models.Category `json:"classes"`
	ClassLogPrior  []float64         `json:"class_log_prior"`
	FeatureLogProb [][]float64       `json:"feature_log_prob"`
	Alpha          float64           `json:"alpha"`
}

// TrainNaiveBayes fits the model. Classes are kept in sorted order, which
// also decides argmax ties.
func TrainNaiveBayes(x [][]float64, y []models.Category, alpha float64) (*NaiveBayes, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("naive bayes: %d samples, %d labels", len(x), len(y))
	}
	dim := len(x[0])

	seen := make(map[models.Category]int)
	for _, c := range y {
		seen[c]++
	}
	classes := make([]models.Category, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	index := make(map[models.Category]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	featureCount := make([][]float64, len(classes))
	for i := range featureCount {
		featureCount[i] = make([]float64, dim)
	}
	for i, row := range x {
		if len(row) != dim {
			return nil, fmt.Errorf("naive bayes: sample %d has %d features, want %d", i, len(row), dim)
		}
		fc := featureCount[index[y[i]]]
		for f, v := range row {
			fc[f] += v
		}
	}

	m := &NaiveBayes{
		Classes:        classes,
		ClassLogPrior:  make([]float64, len(classes)),
		FeatureLogProb: make([][]float64, len(classes)),
		Alpha:          alpha,
	}
	total := float64(len(y))
	for k, c := range classes {
		m.ClassLogPrior[k] = math.Log(float64(seen[c]) / total)

		var sum float64
		for _, v := range featureCount[k] {
			sum += v + alpha
		}
		row := make([]float64, dim)
		for f, v := range featureCount[k] {
			row[f] = math.Log(v+alpha) - math.Log(sum)
		}
		m.FeatureLogProb[k] = row
	}
	return m, nil
}

func (m *NaiveBayes) Dim() int {
	if len(m.FeatureLogProb) == 0 {
		return 0
	}
	return len(m.FeatureLogProb[0])
}

// Predict returns the most probable class and its posterior probability.
func (m *NaiveBayes) Predict(x []float64) (models.Category, float64, error) {
	if len(x) != m.Dim() {
		return "", 0, fmt.Errorf("naive bayes: got %d features, want %d", len(x), m.Dim())
	}

	jll := make([]float64, len(m.Classes))
	maxJLL := math.Inf(-1)
	best := 0
	for k := range m.Classes {
		s := m.ClassLogPrior[k]
		for f, v := range x {
			if v != 0 {
				s += v * m.FeatureLogProb[k][f]
			}
		}
		jll[k] = s
		if s > maxJLL {
			maxJLL = s
			best = k
		}
	}
	if math.IsNaN(maxJLL) || math.IsInf(maxJLL, 0) {
		return "", 0, ErrNonFinite
	}

	var sum float64
	for _, s := range jll {
		sum += math.Exp(s - maxJLL)
	}
	p := 1 / sum
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "", 0, ErrNonFinite
	}
	return m.Classes[best], math.Max(0, math.Min(1, p)), nil
}

func (m *NaiveBayes) validate() error {
	if len(m.Classes) == 0 {
		return errors.New("model: no classes")
	}
	if len(m.ClassLogPrior) != len(m.Classes) || len(m.FeatureLogProb) != len(m.Classes) {
		return errors.New("model: class dimensions disagree")
	}
	for i, c := range m.Classes {
		if !c.Valid() {
			return fmt.Errorf("model: unknown class %q", c)
		}
		if i > 0 && m.Classes[i-1] >= c {
			return errors.New("model: classes must be sorted and unique")
		}
	}
	dim := m.Dim()
	for _, row := range m.FeatureLogProb {
		if len(row) != dim {
			return errors.New("model: ragged feature table")
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.New("model: non-finite weight")
			}
		}
	}
	return nil
}
