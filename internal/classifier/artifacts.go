package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/znz-systems/triage/internal/blob"
)

// ErrArtifactsMissing means no trained vectorizer or model was found.
var ErrArtifactsMissing = errors.New("classifier artifacts not found")

// Keys names the two artifacts inside a blob.Store.
type Keys struct {
	Vectorizer string
	Model      string
}

func DefaultKeys() Keys {
	return Keys{Vectorizer: "vectorizer.json", Model: "model.json"}
}

// LoadArtifacts reads and validates both artifacts. A vectorizer and model
// that disagree on the feature dimension are rejected.
func LoadArtifacts(ctx context.Context, store blob.Store, keys Keys) (*Vectorizer, *NaiveBayes, error) {
	var vec Vectorizer
	if err := readJSON(ctx, store, keys.Vectorizer, &vec); err != nil {
		return nil, nil, err
	}
	var model NaiveBayes
	if err := readJSON(ctx, store, keys.Model, &model); err != nil {
		return nil, nil, err
	}

	if err := checkPair(&vec, &model); err != nil {
		return nil, nil, err
	}
	return &vec, &model, nil
}

// SaveArtifacts writes the model after the vectorizer so a reader never sees
// a model without its vocabulary.
func SaveArtifacts(ctx context.Context, store blob.Store, keys Keys, vec *Vectorizer, model *NaiveBayes) error {
	if err := checkPair(vec, model); err != nil {
		return err
	}
	if err := writeJSON(ctx, store, keys.Vectorizer, vec); err != nil {
		return err
	}
	return writeJSON(ctx, store, keys.Model, model)
}

func checkPair(vec *Vectorizer, model *NaiveBayes) error {
	if err := vec.validate(); err != nil {
		return err
	}
	if err := model.validate(); err != nil {
		return err
	}
	if vec.Dim() != model.Dim() {
		return fmt.Errorf("vectorizer has %d features but model expects %d", vec.Dim(), model.Dim())
	}
	return nil
}

func readJSON(ctx context.Context, store blob.Store, key string, v any) error {
	data, err := store.Get(ctx, key)
	if errors.Is(err, blob.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", ErrArtifactsMissing, key)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func writeJSON(ctx context.Context, store blob.Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := store.Put(ctx, key, blob.ContentTypeJSON, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
