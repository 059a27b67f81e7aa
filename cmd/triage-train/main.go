// Command triage-train fits the classifier on a labelled corpus and writes
// vectorizer.json and model.json to the configured model storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/znz-systems/triage/internal/blob"
	"github.com/znz-systems/triage/internal/classifier"
	"github.com/znz-systems/triage/internal/config"
)

var samples = []string{
	"urgent meeting tomorrow action required",
	"employee benefits enrollment form",
	"invoice payment due for order",
	"team lunch next week",
}

func main() {
	corpusPath := flag.String("corpus", "", "YAML corpus file (default: embedded corpus)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, *corpusPath); err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, corpusPath string) error {
	corpus, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}

	vec, model, err := classifier.Train(corpus)
	if err != nil {
		return err
	}

	store, err := blob.Open(ctx, blob.Config{
		Backend:           cfg.ModelBackend,
		Dir:               cfg.ModelDir,
		S3Bucket:          cfg.S3Bucket,
		S3Region:          cfg.S3Region,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretKey,
		S3ForcePathStyle:  cfg.S3ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("opening model storage: %w", err)
	}

	keys := classifier.Keys{Vectorizer: cfg.VectorizerKey, Model: cfg.ModelKey}
	if err := classifier.SaveArtifacts(ctx, store, keys, vec, model); err != nil {
		return err
	}
	slog.Info("classifier trained", "features", vec.Dim(), "classes", len(model.Classes),
		"backend", cfg.ModelBackend, "vectorizer", keys.Vectorizer, "model", keys.Model)

	svc, err := classifier.NewService(vec, model)
	if err != nil {
		return err
	}
	for _, text := range samples {
		res := svc.Classify(text)
		fmt.Printf("%-45q -> %-9s (%.3f)\n", text, res.Category, res.Confidence)
	}
	return nil
}

func loadCorpus(path string) (classifier.Corpus, error) {
	if path == "" {
		return classifier.DefaultCorpus()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return classifier.Corpus{}, fmt.Errorf("reading corpus: %w", err)
	}
	return classifier.ParseCorpus(data)
}
