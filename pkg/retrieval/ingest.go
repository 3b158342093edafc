package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/pkg/documents"
)

const embedBatchSize = 64

// IngestStats reports what an ingest run did.
type IngestStats struct {
	Files   int
	Chunks  int
	Skipped int
}

// Ingester chunks files and writes them into a namespace of the index.
type Ingester struct {
	resources *Resources
	namespace string
	logger    zerolog.Logger
}

// NewIngester creates an Ingester.
func NewIngester(resources *Resources, namespace string, logger zerolog.Logger) (*Ingester, error) {
	if resources == nil {
		return nil, errors.New("resources are required")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Ingester{
		resources: resources,
		namespace: namespace,
		logger:    logger.With().Str("component", "ingest").Logger(),
	}, nil
}

// IngestPaths ingests every supported file under each path.
func (in *Ingester) IngestPaths(ctx context.Context, paths ...string) (IngestStats, error) {
	var stats IngestStats
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !documents.Supported(path) {
				stats.Skipped++
				return nil
			}
			n, err := in.IngestFile(ctx, path)
			if err != nil {
				if errors.Is(err, documents.ErrEmptyText) {
					in.logger.Warn().Str("file", path).Msg("Skipping document without text")
					stats.Skipped++
					return nil
				}
				return err
			}
			stats.Files++
			stats.Chunks += n
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("ingest %s: %w", root, err)
		}
	}
	return stats, nil
}

// IngestFile replaces every chunk of path in the index. The source metadata
// is the file's base name.
func (in *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	text, err := documents.ExtractFile(path)
	if err != nil {
		return 0, err
	}
	return in.IngestText(ctx, filepath.Base(path), text)
}

// IngestText chunks and embeds text under source.
func (in *Ingester) IngestText(ctx context.Context, source, text string) (int, error) {
	index, err := in.resources.Index(ctx)
	if err != nil {
		return 0, fmt.Errorf("open index: %w", err)
	}
	embedder, err := in.resources.Embedder(ctx)
	if err != nil {
		return 0, fmt.Errorf("open embedder: %w", err)
	}

	chunks := ChunkText(text)
	if err := index.DeleteSource(ctx, in.namespace, source); err != nil {
		return 0, fmt.Errorf("remove previous chunks: %w", err)
	}

	for startIdx := 0; startIdx < len(chunks); startIdx += embedBatchSize {
		batch := chunks[startIdx:min(startIdx+embedBatchSize, len(chunks))]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}

		docs := make([]Document, len(batch))
		for i, c := range batch {
			docs[i] = Document{
				ID:     DocumentID(source, c.Offset),
				Text:   c.Text,
				Source: source,
				Vector: vectors[i],
			}
		}
		if err := index.Upsert(ctx, in.namespace, docs); err != nil {
			return 0, fmt.Errorf("store chunks: %w", err)
		}
	}

	in.logger.Info().Str("source", source).Int("chunks", len(chunks)).Msg("Document ingested")
	return len(chunks), nil
}

// RemoveFile drops a deleted file's chunks.
func (in *Ingester) RemoveFile(ctx context.Context, path string) error {
	index, err := in.resources.Index(ctx)
	if err != nil {
		return err
	}
	return index.DeleteSource(ctx, in.namespace, filepath.Base(path))
}

// Sync ingests path when it exists and removes it from the index otherwise.
func (in *Ingester) Sync(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return in.RemoveFile(ctx, path)
	}
	_, err := in.IngestFile(ctx, path)
	return err
}
