package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/usecase/index"
	"github.com/m-mizutani/lectern/pkg/usecase/ingest"
)

type fixedEmbedder struct {
	err error
}

func (f *fixedEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func TestIngestReader(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	idx := index.New(repo, &fixedEmbedder{})
	uc := ingest.New(idx)

	course, chunks, err := uc.IngestReader(ctx, "mcp.txt", strings.NewReader(courseDocument))
	gt.NoError(t, err)
	gt.Equal(t, course.Title, "Intro to MCP")
	gt.Equal(t, len(course.Lessons), 2)
	gt.True(t, chunks > 0)

	stored, err := repo.GetCourse(ctx, "Intro to MCP")
	gt.NoError(t, err)
	gt.Equal(t, stored.Instructor, "Elena Vasquez")

	hits, err := repo.FindSimilarChunks(ctx, []float32{1, 0, 0}, nil, 100)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), chunks)
}

func TestIngestReaderReingest(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	idx := index.New(repo, &fixedEmbedder{})
	uc := ingest.New(idx)

	_, first, err := uc.IngestReader(ctx, "mcp.txt", strings.NewReader(courseDocument))
	gt.NoError(t, err)

	// Ingesting the same course again must not accumulate chunks
	_, second, err := uc.IngestReader(ctx, "mcp.txt", strings.NewReader(courseDocument))
	gt.NoError(t, err)
	gt.Equal(t, first, second)

	hits, err := repo.FindSimilarChunks(ctx, []float32{1, 0, 0}, nil, 100)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), second)
}

func TestIngestDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	gt.NoError(t, os.WriteFile(filepath.Join(dir, "good.txt"), []byte(courseDocument), 0644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "broken.txt"), []byte("no headers at all\n"), 0644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.json"), []byte("{}"), 0644))

	idx := index.New(repository.NewMemory(), &fixedEmbedder{})
	uc := ingest.New(idx)

	// The malformed document is skipped; the rest still lands
	count, err := uc.IngestDir(ctx, dir)
	gt.NoError(t, err)
	gt.Equal(t, count, 1)
}

func TestIngestDirFatal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	gt.NoError(t, os.WriteFile(filepath.Join(dir, "good.txt"), []byte(courseDocument), 0644))

	idx := index.New(repository.NewMemory(), &fixedEmbedder{err: goerr.New("embedding backend down")})
	uc := ingest.New(idx)

	// A dead embedding service aborts the run instead of skipping every file
	_, err := uc.IngestDir(ctx, dir)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRetrievalUnavailable))
}

func TestIngestChunkingOption(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	idx := index.New(repo, &fixedEmbedder{})

	_, defaultChunks, err := ingest.New(idx).IngestReader(ctx, "mcp.txt", strings.NewReader(courseDocument))
	gt.NoError(t, err)

	_, smallChunks, err := ingest.New(idx, ingest.WithChunking(40, 10)).
		IngestReader(ctx, "mcp.txt", strings.NewReader(courseDocument))
	gt.NoError(t, err)

	gt.True(t, smallChunks > defaultChunks)
}
