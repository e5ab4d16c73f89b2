package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/index"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
)

var documentExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// UseCase turns course documents into catalog records and chunks.
type UseCase struct {
	index   *index.Index
	chunker *Chunker
}

type Option func(*UseCase)

// WithChunking overrides the chunk window and overlap sizes.
func WithChunking(size, overlap int) Option {
	return func(u *UseCase) {
		u.chunker = NewChunker(size, overlap)
	}
}

func New(idx *index.Index, opts ...Option) *UseCase {
	u := &UseCase{
		index:   idx,
		chunker: NewChunker(defaultChunkSize, defaultChunkOverlap),
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// IngestReader parses one course document and stores its catalog record
// and chunks. name is only used for logging.
func (u *UseCase) IngestReader(ctx context.Context, name string, r io.Reader) (*model.Course, int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to read document", goerr.V("name", name))
	}

	course, body, err := ParseCourseDocument(string(raw))
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to parse document", goerr.V("name", name))
	}

	chunks := u.chunker.Build(body, course.Title, course.Lessons)

	if err := u.index.ReplaceCourse(ctx, course, chunks); err != nil {
		return nil, 0, err
	}

	logging.From(ctx).Info("ingested course",
		"title", course.Title,
		"lessons", len(course.Lessons),
		"chunks", len(chunks))

	return course, len(chunks), nil
}

// IngestFile ingests a single local document.
func (u *UseCase) IngestFile(ctx context.Context, path string) (*model.Course, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to open document", goerr.V("path", path))
	}
	defer f.Close()

	return u.IngestReader(ctx, filepath.Base(path), f)
}

// IngestDir ingests every course document in dir. A malformed document is
// logged and skipped; the rest of the directory is still ingested. Returns
// the number of courses stored.
func (u *UseCase) IngestDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read document directory", goerr.V("dir", dir))
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !documentExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if _, _, err := u.IngestFile(ctx, path); err != nil {
			if errorsIsFatal(err) {
				return count, err
			}
			logging.From(ctx).Warn("skipping document", "path", path, "error", err)
			continue
		}
		count++
	}

	return count, nil
}

// IngestBucket ingests every course document under prefix in the bucket.
// Skips malformed documents the same way IngestDir does.
func (u *UseCase) IngestBucket(ctx context.Context, storage adapter.Storage, prefix string) (int, error) {
	keys, err := storage.List(ctx, prefix)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list bucket documents", goerr.V("prefix", prefix))
	}

	count := 0
	for _, key := range keys {
		if !documentExtensions[strings.ToLower(filepath.Ext(key))] {
			continue
		}

		r, err := storage.Get(ctx, key)
		if err != nil {
			logging.From(ctx).Warn("skipping object", "key", key, "error", err)
			continue
		}

		_, _, err = u.IngestReader(ctx, key, r)
		r.Close()
		if err != nil {
			if errorsIsFatal(err) {
				return count, err
			}
			logging.From(ctx).Warn("skipping object", "key", key, "error", err)
			continue
		}
		count++
	}

	return count, nil
}

// errorsIsFatal reports whether ingestion of the remaining documents is
// pointless. Per-document parse failures are contained; a dead backend or
// embedding service is not.
func errorsIsFatal(err error) bool {
	return errors.Is(err, model.ErrRetrievalUnavailable)
}
