package repository

import (
	"context"

	"github.com/m-mizutani/lectern/pkg/model"
)

// ChunkFilter restricts a content search to one course and/or lesson.
// An empty CourseTitle matches all courses; a nil Lesson matches all lessons.
type ChunkFilter struct {
	CourseTitle string
	Lesson      *int
}

// CourseHit is a catalog record matched by vector search.
type CourseHit struct {
	Course *model.Course
	Score  float64
}

// ChunkHit is a content record matched by vector search.
type ChunkHit struct {
	Chunk *model.Chunk
	Score float64
}

// Repository persists the two vector collections: one catalog record per
// course and one content record per chunk. Searches are safe to run
// concurrently; writes for one course must not interleave with reads of the
// same course (the index layer holds a per-course exclusive section).
type Repository interface {
	// PutCourse writes or replaces the catalog record for course.Title and
	// removes all chunks previously stored under the same title.
	PutCourse(ctx context.Context, course *model.Course, embedding []float32) error

	// PutChunks writes content records in bulk. Chunks and embeddings are
	// parallel slices.
	PutChunks(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error

	// GetCourse retrieves a catalog record by its canonical title.
	GetCourse(ctx context.Context, title string) (*model.Course, error)

	// FindSimilarCourses returns up to limit catalog records ordered by
	// descending similarity to the embedding.
	FindSimilarCourses(ctx context.Context, embedding []float32, limit int) ([]*CourseHit, error)

	// FindSimilarChunks returns up to limit content records matching the
	// filter, ordered by descending similarity to the embedding.
	FindSimilarChunks(ctx context.Context, embedding []float32, filter *ChunkFilter, limit int) ([]*ChunkHit, error)

	// Close releases backend connections.
	Close() error
}
