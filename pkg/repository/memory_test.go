package repository_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/repository"
)

func chunk(title string, lesson *int, seq int, text string) *model.Chunk {
	return &model.Chunk{CourseTitle: title, Lesson: lesson, Seq: seq, Text: text}
}

func TestMemoryCourseRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	course := &model.Course{Title: "Intro to MCP", Instructor: "Elena Vasquez"}
	gt.NoError(t, repo.PutCourse(ctx, course, []float32{1, 0}))

	got, err := repo.GetCourse(ctx, "intro to mcp")
	gt.NoError(t, err)
	gt.Equal(t, got.Title, "Intro to MCP")
	gt.Equal(t, got.Instructor, "Elena Vasquez")

	_, err = repo.GetCourse(ctx, "unknown course")
	gt.Error(t, err)
}

func TestMemoryReingestReplacesChunks(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	course := &model.Course{Title: "Intro to MCP"}
	gt.NoError(t, repo.PutCourse(ctx, course, []float32{1, 0}))
	gt.NoError(t, repo.PutChunks(ctx,
		[]*model.Chunk{chunk("Intro to MCP", nil, 0, "old text")},
		[][]float32{{1, 0}}))

	// Re-ingesting the same title drops the superseded chunks
	gt.NoError(t, repo.PutCourse(ctx, course, []float32{1, 0}))
	gt.NoError(t, repo.PutChunks(ctx,
		[]*model.Chunk{chunk("Intro to MCP", nil, 0, "new text")},
		[][]float32{{1, 0}}))

	hits, err := repo.FindSimilarChunks(ctx, []float32{1, 0}, nil, 10)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 1)
	gt.Equal(t, hits[0].Chunk.Text, "new text")
}

func TestMemoryFindSimilarCourses(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	gt.NoError(t, repo.PutCourse(ctx, &model.Course{Title: "Intro to MCP"}, []float32{1, 0}))
	gt.NoError(t, repo.PutCourse(ctx, &model.Course{Title: "Advanced RAG"}, []float32{0, 1}))

	hits, err := repo.FindSimilarCourses(ctx, []float32{0.9, 0.1}, 2)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 2)
	gt.Equal(t, hits[0].Course.Title, "Intro to MCP")
	gt.True(t, hits[0].Score > hits[1].Score)

	hits, err = repo.FindSimilarCourses(ctx, []float32{0.9, 0.1}, 1)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 1)
}

func TestMemoryFindSimilarChunksFilter(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	lesson1, lesson2 := 1, 2
	chunks := []*model.Chunk{
		chunk("Intro to MCP", &lesson1, 0, "servers"),
		chunk("Intro to MCP", &lesson2, 1, "clients"),
		chunk("Advanced RAG", &lesson1, 0, "retrieval"),
	}
	embeddings := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	gt.NoError(t, repo.PutChunks(ctx, chunks, embeddings))

	hits, err := repo.FindSimilarChunks(ctx, []float32{1, 0},
		&repository.ChunkFilter{CourseTitle: "intro to MCP"}, 10)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 2)

	hits, err = repo.FindSimilarChunks(ctx, []float32{1, 0},
		&repository.ChunkFilter{CourseTitle: "Intro to MCP", Lesson: &lesson2}, 10)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 1)
	gt.Equal(t, hits[0].Chunk.Text, "clients")

	missing := 9
	hits, err = repo.FindSimilarChunks(ctx, []float32{1, 0},
		&repository.ChunkFilter{Lesson: &missing}, 10)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 0)
}

func TestMemoryFindSimilarChunksTieOrder(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	chunks := []*model.Chunk{
		chunk("Intro to MCP", nil, 0, "first"),
		chunk("Intro to MCP", nil, 1, "second"),
		chunk("Intro to MCP", nil, 2, "third"),
	}
	// Identical embeddings force equal scores
	embeddings := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	gt.NoError(t, repo.PutChunks(ctx, chunks, embeddings))

	hits, err := repo.FindSimilarChunks(ctx, []float32{1, 0}, nil, 10)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 3)
	gt.Equal(t, hits[0].Chunk.Text, "first")
	gt.Equal(t, hits[1].Chunk.Text, "second")
	gt.Equal(t, hits[2].Chunk.Text, "third")
}

func TestMemoryPutChunksMismatch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	err := repo.PutChunks(ctx,
		[]*model.Chunk{chunk("Intro to MCP", nil, 0, "text")},
		nil)
	gt.Error(t, err)
}
