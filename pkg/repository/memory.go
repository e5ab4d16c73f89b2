package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
)

type memoryCourse struct {
	course    *model.Course
	embedding []float32
	order     int
}

type memoryChunk struct {
	chunk     *model.Chunk
	embedding []float32
	order     int
}

// Memory is an in-process Repository using brute-force cosine similarity.
// Used for tests and for running without an external vector service.
type Memory struct {
	mu      sync.RWMutex
	catalog map[string]*memoryCourse
	chunks  []*memoryChunk
	order   int
}

func NewMemory() *Memory {
	return &Memory{
		catalog: make(map[string]*memoryCourse),
	}
}

func (m *Memory) PutCourse(ctx context.Context, course *model.Course, embedding []float32) error {
	if course == nil || course.Title == "" {
		return goerr.New("course title is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	norm := model.NormalizeTitle(course.Title)

	// Drop all chunks of the superseded ingestion
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if model.NormalizeTitle(c.chunk.CourseTitle) != norm {
			kept = append(kept, c)
		}
	}
	m.chunks = kept

	order := m.order
	if prev, ok := m.catalog[norm]; ok {
		order = prev.order
	} else {
		m.order++
	}
	m.catalog[norm] = &memoryCourse{course: course, embedding: embedding, order: order}

	return nil
}

func (m *Memory) PutChunks(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return goerr.New("chunks and embeddings length mismatch",
			goerr.V("chunks", len(chunks)), goerr.V("embeddings", len(embeddings)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range chunks {
		m.chunks = append(m.chunks, &memoryChunk{
			chunk:     chunks[i],
			embedding: embeddings[i],
			order:     m.order,
		})
		m.order++
	}

	return nil
}

func (m *Memory) GetCourse(ctx context.Context, title string) (*model.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.catalog[model.NormalizeTitle(title)]
	if !ok {
		return nil, goerr.New("course not found", goerr.V("title", title))
	}
	return entry.course, nil
}

func (m *Memory) FindSimilarCourses(ctx context.Context, embedding []float32, limit int) ([]*CourseHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*memoryCourse, 0, len(m.catalog))
	for _, entry := range m.catalog {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	hits := make([]*CourseHit, 0, len(entries))
	for _, entry := range entries {
		hits = append(hits, &CourseHit{
			Course: entry.course,
			Score:  cosine(entry.embedding, embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *Memory) FindSimilarChunks(ctx context.Context, embedding []float32, filter *ChunkFilter, limit int) ([]*ChunkHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []*ChunkHit
	for _, entry := range m.chunks {
		if !matchChunk(entry.chunk, filter) {
			continue
		}
		hits = append(hits, &ChunkHit{
			Chunk: entry.chunk,
			Score: cosine(entry.embedding, embedding),
		})
	}

	// Entries are held in ingestion order, so the stable sort preserves it
	// between equal scores.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *Memory) Close() error {
	return nil
}

func matchChunk(chunk *model.Chunk, filter *ChunkFilter) bool {
	if filter == nil {
		return true
	}
	if filter.CourseTitle != "" &&
		model.NormalizeTitle(chunk.CourseTitle) != model.NormalizeTitle(filter.CourseTitle) {
		return false
	}
	if filter.Lesson != nil {
		if chunk.Lesson == nil || *chunk.Lesson != *filter.Lesson {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
