package index

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
)

const (
	// defaultResolveThreshold is the minimum cosine similarity for a
	// catalog match to count as a resolved course name. Exact titles score
	// near 1.0; unrelated queries sit well below 0.5.
	defaultResolveThreshold = 0.55

	defaultMaxResults = 5
)

// Embedder turns text into a vector. adapter.Gemini satisfies this; tests
// inject a deterministic fake.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Index maintains the two vector collections: the course catalog for fuzzy
// name resolution and the chunk content for semantic search.
type Index struct {
	repo     repository.Repository
	embedder Embedder

	resolveThreshold float64
	maxResults       int

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

type Option func(*Index)

func WithResolveThreshold(threshold float64) Option {
	return func(x *Index) {
		x.resolveThreshold = threshold
	}
}

func WithMaxResults(n int) Option {
	return func(x *Index) {
		x.maxResults = n
	}
}

func New(repo repository.Repository, embedder Embedder, opts ...Option) *Index {
	x := &Index{
		repo:             repo,
		embedder:         embedder,
		resolveThreshold: defaultResolveThreshold,
		maxResults:       defaultMaxResults,
		locks:            make(map[string]*sync.RWMutex),
	}

	for _, opt := range opts {
		opt(x)
	}

	return x
}

// courseLock returns the exclusive section for one course title. Ingestion
// holds the write side; title-filtered searches hold the read side, so a
// search never observes a half-replaced course.
func (x *Index) courseLock(title string) *sync.RWMutex {
	x.mu.Lock()
	defer x.mu.Unlock()

	norm := model.NormalizeTitle(title)
	lock, ok := x.locks[norm]
	if !ok {
		lock = &sync.RWMutex{}
		x.locks[norm] = lock
	}
	return lock
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	embedding, err := x.embedder.Embedding(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(model.ErrRetrievalUnavailable, "embedding failed", goerr.V("error", err))
	}
	return embedding, nil
}

// UpsertCourse writes or replaces the catalog record. Replacing a title
// also removes its previously stored chunks, so re-ingestion never
// accumulates duplicates.
func (x *Index) UpsertCourse(ctx context.Context, course *model.Course) error {
	embedding, err := x.embed(ctx, course.CatalogText())
	if err != nil {
		return err
	}

	lock := x.courseLock(course.Title)
	lock.Lock()
	defer lock.Unlock()

	if err := x.repo.PutCourse(ctx, course, embedding); err != nil {
		return goerr.Wrap(model.ErrRetrievalUnavailable, "failed to store catalog record", goerr.V("error", err))
	}

	return nil
}

// UpsertChunks writes content records in bulk, grouped by course so each
// course's exclusive section is held only while its own chunks are written.
func (x *Index) UpsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	byCourse := make(map[string][]*model.Chunk)
	var order []string
	for _, chunk := range chunks {
		norm := model.NormalizeTitle(chunk.CourseTitle)
		if _, ok := byCourse[norm]; !ok {
			order = append(order, norm)
		}
		byCourse[norm] = append(byCourse[norm], chunk)
	}

	for _, norm := range order {
		group := byCourse[norm]

		embeddings := make([][]float32, len(group))
		for i, chunk := range group {
			embedding, err := x.embed(ctx, chunk.Text)
			if err != nil {
				return err
			}
			embeddings[i] = embedding
		}

		lock := x.courseLock(group[0].CourseTitle)
		lock.Lock()
		err := x.repo.PutChunks(ctx, group, embeddings)
		lock.Unlock()
		if err != nil {
			return goerr.Wrap(model.ErrRetrievalUnavailable, "failed to store chunks", goerr.V("error", err))
		}
	}

	return nil
}

// ReplaceCourse supersedes a course and its chunks in one exclusive
// section. All embeddings are computed before the lock is taken, so a
// concurrent search for the title sees either the previous ingestion or
// the new one, never the gap between deletion and re-insertion.
func (x *Index) ReplaceCourse(ctx context.Context, course *model.Course, chunks []*model.Chunk) error {
	catalogEmbedding, err := x.embed(ctx, course.CatalogText())
	if err != nil {
		return err
	}

	embeddings := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		if embeddings[i], err = x.embed(ctx, chunk.Text); err != nil {
			return err
		}
	}

	lock := x.courseLock(course.Title)
	lock.Lock()
	defer lock.Unlock()

	if err := x.repo.PutCourse(ctx, course, catalogEmbedding); err != nil {
		return goerr.Wrap(model.ErrRetrievalUnavailable, "failed to store catalog record", goerr.V("error", err))
	}
	if err := x.repo.PutChunks(ctx, chunks, embeddings); err != nil {
		return goerr.Wrap(model.ErrRetrievalUnavailable, "failed to store chunks", goerr.V("error", err))
	}

	return nil
}

// ResolveCourseTitle maps a user-typed course reference to a canonical
// title via the catalog collection. A miss is not an error: ok is false
// when no catalog entry clears the similarity threshold.
func (x *Index) ResolveCourseTitle(ctx context.Context, query string) (string, bool, error) {
	embedding, err := x.embed(ctx, query)
	if err != nil {
		return "", false, err
	}

	hits, err := x.repo.FindSimilarCourses(ctx, embedding, 1)
	if err != nil {
		return "", false, goerr.Wrap(model.ErrRetrievalUnavailable, "catalog search failed", goerr.V("error", err))
	}

	if len(hits) == 0 || hits[0].Score < x.resolveThreshold {
		logging.From(ctx).Debug("course name not resolved",
			"query", query, "candidates", len(hits))
		return "", false, nil
	}

	return hits[0].Course.Title, true, nil
}

// Hit is one retrieved chunk with its provenance and lesson link.
type Hit struct {
	Chunk *model.Chunk
	Score float64
	Link  string
}

// Result is the outcome of one content search.
type Result struct {
	// ResolvedCourse is the canonical title the search was filtered to,
	// empty when unfiltered.
	ResolvedCourse string
	Hits           []*Hit
}

// Search embeds the query and returns up to limit chunks ordered by
// descending similarity; equal scores keep their original ingestion order.
// courseTitle must already be canonical (see ResolveCourseTitle).
func (x *Index) Search(ctx context.Context, query string, courseTitle string, lesson *int, limit int) (*Result, error) {
	if limit <= 0 {
		limit = x.maxResults
	}

	embedding, err := x.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	filter := &repository.ChunkFilter{
		CourseTitle: courseTitle,
		Lesson:      lesson,
	}

	var hits []*repository.ChunkHit
	if courseTitle != "" {
		lock := x.courseLock(courseTitle)
		lock.RLock()
		hits, err = x.repo.FindSimilarChunks(ctx, embedding, filter, limit)
		lock.RUnlock()
	} else {
		hits, err = x.repo.FindSimilarChunks(ctx, embedding, filter, limit)
	}
	if err != nil {
		return nil, goerr.Wrap(model.ErrRetrievalUnavailable, "content search failed", goerr.V("error", err))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Seq < hits[j].Chunk.Seq
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	result := &Result{ResolvedCourse: courseTitle}
	links := x.lessonLinks(ctx, hits)
	for _, hit := range hits {
		h := &Hit{Chunk: hit.Chunk, Score: hit.Score}
		if hit.Chunk.Lesson != nil {
			h.Link = links[linkKey(hit.Chunk.CourseTitle, *hit.Chunk.Lesson)]
		}
		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// GetCourse returns the catalog record for a canonical title.
func (x *Index) GetCourse(ctx context.Context, title string) (*model.Course, error) {
	course, err := x.repo.GetCourse(ctx, title)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load course", goerr.V("title", title))
	}
	return course, nil
}

func linkKey(title string, lesson int) string {
	return model.NormalizeTitle(title) + "|" + strconv.Itoa(lesson)
}

// lessonLinks resolves lesson source links for the courses appearing in
// hits. Lookup failures only cost the link, not the search.
func (x *Index) lessonLinks(ctx context.Context, hits []*repository.ChunkHit) map[string]string {
	links := make(map[string]string)
	seen := make(map[string]bool)

	for _, hit := range hits {
		norm := model.NormalizeTitle(hit.Chunk.CourseTitle)
		if seen[norm] {
			continue
		}
		seen[norm] = true

		course, err := x.repo.GetCourse(ctx, hit.Chunk.CourseTitle)
		if err != nil {
			logging.From(ctx).Warn("failed to load course for lesson links",
				"title", hit.Chunk.CourseTitle, "error", err)
			continue
		}
		for _, lesson := range course.Lessons {
			links[linkKey(course.Title, lesson.Number)] = lesson.Link
		}
	}

	return links
}
