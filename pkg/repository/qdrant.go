package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/qdrant/go-client/qdrant"
)

const (
	qdrantCatalog = "lectern_catalog"
	qdrantChunks  = "lectern_chunks"
)

// pointNamespace makes point IDs deterministic, so re-ingestion replaces
// rather than duplicates.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Qdrant implements Repository on a Qdrant server. Collections are created
// lazily on first write, sized to the first embedding seen.
type Qdrant struct {
	client *qdrant.Client

	mu      sync.Mutex
	created map[string]bool
}

func NewQdrant(host string, port int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant client")
	}

	return &Qdrant{
		client:  client,
		created: make(map[string]bool),
	}, nil
}

func (r *Qdrant) ensureCollection(ctx context.Context, name string, dim int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.created[name] {
		return nil
	}

	exists, err := r.client.CollectionExists(ctx, name)
	if err != nil {
		return goerr.Wrap(err, "failed to check collection", goerr.V("collection", name))
	}
	if !exists {
		if err := r.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(dim),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		}); err != nil {
			return goerr.Wrap(err, "failed to create collection", goerr.V("collection", name))
		}
	}
	r.created[name] = true

	return nil
}

func pointID(key string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(key)).String())
}

func titleFilter(normTitle string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("norm_title", normTitle)},
	}
}

func (r *Qdrant) PutCourse(ctx context.Context, course *model.Course, embedding []float32) error {
	if course == nil || course.Title == "" {
		return goerr.New("course title is empty")
	}
	if err := r.ensureCollection(ctx, qdrantCatalog, len(embedding)); err != nil {
		return err
	}

	norm := model.NormalizeTitle(course.Title)

	// Remove chunks of the superseded ingestion, if the collection exists
	if exists, err := r.client.CollectionExists(ctx, qdrantChunks); err == nil && exists {
		if _, err := r.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: qdrantChunks,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: titleFilter(norm)},
			},
		}); err != nil {
			return goerr.Wrap(err, "failed to delete superseded chunks", goerr.V("title", course.Title))
		}
	}

	lessons := make([]any, 0, len(course.Lessons))
	for _, lesson := range course.Lessons {
		lessons = append(lessons, map[string]any{
			"number": int64(lesson.Number),
			"title":  lesson.Title,
			"link":   lesson.Link,
		})
	}

	point := &qdrant.PointStruct{
		Id:      pointID(norm),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			"title":      course.Title,
			"norm_title": norm,
			"link":       course.Link,
			"instructor": course.Instructor,
			"lessons":    lessons,
		}),
	}

	if _, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qdrantCatalog,
		Points:         []*qdrant.PointStruct{point},
	}); err != nil {
		return goerr.Wrap(err, "failed to upsert catalog record", goerr.V("title", course.Title))
	}

	return nil
}

func (r *Qdrant) PutChunks(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return goerr.New("chunks and embeddings length mismatch",
			goerr.V("chunks", len(chunks)), goerr.V("embeddings", len(embeddings)))
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := r.ensureCollection(ctx, qdrantChunks, len(embeddings[0])); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]any{
			"course_title": chunk.CourseTitle,
			"norm_title":   model.NormalizeTitle(chunk.CourseTitle),
			"index":        int64(chunk.Index),
			"seq":          int64(chunk.Seq),
			"text":         chunk.Text,
		}
		if chunk.Lesson != nil {
			payload["lesson"] = int64(*chunk.Lesson)
		}

		points[i] = &qdrant.PointStruct{
			Id:      pointID(chunk.ID()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	if _, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qdrantChunks,
		Points:         points,
	}); err != nil {
		return goerr.Wrap(err, "failed to upsert chunks", goerr.V("count", len(chunks)))
	}

	return nil
}

func (r *Qdrant) GetCourse(ctx context.Context, title string) (*model.Course, error) {
	points, err := r.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: qdrantCatalog,
		Ids:            []*qdrant.PointId{pointID(model.NormalizeTitle(title))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get catalog record", goerr.V("title", title))
	}
	if len(points) == 0 {
		return nil, goerr.New("course not found", goerr.V("title", title))
	}

	return courseFromPayload(points[0].Payload), nil
}

func courseFromPayload(payload map[string]*qdrant.Value) *model.Course {
	course := &model.Course{
		Title:      payload["title"].GetStringValue(),
		Link:       payload["link"].GetStringValue(),
		Instructor: payload["instructor"].GetStringValue(),
	}

	for _, entry := range payload["lessons"].GetListValue().GetValues() {
		fields := entry.GetStructValue().GetFields()
		course.Lessons = append(course.Lessons, model.Lesson{
			Number: int(fields["number"].GetIntegerValue()),
			Title:  fields["title"].GetStringValue(),
			Link:   fields["link"].GetStringValue(),
		})
	}

	return course
}

func (r *Qdrant) FindSimilarCourses(ctx context.Context, embedding []float32, limit int) ([]*CourseHit, error) {
	lim := uint64(limit)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qdrantCatalog,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search catalog")
	}

	hits := make([]*CourseHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, &CourseHit{
			Course: courseFromPayload(point.Payload),
			Score:  float64(point.Score),
		})
	}

	return hits, nil
}

func (r *Qdrant) FindSimilarChunks(ctx context.Context, embedding []float32, filter *ChunkFilter, limit int) ([]*ChunkHit, error) {
	var conditions []*qdrant.Condition
	if filter != nil && filter.CourseTitle != "" {
		conditions = append(conditions, qdrant.NewMatch("norm_title", model.NormalizeTitle(filter.CourseTitle)))
	}
	if filter != nil && filter.Lesson != nil {
		conditions = append(conditions, qdrant.NewMatchInt("lesson", int64(*filter.Lesson)))
	}

	var qf *qdrant.Filter
	if len(conditions) > 0 {
		qf = &qdrant.Filter{Must: conditions}
	}

	lim := uint64(limit)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qdrantChunks,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         qf,
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search chunks")
	}

	hits := make([]*ChunkHit, 0, len(points))
	for _, point := range points {
		payload := point.Payload
		chunk := &model.Chunk{
			CourseTitle: payload["course_title"].GetStringValue(),
			Index:       int(payload["index"].GetIntegerValue()),
			Seq:         int(payload["seq"].GetIntegerValue()),
			Text:        payload["text"].GetStringValue(),
		}
		if lessonVal, ok := payload["lesson"]; ok {
			lesson := int(lessonVal.GetIntegerValue())
			chunk.Lesson = &lesson
		}

		hits = append(hits, &ChunkHit{Chunk: chunk, Score: float64(point.Score)})
	}

	return hits, nil
}

func (r *Qdrant) Close() error {
	return r.client.Close()
}
