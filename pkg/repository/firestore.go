package repository

import (
	"context"
	"strconv"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	catalogCollection = "catalog"
	chunkCollection   = "chunks"

	distanceField = "vector_distance"
)

type catalogDoc struct {
	Title      string             `firestore:"title"`
	NormTitle  string             `firestore:"norm_title"`
	Link       string             `firestore:"link,omitempty"`
	Instructor string             `firestore:"instructor,omitempty"`
	Lessons    []model.Lesson     `firestore:"lessons"`
	Embedding  firestore.Vector32 `firestore:"embedding"`

	Distance float64 `firestore:"vector_distance,omitempty"`
}

type chunkDoc struct {
	CourseTitle string             `firestore:"course_title"`
	NormTitle   string             `firestore:"norm_title"`
	Lesson      *int               `firestore:"lesson"`
	Index       int                `firestore:"index"`
	Seq         int                `firestore:"seq"`
	Text        string             `firestore:"text"`
	Embedding   firestore.Vector32 `firestore:"embedding"`

	Distance float64 `firestore:"vector_distance,omitempty"`
}

// Firestore implements Repository on Cloud Firestore with FindNearest
// vector queries over cosine distance.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client")
	}

	return &Firestore{client: client}, nil
}

// docID makes a title usable as a Firestore document ID.
func docID(title string) string {
	return strings.ReplaceAll(model.NormalizeTitle(title), "/", "_")
}

func (r *Firestore) PutCourse(ctx context.Context, course *model.Course, embedding []float32) error {
	if course == nil || course.Title == "" {
		return goerr.New("course title is empty")
	}

	norm := model.NormalizeTitle(course.Title)

	if err := r.deleteChunks(ctx, norm); err != nil {
		return err
	}

	doc := &catalogDoc{
		Title:      course.Title,
		NormTitle:  norm,
		Link:       course.Link,
		Instructor: course.Instructor,
		Lessons:    course.Lessons,
		Embedding:  firestore.Vector32(embedding),
	}

	if _, err := r.client.Collection(catalogCollection).Doc(docID(course.Title)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put catalog record", goerr.V("title", course.Title))
	}

	return nil
}

func (r *Firestore) deleteChunks(ctx context.Context, normTitle string) error {
	iter := r.client.Collection(chunkCollection).
		Where("norm_title", "==", normTitle).
		Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list chunks for deletion", goerr.V("title", normTitle))
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			return goerr.Wrap(err, "failed to schedule chunk deletion")
		}
	}
	bw.End()

	return nil
}

func (r *Firestore) PutChunks(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return goerr.New("chunks and embeddings length mismatch",
			goerr.V("chunks", len(chunks)), goerr.V("embeddings", len(embeddings)))
	}

	bw := r.client.BulkWriter(ctx)
	for i, chunk := range chunks {
		doc := &chunkDoc{
			CourseTitle: chunk.CourseTitle,
			NormTitle:   model.NormalizeTitle(chunk.CourseTitle),
			Lesson:      chunk.Lesson,
			Index:       chunk.Index,
			Seq:         chunk.Seq,
			Text:        chunk.Text,
			Embedding:   firestore.Vector32(embeddings[i]),
		}
		ref := r.client.Collection(chunkCollection).Doc(docID(chunk.CourseTitle) + ":" + strconv.Itoa(chunk.Seq))
		if _, err := bw.Set(ref, doc); err != nil {
			return goerr.Wrap(err, "failed to schedule chunk write", goerr.V("id", chunk.ID()))
		}
	}
	bw.End()

	return nil
}

func (r *Firestore) GetCourse(ctx context.Context, title string) (*model.Course, error) {
	snap, err := r.client.Collection(catalogCollection).Doc(docID(title)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.New("course not found", goerr.V("title", title))
		}
		return nil, goerr.Wrap(err, "failed to get catalog record", goerr.V("title", title))
	}

	var doc catalogDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode catalog record")
	}

	return doc.course(), nil
}

func (d *catalogDoc) course() *model.Course {
	return &model.Course{
		Title:      d.Title,
		Link:       d.Link,
		Instructor: d.Instructor,
		Lessons:    d.Lessons,
	}
}

func (r *Firestore) FindSimilarCourses(ctx context.Context, embedding []float32, limit int) ([]*CourseHit, error) {
	query := r.client.Collection(catalogCollection).FindNearest(
		"embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField},
	)

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search catalog")
	}

	hits := make([]*CourseHit, 0, len(snaps))
	for _, snap := range snaps {
		var doc catalogDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode catalog record")
		}
		hits = append(hits, &CourseHit{
			Course: doc.course(),
			// Cosine distance in [0,2]; similarity is its complement
			Score: 1 - doc.Distance,
		})
	}

	return hits, nil
}

func (r *Firestore) FindSimilarChunks(ctx context.Context, embedding []float32, filter *ChunkFilter, limit int) ([]*ChunkHit, error) {
	query := r.client.Collection(chunkCollection).Query
	if filter != nil && filter.CourseTitle != "" {
		query = query.Where("norm_title", "==", model.NormalizeTitle(filter.CourseTitle))
	}
	if filter != nil && filter.Lesson != nil {
		query = query.Where("lesson", "==", *filter.Lesson)
	}

	vq := query.FindNearest(
		"embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField},
	)

	snaps, err := vq.Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search chunks")
	}

	hits := make([]*ChunkHit, 0, len(snaps))
	for _, snap := range snaps {
		var doc chunkDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode chunk record")
		}
		hits = append(hits, &ChunkHit{
			Chunk: &model.Chunk{
				CourseTitle: doc.CourseTitle,
				Lesson:      doc.Lesson,
				Index:       doc.Index,
				Seq:         doc.Seq,
				Text:        doc.Text,
			},
			Score: 1 - doc.Distance,
		})
	}

	return hits, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

