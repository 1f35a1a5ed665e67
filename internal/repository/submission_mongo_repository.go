package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// submissionDocument is the stored shape of a submission in MongoDB.
type submissionDocument struct {
	ID          string             `bson:"_id"`
	UserID      int                `bson:"user_id"`
	Username    string             `bson:"username"`
	ExamKey     string             `bson:"exam_id"`
	Answers     bson.M             `bson:"answers"`
	Scores      map[string]float64 `bson:"scores"`
	Total       float64            `bson:"total"`
	SubmittedAt time.Time          `bson:"submitted_at"`
}

// SubmissionMongoRepository persists graded submissions in a MongoDB
// collection guarded by a unique (user_id, exam_id) index.
type SubmissionMongoRepository struct {
	collection *mongo.Collection
}

// NewSubmissionMongoRepository creates the repository and ensures its
// unique index exists.
func NewSubmissionMongoRepository(ctx context.Context, db *mongo.Database) (*SubmissionMongoRepository, error) {
	coll := db.Collection("submissions")
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "exam_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_exam_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure submission index: %w", err)
	}
	return &SubmissionMongoRepository{collection: coll}, nil
}

// Create inserts s unless the user already submitted the exam.
func (r *SubmissionMongoRepository) Create(ctx context.Context, s *model.Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.SubmittedAt = time.Now().UTC()

	doc := submissionDocument{
		ID:          s.ID.String(),
		UserID:      s.UserID,
		Username:    s.Username,
		ExamKey:     s.ExamKey,
		Answers:     bson.M(s.Answers),
		Scores:      s.Report.Scores,
		Total:       s.Report.Total,
		SubmittedAt: s.SubmittedAt,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadySubmitted
		}
		return err
	}
	return nil
}

// Get returns the submission of a user for an exam.
func (r *SubmissionMongoRepository) Get(ctx context.Context, userID int, examKey string) (*model.Submission, error) {
	var doc submissionDocument
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "exam_id": examKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

// ListByUser returns every submission of a user, keyed by exam.
func (r *SubmissionMongoRepository) ListByUser(ctx context.Context, userID int) (map[string]*model.Submission, error) {
	cur, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]*model.Submission)
	for cur.Next(ctx) {
		var doc submissionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		s, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out[s.ExamKey] = s
	}
	return out, cur.Err()
}

// ListByExam returns one page of an exam's submissions ordered by username.
func (r *SubmissionMongoRepository) ListByExam(ctx context.Context, examKey string, limit, offset int) ([]model.Submission, int, error) {
	filter := bson.M{"exam_id": examKey}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit)).SetSkip(int64(offset))
	}
	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var subs []model.Submission
	for cur.Next(ctx) {
		var doc submissionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, err
		}
		s, err := doc.toModel()
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, *s)
	}
	return subs, int(total), cur.Err()
}

// Delete removes a submission so the user may sit the exam again.
func (r *SubmissionMongoRepository) Delete(ctx context.Context, userID int, examKey string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "exam_id": examKey})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func (d *submissionDocument) toModel() (*model.Submission, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("stored submission id: %w", err)
	}
	answers, err := answersFromBSON(d.Answers)
	if err != nil {
		return nil, err
	}
	scores := d.Scores
	if scores == nil {
		scores = map[string]float64{}
	}
	return &model.Submission{
		ID:          id,
		UserID:      d.UserID,
		Username:    d.Username,
		ExamKey:     d.ExamKey,
		Answers:     answers,
		Report:      grading.Report{Scores: scores, Total: d.Total},
		SubmittedAt: d.SubmittedAt,
	}, nil
}

// answersFromBSON round-trips stored answers through extended JSON so nested
// documents and arrays come back as plain maps and slices.
func answersFromBSON(m bson.M) (grading.RawAnswers, error) {
	if len(m) == 0 {
		return grading.RawAnswers{}, nil
	}
	raw, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode stored answers: %w", err)
	}
	return grading.DecodeAnswers(raw)
}
