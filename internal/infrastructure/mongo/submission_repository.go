package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

// SubmissionRepository implements application.SubmissionRepository using MongoDB.
type SubmissionRepository struct {
	collection *mongo.Collection
}

// NewSubmissionRepository creates a new Mongo-backed submission repository.
func NewSubmissionRepository(db *mongo.Database, collectionName string) *SubmissionRepository {
	return &SubmissionRepository{collection: db.Collection(collectionName)}
}

// EnsureIndexes creates the submittedAt index used for newest-first listing.
func (r *SubmissionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "submittedAt", Value: -1}},
		Options: options.Index().SetName("submittedAt_desc"),
	})
	return err
}

// Create inserts one document and assigns the generated ObjectID to the submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	// BSON dates carry millisecond precision.
	submission.SubmittedAt = ceilTime(submission.SubmittedAt.UTC(), time.Millisecond)

	doc := newSubmissionDocument(primitive.NewObjectID(), submission)
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	submission.ID = doc.ID.Hex()
	return nil
}

// FindByID returns a single submission by its identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*domain.Submission, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var doc SubmissionDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	submission := mapSubmissionDocument(doc)
	return &submission, nil
}

// Ping runs the ping command against the submission database.
func (r *SubmissionRepository) Ping(ctx context.Context) error {
	return r.collection.Database().RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

// ceilTime rounds t up to unit so a stored time never precedes the original.
func ceilTime(t time.Time, unit time.Duration) time.Time {
	truncated := t.Truncate(unit)
	if truncated.Before(t) {
		return truncated.Add(unit)
	}
	return truncated
}
