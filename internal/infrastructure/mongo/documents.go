package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

// SubmissionDocument は MongoDB 上での問い合わせスキーマを Go 構造体として表現したもの。
type SubmissionDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	Phone       string             `bson:"phone"`
	Message     string             `bson:"message"`
	SubmittedAt time.Time          `bson:"submittedAt"`
}

func newSubmissionDocument(id primitive.ObjectID, s *domain.Submission) SubmissionDocument {
	return SubmissionDocument{
		ID:          id,
		Name:        s.Name,
		Email:       s.Email,
		Phone:       s.Phone,
		Message:     s.Message,
		SubmittedAt: s.SubmittedAt.UTC(),
	}
}

func mapSubmissionDocument(doc SubmissionDocument) domain.Submission {
	return domain.Submission{
		ID:          doc.ID.Hex(),
		Name:        doc.Name,
		Email:       doc.Email,
		Phone:       doc.Phone,
		Message:     doc.Message,
		SubmittedAt: doc.SubmittedAt.UTC(),
	}
}
