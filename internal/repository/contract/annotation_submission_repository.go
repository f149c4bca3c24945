package contract

import (
	"context"

	"annotator-be/internal/entity"
	"annotator-be/internal/repository/specification"
)

type AnnotationSubmissionRepository interface {
	Create(ctx context.Context, submission *entity.AnnotationSubmission) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnnotationSubmission, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
