package implementation

import (
	"context"

	"annotator-be/internal/entity"
	"annotator-be/internal/mapper"
	"annotator-be/internal/model"
	"annotator-be/internal/repository/contract"
	"annotator-be/internal/repository/scope"
	"annotator-be/internal/repository/specification"

	"gorm.io/gorm"
)

type AnnotationSubmissionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AnnotationSubmissionMapper
}

func NewAnnotationSubmissionRepository(db *gorm.DB) contract.AnnotationSubmissionRepository {
	return &AnnotationSubmissionRepositoryImpl{
		db:     db,
		mapper: mapper.NewAnnotationSubmissionMapper(),
	}
}

func (r *AnnotationSubmissionRepositoryImpl) Create(ctx context.Context, submission *entity.AnnotationSubmission) error {
	m, err := r.mapper.ToModel(submission)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	submission.Id = m.Id
	submission.CreatedAt = m.CreatedAt
	return nil
}

// FindAll returns matching submissions, newest first.
func (r *AnnotationSubmissionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnnotationSubmission, error) {
	var rows []*model.AnnotationSubmission
	query := applySpecifications(r.db.WithContext(ctx).Scopes(scope.NewestFirst), specs...)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows)
}

func (r *AnnotationSubmissionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.AnnotationSubmission{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
