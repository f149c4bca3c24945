package mapper

import (
	"encoding/json"

	"annotator-be/internal/entity"
	"annotator-be/internal/model"

	"gorm.io/datatypes"
)

type AnnotationSubmissionMapper struct{}

func NewAnnotationSubmissionMapper() *AnnotationSubmissionMapper {
	return &AnnotationSubmissionMapper{}
}

func (m *AnnotationSubmissionMapper) ToModel(s *entity.AnnotationSubmission) (*model.AnnotationSubmission, error) {
	if s == nil {
		return nil, nil
	}
	annotations := s.Annotations
	if annotations == nil {
		annotations = []entity.SubmittedAnnotation{}
	}
	raw, err := json.Marshal(annotations)
	if err != nil {
		return nil, err
	}
	return &model.AnnotationSubmission{
		Id:          s.Id,
		UserEmail:   s.UserEmail,
		SessionId:   s.SessionId,
		Annotations: datatypes.JSON(raw),
		Count:       len(annotations),
		CreatedAt:   s.CreatedAt,
	}, nil
}

func (m *AnnotationSubmissionMapper) ToEntity(s *model.AnnotationSubmission) (*entity.AnnotationSubmission, error) {
	if s == nil {
		return nil, nil
	}
	var annotations []entity.SubmittedAnnotation
	if len(s.Annotations) > 0 {
		if err := json.Unmarshal(s.Annotations, &annotations); err != nil {
			return nil, err
		}
	}
	return &entity.AnnotationSubmission{
		Id:          s.Id,
		UserEmail:   s.UserEmail,
		SessionId:   s.SessionId,
		Annotations: annotations,
		CreatedAt:   s.CreatedAt,
	}, nil
}

func (m *AnnotationSubmissionMapper) ToEntities(items []*model.AnnotationSubmission) ([]*entity.AnnotationSubmission, error) {
	out := make([]*entity.AnnotationSubmission, 0, len(items))
	for _, item := range items {
		e, err := m.ToEntity(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
