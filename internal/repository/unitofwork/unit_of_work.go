package unitofwork

import (
	"context"

	"annotator-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	AnnotationSubmissionRepository() contract.AnnotationSubmissionRepository
}
