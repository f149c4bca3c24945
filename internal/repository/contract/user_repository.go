package contract

import (
	"context"
	"time"

	"annotator-be/internal/entity"
	"annotator-be/internal/repository/specification"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}
