package contract

import (
	"context"
	"time"

	"curiow-be/internal/entity"
	"curiow-be/internal/repository/specification"
)

type DeepChatSessionRepository interface {
	Create(ctx context.Context, session *entity.DeepChatSession) error
	Touch(ctx context.Context, id, userID string, at time.Time) error
	UpdateTitle(ctx context.Context, id, userID, title string) error
	Delete(ctx context.Context, id string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeepChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeepChatSession, error)
}
