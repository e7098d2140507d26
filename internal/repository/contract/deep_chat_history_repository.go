package contract

import (
	"context"

	"curiow-be/internal/entity"
	"curiow-be/internal/repository/specification"
)

type DeepChatHistoryRepository interface {
	Create(ctx context.Context, history *entity.DeepChatHistory) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeepChatHistory, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeepChatHistory, error)
	DeleteBySessionId(ctx context.Context, sessionId string) error
}
