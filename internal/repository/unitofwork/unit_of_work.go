package unitofwork

import (
	"context"

	"curiow-be/internal/repository/contract"
)

// RepositoryFactory hands out a unit of work bound to the caller's context.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

type UnitOfWork interface {
	// Transaction runs fn against a unit of work whose repositories share one
	// database transaction. It commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx UnitOfWork) error) error

	DeepChatSessionRepository() contract.DeepChatSessionRepository
	DeepChatHistoryRepository() contract.DeepChatHistoryRepository
}
