package unitofwork

import (
	"context"
	"errors"

	"curiow-be/internal/repository/contract"
	"curiow-be/internal/repository/implementation"

	"gorm.io/gorm"
)

var ErrNestedTransaction = errors.New("unit of work is already inside a transaction")

type gormFactory struct {
	db *gorm.DB
}

func NewRepositoryFactory(db *gorm.DB) RepositoryFactory {
	return &gormFactory{db: db}
}

func (f *gormFactory) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return &gormUnitOfWork{db: f.db.WithContext(ctx)}
}

type gormUnitOfWork struct {
	db   *gorm.DB
	inTx bool
}

func (u *gormUnitOfWork) Transaction(ctx context.Context, fn func(tx UnitOfWork) error) error {
	if u.inTx {
		return ErrNestedTransaction
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormUnitOfWork{db: tx, inTx: true})
	})
}

func (u *gormUnitOfWork) DeepChatSessionRepository() contract.DeepChatSessionRepository {
	return implementation.NewDeepChatSessionRepository(u.db)
}

func (u *gormUnitOfWork) DeepChatHistoryRepository() contract.DeepChatHistoryRepository {
	return implementation.NewDeepChatHistoryRepository(u.db)
}
