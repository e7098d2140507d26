package implementation

import (
	"context"
	"errors"

	"curiow-be/internal/entity"
	"curiow-be/internal/mapper"
	"curiow-be/internal/model"
	"curiow-be/internal/repository/contract"
	"curiow-be/internal/repository/specification"

	"gorm.io/gorm"
)

type DeepChatHistoryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DeepChatMapper
}

func NewDeepChatHistoryRepository(db *gorm.DB) contract.DeepChatHistoryRepository {
	return &DeepChatHistoryRepositoryImpl{
		db:     db,
		mapper: mapper.NewDeepChatMapper(),
	}
}

func (r *DeepChatHistoryRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DeepChatHistoryRepositoryImpl) Create(ctx context.Context, history *entity.DeepChatHistory) error {
	m := r.mapper.HistoryToModel(history)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*history = *r.mapper.HistoryToEntity(m)
	return nil
}

func (r *DeepChatHistoryRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeepChatHistory, error) {
	var m model.DeepChatHistory
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.HistoryToEntity(&m), nil
}

func (r *DeepChatHistoryRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeepChatHistory, error) {
	var models []*model.DeepChatHistory
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.HistoriesToEntities(models), nil
}

func (r *DeepChatHistoryRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId string) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.DeepChatHistory{}).Error
}
