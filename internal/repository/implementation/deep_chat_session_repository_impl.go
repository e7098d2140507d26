package implementation

import (
	"context"
	"errors"
	"time"

	"curiow-be/internal/entity"
	"curiow-be/internal/mapper"
	"curiow-be/internal/model"
	"curiow-be/internal/repository/contract"
	"curiow-be/internal/repository/specification"

	"gorm.io/gorm"
)

type DeepChatSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DeepChatMapper
}

func NewDeepChatSessionRepository(db *gorm.DB) contract.DeepChatSessionRepository {
	return &DeepChatSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewDeepChatMapper(),
	}
}

func (r *DeepChatSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DeepChatSessionRepositoryImpl) Create(ctx context.Context, session *entity.DeepChatSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *DeepChatSessionRepositoryImpl) Touch(ctx context.Context, id, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.DeepChatSession{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("modified_at", at).Error
}

func (r *DeepChatSessionRepositoryImpl) UpdateTitle(ctx context.Context, id, userID, title string) error {
	return r.db.WithContext(ctx).
		Model(&model.DeepChatSession{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title).Error
}

func (r *DeepChatSessionRepositoryImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.DeepChatSession{}).Error
}

func (r *DeepChatSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeepChatSession, error) {
	var m model.DeepChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m), nil
}

func (r *DeepChatSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeepChatSession, error) {
	var models []*model.DeepChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.SessionsToEntities(models), nil
}
