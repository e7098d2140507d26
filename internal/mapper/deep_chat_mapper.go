package mapper

import (
	"curiow-be/internal/entity"
	"curiow-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DeepChatMapper struct{}

func NewDeepChatMapper() *DeepChatMapper {
	return &DeepChatMapper{}
}

// Session Mappers

func (m *DeepChatMapper) SessionToEntity(s *model.DeepChatSession) *entity.DeepChatSession {
	if s == nil {
		return nil
	}
	return &entity.DeepChatSession{
		Id:         s.Id,
		GemId:      s.GemId,
		UserId:     s.UserId,
		Title:      s.Title,
		CreatedAt:  s.CreatedAt,
		ModifiedAt: s.ModifiedAt,
	}
}

func (m *DeepChatMapper) SessionToModel(s *entity.DeepChatSession) *model.DeepChatSession {
	if s == nil {
		return nil
	}
	modifiedAt := s.ModifiedAt
	if modifiedAt.IsZero() {
		modifiedAt = s.CreatedAt
	}
	return &model.DeepChatSession{
		Id:         s.Id,
		GemId:      s.GemId,
		UserId:     s.UserId,
		Title:      s.Title,
		CreatedAt:  s.CreatedAt,
		ModifiedAt: modifiedAt,
	}
}

func (m *DeepChatMapper) SessionsToEntities(models []*model.DeepChatSession) []*entity.DeepChatSession {
	entities := make([]*entity.DeepChatSession, len(models))
	for i, s := range models {
		entities[i] = m.SessionToEntity(s)
	}
	return entities
}

// History Mappers

func (m *DeepChatMapper) HistoryToEntity(h *model.DeepChatHistory) *entity.DeepChatHistory {
	if h == nil {
		return nil
	}
	return &entity.DeepChatHistory{
		Id:        h.Id,
		SessionId: h.SessionId,
		UserId:    h.UserId,
		GemId:     h.GemId,
		Document:  []byte(h.Document),
		CreatedAt: h.CreatedAt,
	}
}

func (m *DeepChatMapper) HistoryToModel(h *entity.DeepChatHistory) *model.DeepChatHistory {
	if h == nil {
		return nil
	}
	id := h.Id
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &model.DeepChatHistory{
		Id:        id,
		SessionId: h.SessionId,
		UserId:    h.UserId,
		GemId:     h.GemId,
		Document:  datatypes.JSON(h.Document),
		CreatedAt: h.CreatedAt,
	}
}

func (m *DeepChatMapper) HistoriesToEntities(models []*model.DeepChatHistory) []*entity.DeepChatHistory {
	entities := make([]*entity.DeepChatHistory, len(models))
	for i, h := range models {
		entities[i] = m.HistoryToEntity(h)
	}
	return entities
}
