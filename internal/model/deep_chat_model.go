package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DeepChatSession struct {
	Id         string    `gorm:"type:text;primaryKey"`
	GemId      string    `gorm:"type:text;not null;index:idx_deep_chat_sessions_owner,priority:2"`
	UserId     string    `gorm:"type:text;not null;index:idx_deep_chat_sessions_owner,priority:1"`
	Title      string    `gorm:"type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	ModifiedAt time.Time `gorm:"not null;index"`
}

func (DeepChatSession) TableName() string {
	return "deep_chat_sessions"
}

type DeepChatHistory struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SessionId string         `gorm:"type:text;not null;index"`
	UserId    string         `gorm:"type:text;not null;index"`
	GemId     string         `gorm:"type:text;not null"`
	Document  datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (DeepChatHistory) TableName() string {
	return "deep_chat_history"
}

// DeepChatModels lists the tables owned by the deep-chat store, in migration order.
func DeepChatModels() []interface{} {
	return []interface{}{
		&DeepChatSession{},
		&DeepChatHistory{},
	}
}
