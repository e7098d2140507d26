package entity

import (
	"time"

	"github.com/google/uuid"
)

type DeepChatSession struct {
	Id         string
	GemId      string
	UserId     string
	Title      string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// DeepChatHistory is one stored turn. Document is the raw JSON body as written,
// possibly by another producer using different field names.
type DeepChatHistory struct {
	Id        uuid.UUID
	SessionId string
	UserId    string
	GemId     string
	Document  []byte
	CreatedAt time.Time
}
