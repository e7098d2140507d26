package specification

import "gorm.io/gorm"

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByGemID struct {
	GemID string
}

func (s ByGemID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("gem_id = ?", s.GemID)
}

// UserOwnedBy restricts rows to one user for data isolation.
type UserOwnedBy struct {
	UserID string
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}
