// Package specification holds the composable query filters the repositories
// accept. Each one narrows a gorm query and nothing else.
package specification

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

type ByID struct {
	ID string
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// OrderBy sorts on a single column. The column name is quoted by the dialect.
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Field}, Desc: s.Desc})
}

// ForUpdate locks the selected rows until the surrounding transaction ends.
type ForUpdate struct{}

func (ForUpdate) Apply(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Pagination leaves a zero Limit or Offset unset.
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	if s.Limit > 0 {
		db = db.Limit(s.Limit)
	}
	if s.Offset > 0 {
		db = db.Offset(s.Offset)
	}
	return db
}
