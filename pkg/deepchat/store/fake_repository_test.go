package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"curiow-be/internal/entity"
	"curiow-be/internal/repository/contract"
	"curiow-be/internal/repository/specification"
	"curiow-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// memDB backs the fake unit of work. Specifications are interpreted by type.
type memDB struct {
	mu        sync.Mutex
	sessions  []*entity.DeepChatSession
	history   []*entity.DeepChatHistory
	createErr error
	commits   int
	rollbacks int
}

func (db *memDB) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUnitOfWork{db: db}
}

type memUnitOfWork struct {
	db *memDB
}

// Transaction does not isolate writes; it only counts the outcome.
func (u *memUnitOfWork) Transaction(ctx context.Context, fn func(tx unitofwork.UnitOfWork) error) error {
	err := fn(u)
	u.db.mu.Lock()
	if err != nil {
		u.db.rollbacks++
	} else {
		u.db.commits++
	}
	u.db.mu.Unlock()
	return err
}

func (u *memUnitOfWork) DeepChatSessionRepository() contract.DeepChatSessionRepository {
	return &memSessionRepo{db: u.db}
}

func (u *memUnitOfWork) DeepChatHistoryRepository() contract.DeepChatHistoryRepository {
	return &memHistoryRepo{db: u.db}
}

type memSessionRepo struct{ db *memDB }

func sessionMatches(s *entity.DeepChatSession, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if s.Id != sp.ID {
				return false
			}
		case specification.UserOwnedBy:
			if s.UserId != sp.UserID {
				return false
			}
		case specification.ByGemID:
			if s.GemId != sp.GemID {
				return false
			}
		}
	}
	return true
}

func limitOf(specs []specification.Specification) int {
	for _, spec := range specs {
		if p, ok := spec.(specification.Pagination); ok {
			return p.Limit
		}
	}
	return 0
}

func (r *memSessionRepo) Create(ctx context.Context, session *entity.DeepChatSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.createErr != nil {
		return r.db.createErr
	}
	for _, s := range r.db.sessions {
		if s.Id == session.Id {
			return errors.New("duplicate key")
		}
	}
	c := *session
	r.db.sessions = append(r.db.sessions, &c)
	return nil
}

func (r *memSessionRepo) Touch(ctx context.Context, id, userID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sessions {
		if s.Id == id && s.UserId == userID {
			s.ModifiedAt = at
		}
	}
	return nil
}

func (r *memSessionRepo) UpdateTitle(ctx context.Context, id, userID, title string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sessions {
		if s.Id == id && s.UserId == userID {
			s.Title = title
		}
	}
	return nil
}

func (r *memSessionRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.sessions[:0]
	for _, s := range r.db.sessions {
		if s.Id != id {
			kept = append(kept, s)
		}
	}
	r.db.sessions = kept
	return nil
}

func (r *memSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeepChatSession, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

// FindAll ignores OrderBy: rows come back in insertion order.
func (r *memSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeepChatSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.DeepChatSession
	for _, s := range r.db.sessions {
		if sessionMatches(s, specs) {
			c := *s
			out = append(out, &c)
		}
	}
	if limit := limitOf(specs); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memHistoryRepo struct{ db *memDB }

func (r *memHistoryRepo) Create(ctx context.Context, history *entity.DeepChatHistory) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *history
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	r.db.history = append(r.db.history, &c)
	*history = c
	return nil
}

func (r *memHistoryRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeepChatHistory, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *memHistoryRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeepChatHistory, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.DeepChatHistory
	for _, h := range r.db.history {
		match := true
		for _, spec := range specs {
			if sp, ok := spec.(specification.BySessionID); ok && h.SessionId != sp.SessionID {
				match = false
			}
		}
		if match {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memHistoryRepo) DeleteBySessionId(ctx context.Context, sessionId string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.history[:0]
	for _, h := range r.db.history {
		if h.SessionId != sessionId {
			kept = append(kept, h)
		}
	}
	r.db.history = kept
	return nil
}
