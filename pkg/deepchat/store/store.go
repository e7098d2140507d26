// Package store persists deep-chat sessions and their history through the
// repository unit of work.
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"curiow-be/internal/entity"
	"curiow-be/internal/pkg/logger"
	"curiow-be/internal/repository/specification"
	"curiow-be/internal/repository/unitofwork"
	"curiow-be/pkg/deepchat"

	"github.com/google/uuid"
)

const moduleName = "DeepChatStore"

type Store struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
	now        func() time.Time
}

var _ deepchat.Store = (*Store)(nil)

func New(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) *Store {
	return &Store{
		uowFactory: uowFactory,
		logger:     log,
		now:        time.Now,
	}
}

// CreateSession records a session. Creating an id the same user already owns for
// the gem is a no-op, so a day-scoped id can be reused.
func (s *Store) CreateSession(ctx context.Context, sessionID, gemID, userID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	repo := s.uowFactory.NewUnitOfWork(ctx).DeepChatSessionRepository()

	existing, err := repo.FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return "", fmt.Errorf("find session: %w", err)
	}
	if existing != nil {
		if existing.UserId != userID || existing.GemId != gemID {
			return "", deepchat.ErrSessionNotFound
		}
		return existing.Id, nil
	}

	now := s.now().UTC()
	session := &entity.DeepChatSession{
		Id:         sessionID,
		GemId:      gemID,
		UserId:     userID,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := repo.Create(ctx, session); err != nil {
		s.logger.Error(moduleName, "Failed to create session", map[string]interface{}{
			"session_id": sessionID,
			"user_id":    userID,
			"error":      err.Error(),
		})
		return "", fmt.Errorf("create session: %w", err)
	}

	s.logger.Info(moduleName, "Session created", map[string]interface{}{
		"session_id": sessionID,
		"gem_id":     gemID,
		"user_id":    userID,
	})
	return session.Id, nil
}

// TouchSession bumps the modification time of a session the user owns.
func (s *Store) TouchSession(ctx context.Context, sessionID, userID string) error {
	repo := s.uowFactory.NewUnitOfWork(ctx).DeepChatSessionRepository()

	session, err := repo.FindOne(ctx, specification.ByID{ID: sessionID}, specification.UserOwnedBy{UserID: userID})
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return deepchat.ErrSessionNotFound
	}
	if err := repo.Touch(ctx, sessionID, userID, s.now().UTC()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// ListSessions returns the user's sessions for a gem, newest-modified first.
// A non-positive limit returns all of them.
func (s *Store) ListSessions(ctx context.Context, gemID, userID string, limit int) ([]deepchat.Session, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{
		specification.UserOwnedBy{UserID: userID},
		specification.ByGemID{GemID: gemID},
		specification.OrderBy{Field: "modified_at", Desc: true},
	}
	if limit > 0 {
		specs = append(specs, specification.Pagination{Limit: limit})
	}

	rows, err := uow.DeepChatSessionRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]deepchat.Session, 0, len(rows))
	for _, row := range rows {
		title := row.Title
		if title == "" {
			title = s.titleFromHistory(ctx, uow, row.Id)
		}
		sessions = append(sessions, deepchat.Session{
			ID:         row.Id,
			GemID:      row.GemId,
			UserID:     row.UserId,
			Title:      title,
			CreatedAt:  row.CreatedAt,
			ModifiedAt: row.ModifiedAt,
		})
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].ModifiedAt.After(sessions[j].ModifiedAt)
	})
	return sessions, nil
}

func (s *Store) titleFromHistory(ctx context.Context, uow unitofwork.UnitOfWork, sessionID string) string {
	first, err := uow.DeepChatHistoryRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		s.logger.Warn(moduleName, "Failed to derive session title", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return deepchat.FallbackSessionTitle
	}
	if first == nil {
		return deepchat.FallbackSessionTitle
	}

	entry, err := decodeHistory(first.Document, first.CreatedAt)
	if err != nil || entry.Question == "" {
		return deepchat.FallbackSessionTitle
	}
	return deepchat.TitleFromQuestion(entry.Question)
}

// FetchHistory returns the normalized history of a session owned by the user,
// oldest first. Undecodable documents are skipped.
func (s *Store) FetchHistory(ctx context.Context, sessionID, userID, gemID string) ([]deepchat.HistoryEntry, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.DeepChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionID},
		specification.UserOwnedBy{UserID: userID},
	)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || (gemID != "" && session.GemId != gemID) {
		return nil, deepchat.ErrSessionNotFound
	}

	rows, err := uow.DeepChatHistoryRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	entries := make([]deepchat.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := decodeHistory(row.Document, row.CreatedAt)
		if err != nil {
			s.logger.Warn(moduleName, "Skipping malformed history entry", map[string]interface{}{
				"session_id": sessionID,
				"history_id": row.Id.String(),
				"error":      err.Error(),
			})
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// DeleteSession removes a session and its history in one transaction. The
// session row is locked and deleted first so a concurrent AppendHistory either
// commits before it, and its row is deleted too, or finds no session.
func (s *Store) DeleteSession(ctx context.Context, sessionID, userID string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	err := uow.Transaction(ctx, func(tx unitofwork.UnitOfWork) error {
		if _, err := lockOwnedSession(ctx, tx, sessionID, userID, ""); err != nil {
			return err
		}
		if err := tx.DeepChatSessionRepository().Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if err := tx.DeepChatHistoryRepository().DeleteBySessionId(ctx, sessionID); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(moduleName, "Session deleted", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
	})
	return nil
}

// lockOwnedSession loads a session of userID (and gemID when set) with a row
// lock held until tx ends.
func lockOwnedSession(ctx context.Context, tx unitofwork.UnitOfWork, sessionID, userID, gemID string) (*entity.DeepChatSession, error) {
	specs := []specification.Specification{
		specification.ByID{ID: sessionID},
		specification.UserOwnedBy{UserID: userID},
		specification.ForUpdate{},
	}
	if gemID != "" {
		specs = append(specs, specification.ByGemID{GemID: gemID})
	}
	session, err := tx.DeepChatSessionRepository().FindOne(ctx, specs...)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, deepchat.ErrSessionNotFound
	}
	return session, nil
}

// AppendHistory stores one answered turn in a session the user owns under gemID
// and titles the session after its first question.
func (s *Store) AppendHistory(ctx context.Context, sessionID, userID, gemID string, entry deepchat.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	doc, err := encodeHistory(entry)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.Transaction(ctx, func(tx unitofwork.UnitOfWork) error {
		session, err := lockOwnedSession(ctx, tx, sessionID, userID, gemID)
		if err != nil {
			return err
		}

		if err := tx.DeepChatHistoryRepository().Create(ctx, &entity.DeepChatHistory{
			SessionId: sessionID,
			UserId:    userID,
			GemId:     gemID,
			Document:  doc,
			CreatedAt: entry.CreatedAt,
		}); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		if session.Title == "" && entry.Question != "" {
			if err := tx.DeepChatSessionRepository().UpdateTitle(ctx, sessionID, userID, deepchat.TitleFromQuestion(entry.Question)); err != nil {
				return fmt.Errorf("update session title: %w", err)
			}
		}
		return nil
	})
}
