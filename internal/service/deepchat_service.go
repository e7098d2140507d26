package service

import (
	"context"
	"time"

	"curiow-be/internal/config"
	"curiow-be/internal/dto"
	"curiow-be/internal/pkg/logger"
	"curiow-be/internal/repository/memory"
	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/deepchat/conversation"
	"curiow-be/pkg/deepchat/identity"
	"curiow-be/pkg/events"
)

// IDeepChatService drives the conversation panels of the deep-topic chat.
type IDeepChatService interface {
	Open(ctx context.Context, userId, gemId string, request *dto.OpenChatRequest) (*dto.PanelResponse, error)
	GetPanel(ctx context.Context, userId, gemId string) (*dto.PanelResponse, error)
	Ask(ctx context.Context, userId, gemId string, request *dto.AskRequest) (*dto.TurnResponse, error)
	AskAsync(ctx context.Context, userId, gemId string, request *dto.AskRequest) (*dto.TurnResponse, error)
	AskFollowUp(ctx context.Context, userId, gemId, turnId string, index int) (*dto.TurnResponse, error)
	CancelTurn(ctx context.Context, userId, gemId, turnId string) error
	NewSession(ctx context.Context, userId, gemId string, request *dto.NewSessionRequest) (*dto.PanelResponse, error)
	UseSession(ctx context.Context, userId, gemId, sessionId string) (*dto.PanelResponse, error)
	ListSessions(ctx context.Context, userId, gemId string, limit int) ([]*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, userId, gemId, sessionId string) error
	DailySession(ctx context.Context, userId string) (*dto.DailySessionResponse, error)
	Shutdown()
}

type deepChatService struct {
	store    deepchat.Store
	answerer deepchat.Answerer
	notifier deepchat.Notifier
	panels   *memory.PanelRegistry
	daily    *memory.DailySessionRepository
	cfg      config.DeepChatConfig
	logger   logger.ILogger
	now      func() time.Time
}

func NewDeepChatService(
	store deepchat.Store,
	answerer deepchat.Answerer,
	notifier deepchat.Notifier,
	panels *memory.PanelRegistry,
	daily *memory.DailySessionRepository,
	cfg config.DeepChatConfig,
	log logger.ILogger,
) IDeepChatService {
	return &deepChatService{
		store:    store,
		answerer: answerer,
		notifier: notifier,
		panels:   panels,
		daily:    daily,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// panel returns the live panel of (user, gem), mounting it with props when needed.
func (s *deepChatService) panel(ctx context.Context, userId, gemId string, props conversation.Props) *conversation.Panel {
	return s.panels.GetOrCreate(userId, gemId, func() *conversation.Panel {
		props.UserID = userId
		props.GemID = gemId
		s.logger.Debug("DeepChatService", "Mounting panel", map[string]interface{}{"user_id": userId, "gem_id": gemId})
		return conversation.NewPanel(ctx, props, conversation.Deps{
			Store:      s.store,
			Answerer:   s.answerer,
			Notifier:   s.notifier,
			DailyStore: s.daily,
			Logger:     s.logger,
		}, conversation.Options{
			DispatchTimeout:  s.cfg.DispatchTimeout,
			RolloverInterval: s.cfg.RolloverInterval,
		})
	})
}

func (s *deepChatService) Open(ctx context.Context, userId, gemId string, request *dto.OpenChatRequest) (*dto.PanelResponse, error) {
	p := s.panel(ctx, userId, gemId, conversation.Props{
		Description: request.Description,
		Suggestions: suggestionsFromDTO(request.Suggestions),
	})
	p.SetDescription(request.Description)

	view := p.Open(ctx, suggestionsFromDTO(request.EventSuggestions))
	return panelToDTO(view), nil
}

func (s *deepChatService) GetPanel(ctx context.Context, userId, gemId string) (*dto.PanelResponse, error) {
	return panelToDTO(s.panel(ctx, userId, gemId, conversation.Props{}).View()), nil
}

func (s *deepChatService) Ask(ctx context.Context, userId, gemId string, request *dto.AskRequest) (*dto.TurnResponse, error) {
	turn, err := s.panel(ctx, userId, gemId, conversation.Props{}).Ask(ctx, askFromDTO(request))
	if err != nil {
		return nil, err
	}
	return turnToDTO(turn), nil
}

// AskAsync returns the pending turn; the terminal one is pushed as turn.resolved.
func (s *deepChatService) AskAsync(ctx context.Context, userId, gemId string, request *dto.AskRequest) (*dto.TurnResponse, error) {
	turn, err := s.panel(ctx, userId, gemId, conversation.Props{}).AskAsync(ctx, askFromDTO(request))
	if err != nil {
		return nil, err
	}
	return turnToDTO(turn), nil
}

func (s *deepChatService) AskFollowUp(ctx context.Context, userId, gemId, turnId string, index int) (*dto.TurnResponse, error) {
	turn, err := s.panel(ctx, userId, gemId, conversation.Props{}).AskFollowUp(ctx, turnId, index, false)
	if err != nil {
		return nil, err
	}
	return turnToDTO(turn), nil
}

func (s *deepChatService) CancelTurn(ctx context.Context, userId, gemId, turnId string) error {
	p, ok := s.panels.Get(userId, gemId)
	if !ok {
		return deepchat.ErrTurnNotFound
	}
	return p.Cancel(turnId)
}

func (s *deepChatService) NewSession(ctx context.Context, userId, gemId string, request *dto.NewSessionRequest) (*dto.PanelResponse, error) {
	view := s.panel(ctx, userId, gemId, conversation.Props{}).NewSession(ctx, suggestionsFromDTO(request.Suggestions))
	return panelToDTO(view), nil
}

func (s *deepChatService) UseSession(ctx context.Context, userId, gemId, sessionId string) (*dto.PanelResponse, error) {
	view, err := s.panel(ctx, userId, gemId, conversation.Props{}).UseExistingSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return panelToDTO(view), nil
}

// ListSessions degrades to an empty list when the store is unavailable.
func (s *deepChatService) ListSessions(ctx context.Context, userId, gemId string, limit int) ([]*dto.SessionResponse, error) {
	if limit <= 0 || limit > s.cfg.SessionListLimit {
		limit = s.cfg.SessionListLimit
	}

	sessions, err := s.store.ListSessions(ctx, gemId, userId, limit)
	if err != nil {
		s.logger.Warn("DeepChatService", "Failed to list sessions", map[string]interface{}{
			"user_id": userId,
			"gem_id":  gemId,
			"error":   err.Error(),
		})
		return []*dto.SessionResponse{}, nil
	}

	res := make([]*dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		res = append(res, &dto.SessionResponse{
			Id:         session.ID,
			GemId:      session.GemID,
			Title:      session.Title,
			CreatedAt:  session.CreatedAt,
			ModifiedAt: session.ModifiedAt,
		})
	}
	return res, nil
}

// DeleteSession goes through the live panel when there is one, so deleting the
// open conversation resets it.
func (s *deepChatService) DeleteSession(ctx context.Context, userId, gemId, sessionId string) error {
	if p, ok := s.panels.Get(userId, gemId); ok {
		return p.DeleteSession(ctx, sessionId)
	}

	if err := s.store.DeleteSession(ctx, sessionId, userId); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.Publish(ctx, events.NewDeepChatEvent(events.KindSessionsRefresh, userId, gemId, sessionId, map[string]interface{}{"reason": "deleted"}))
	}
	return nil
}

func (s *deepChatService) DailySession(ctx context.Context, userId string) (*dto.DailySessionResponse, error) {
	res := &dto.DailySessionResponse{Day: s.now().Format("2006-01-02")}
	if p, ok := s.panels.Get(userId, deepchat.GeneralGemID); ok {
		res.SessionId = p.DailySessionID()
		return res, nil
	}

	manager := identity.NewManager(userId, deepchat.GeneralGemID,
		identity.WithDailyStore(s.daily),
		identity.WithClock(s.now),
	)
	res.SessionId = manager.DailySessionID()
	return res, nil
}

func (s *deepChatService) Shutdown() {
	s.panels.CloseAll()
}
