package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"curiow-be/internal/dto"
	"curiow-be/internal/pkg/logger"
	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/events"
	natsbus "curiow-be/pkg/nats"
)

// CommandSubject is where other services send open/new/use signals, e.g.
// "deepchat.command.chat.open".
const (
	CommandSubject = "deepchat.command.>"
	commandPrefix  = "deepchat.command."
	relayDurable   = "deepchat-relay"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type EventSubscriber interface {
	Subscribe(subject string, durableName string, handler natsbus.EventHandler) error
}

type EventSource interface {
	Subscribe(ctx context.Context, kinds ...events.Kind) (<-chan events.DeepChatEvent, error)
}

// IRelayService bridges the in-process bus and NATS: panel events go out, and
// open/new/use commands from other services come in.
type IRelayService interface {
	Start(ctx context.Context) error
}

type relayService struct {
	source     EventSource
	publisher  EventPublisher
	subscriber EventSubscriber
	deepChat   IDeepChatService
	logger     logger.ILogger
}

func NewRelayService(source EventSource, publisher EventPublisher, subscriber EventSubscriber, deepChat IDeepChatService, log logger.ILogger) IRelayService {
	return &relayService{
		source:     source,
		publisher:  publisher,
		subscriber: subscriber,
		deepChat:   deepChat,
		logger:     log,
	}
}

func (rs *relayService) Start(ctx context.Context) error {
	if rs.publisher != nil {
		ch, err := rs.source.Subscribe(ctx)
		if err != nil {
			return err
		}
		go rs.forward(ctx, ch)
	}

	if rs.subscriber != nil {
		if err := rs.subscriber.Subscribe(CommandSubject, relayDurable, rs.HandleCommand); err != nil {
			return err
		}
	}
	return nil
}

func (rs *relayService) forward(ctx context.Context, ch <-chan events.DeepChatEvent) {
	for evt := range ch {
		if err := rs.publisher.Publish(ctx, evt); err != nil {
			rs.logger.Warn("Relay", "Failed to publish event", map[string]interface{}{
				"kind":    evt.Kind,
				"user_id": evt.UserID,
				"error":   err.Error(),
			})
		}
	}
}

// HandleCommand applies one inbound command. Malformed or unknown commands are
// logged and acknowledged.
func (rs *relayService) HandleCommand(ctx context.Context, event events.Event) error {
	kind := events.Kind(strings.TrimPrefix(event.EventType(), commandPrefix))

	raw, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}
	var cmd dto.DeepChatCommand
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.UserId == "" || cmd.GemId == "" {
		rs.logger.Warn("Relay", "Dropping malformed command", map[string]interface{}{"subject": event.EventType()})
		return nil
	}

	switch kind {
	case events.KindOpenChat:
		_, err = rs.deepChat.Open(ctx, cmd.UserId, cmd.GemId, &dto.OpenChatRequest{
			Description:      cmd.Description,
			EventSuggestions: cmd.Suggestions,
		})
	case events.KindNewSession:
		_, err = rs.deepChat.NewSession(ctx, cmd.UserId, cmd.GemId, &dto.NewSessionRequest{Suggestions: cmd.Suggestions})
	case events.KindUseSession:
		if cmd.SessionId == "" {
			rs.logger.Warn("Relay", "session.use without session id", map[string]interface{}{"user_id": cmd.UserId})
			return nil
		}
		_, err = rs.deepChat.UseSession(ctx, cmd.UserId, cmd.GemId, cmd.SessionId)
		if errors.Is(err, deepchat.ErrSessionNotFound) {
			rs.logger.Warn("Relay", "session.use for unknown session", map[string]interface{}{
				"user_id":    cmd.UserId,
				"session_id": cmd.SessionId,
			})
			return nil
		}
	default:
		rs.logger.Warn("Relay", "Unknown command", map[string]interface{}{"subject": event.EventType()})
		return nil
	}

	if err != nil {
		return err
	}
	rs.logger.Info("Relay", "Command applied", map[string]interface{}{"kind": kind, "user_id": cmd.UserId, "gem_id": cmd.GemId})
	return nil
}
