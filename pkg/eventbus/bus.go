package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"curiow-be/internal/pkg/logger"
	"curiow-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus carries deep-chat events between conversation panels and their consumers
// (websocket hub, NATS relay) inside one process.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

// New creates an in-process bus backed by a watermill GoChannel.
func New(log logger.ILogger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	return &Bus{pubSub: pubSub, logger: log}
}

// Publish never fails towards the caller: a lost signal only delays a UI refresh.
func (b *Bus) Publish(ctx context.Context, evt events.DeepChatEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("EventBus", "Failed to marshal event", map[string]interface{}{"kind": evt.Kind, "error": err.Error()})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(evt.EventType(), msg); err != nil {
		b.logger.Warn("EventBus", "Failed to publish event", map[string]interface{}{"kind": evt.Kind, "error": err.Error()})
	}
}

// Subscribe merges the topics of the given kinds (all kinds when none given) into
// one channel. The channel is closed once ctx is done.
func (b *Bus) Subscribe(ctx context.Context, kinds ...events.Kind) (<-chan events.DeepChatEvent, error) {
	if len(kinds) == 0 {
		kinds = events.Kinds
	}

	out := make(chan events.DeepChatEvent, 64)
	var wg sync.WaitGroup

	for _, kind := range kinds {
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown event kind %q", kind)
		}
		topic := events.DeepChatEvent{Kind: kind}.EventType()
		messages, err := b.pubSub.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}

		wg.Add(1)
		go func(messages <-chan *message.Message) {
			defer wg.Done()
			for msg := range messages {
				var evt events.DeepChatEvent
				if err := json.Unmarshal(msg.Payload, &evt); err != nil {
					b.logger.Warn("EventBus", "Dropping malformed event", map[string]interface{}{"error": err.Error()})
					msg.Ack()
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
				}
				msg.Ack()
			}
		}(messages)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
