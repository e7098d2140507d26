package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"curiow-be/internal/pkg/logger"
	"curiow-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// Publisher writes events into the deep-chat stream, one subject per event type.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewPublisher(url string, log logger.ILogger) (*Publisher, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(context.Background(), js); err != nil {
		log.Warn("NATS", "Failed to ensure stream", map[string]interface{}{"stream": StreamName, "error": err.Error()})
	}
	return &Publisher{nc: nc, js: js}, nil
}

// Publish carries the trace context in the message headers. Retries reuse the
// same message id, so the stream stores a retried event once.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	subject := event.EventType()

	ctx, span := otel.Tracer("nats").Start(ctx, "nats.publish "+subject)
	defer span.End()
	span.SetAttributes(attribute.String("messaging.system", "nats"), attribute.String("messaging.destination.name", subject))

	msg, err := EncodeEvent(ctx, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode")
		return err
	}

	_, err = p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(MessageID(event)),
		jetstream.WithRetryAttempts(3),
		jetstream.WithRetryWait(250*time.Millisecond),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

// EncodeEvent builds the wire message of an event with the trace context of
// ctx injected into its headers.
func EncodeEvent(ctx context.Context, event events.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	msg := nats.NewMsg(event.EventType())
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))
	return msg, nil
}

// MessageID is stable for a given event so the stream can drop duplicates.
func MessageID(event events.Event) string {
	userID, _ := event.Payload()["user_id"].(string)
	return fmt.Sprintf("%s|%s|%d", event.EventType(), userID, event.Timestamp().UnixNano())
}

func (p *Publisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
	}
}
