package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"curiow-be/pkg/deepchat"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const maxResponseBytes = 1 << 20

// HTTPAnswerer posts questions to the remote answer-generation endpoint.
type HTTPAnswerer struct {
	URL    string
	APIKey string
	Client *http.Client
}

var _ deepchat.Answerer = (*HTTPAnswerer)(nil)

// NewHTTPAnswerer builds a client. The per-dispatch deadline comes from the
// caller's context; timeout only bounds a single HTTP exchange.
func NewHTTPAnswerer(url, apiKey string, timeout time.Duration) *HTTPAnswerer {
	return &HTTPAnswerer{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAnswerer) Answer(ctx context.Context, req deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
	ctx, span := otel.Tracer("deepchat").Start(ctx, "deepchat.answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("deepchat.gem_id", req.GemID),
		attribute.String("deepchat.session_id", req.SessionID),
		attribute.String("deepchat.element", req.Element.Name),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal answer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create answer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.APIKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("answer request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read answer response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("answer endpoint error: status %d", resp.StatusCode)
	}

	result, err := ParseResponse(respBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unusable response")
		return nil, err
	}
	return result, nil
}
