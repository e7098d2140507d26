package conversation

import (
	"context"
	"errors"
	"strings"

	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/events"
)

type AskRequest struct {
	Question     string
	Origin       deepchat.Origin
	SuggestionID string
	Element      *deepchat.ElementContext
}

// dispatch is one in-flight question. The turn pointer is the handle the
// resolution writes through; the turn list is never scanned for it.
type dispatch struct {
	sessionID   string
	description string
	turn        *deepchat.Turn
	ctx         context.Context
	cancel      context.CancelFunc
}

// Ask dispatches a question and returns its terminal turn. Cancelling ctx
// cancels the dispatch.
func (p *Panel) Ask(ctx context.Context, req AskRequest) (deepchat.Turn, error) {
	d, err := p.begin(ctx, req)
	if err != nil {
		return deepchat.Turn{}, err
	}
	stopWatch := context.AfterFunc(ctx, d.cancel)
	defer stopWatch()

	return p.run(d), nil
}

// AskAsync dispatches a question in the background and returns the pending turn.
// The resolved turn is published as turn.resolved.
func (p *Panel) AskAsync(ctx context.Context, req AskRequest) (deepchat.Turn, error) {
	d, err := p.begin(ctx, req)
	if err != nil {
		return deepchat.Turn{}, err
	}

	p.mu.Lock()
	pending := d.turn.Clone()
	p.mu.Unlock()

	go p.run(d)
	return pending, nil
}

// AskFollowUp dispatches the index-th follow-up of a terminal turn as a custom question.
func (p *Panel) AskFollowUp(ctx context.Context, turnID string, index int, async bool) (deepchat.Turn, error) {
	source, err := p.Turn(turnID)
	if err != nil {
		return deepchat.Turn{}, err
	}
	if index < 0 || index >= len(source.FollowUps) {
		return deepchat.Turn{}, deepchat.ErrInvalidFollowUp
	}

	req := AskRequest{Question: source.FollowUps[index], Origin: deepchat.OriginCustom}
	if async {
		return p.AskAsync(ctx, req)
	}
	return p.Ask(ctx, req)
}

// Cancel aborts an in-flight question; the turn fails with CanceledErrorMessage.
func (p *Panel) Cancel(turnID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cancel, ok := p.cancels[turnID]
	if !ok {
		return deepchat.ErrTurnNotFound
	}
	cancel()
	return nil
}

// begin appends the pending turn, hides the initial suggestions and arms the
// per-turn timeout.
func (p *Panel) begin(ctx context.Context, req AskRequest) (*dispatch, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, deepchat.ErrEmptyQuestion
	}
	origin := req.Origin
	if origin != deepchat.OriginSuggested {
		origin = deepchat.OriginCustom
	}

	sessionID := p.identity.Ensure(ctx, "")

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, deepchat.ErrPanelClosed
	}

	turn := deepchat.NewPendingTurn(p.opts.NewID(), question, origin, req.SuggestionID, req.Element, p.opts.Clock())
	p.turns = append(p.turns, turn)
	p.pools.dismiss()
	if p.state == StateIdle {
		p.state = StateActive
	}

	dctx, cancel := context.WithTimeout(p.baseCtx, p.opts.DispatchTimeout)
	p.cancels[turn.ID] = cancel
	p.bg.Add(1)

	return &dispatch{
		sessionID:   sessionID,
		description: p.props.Description,
		turn:        turn,
		ctx:         dctx,
		cancel:      cancel,
	}, nil
}

func (p *Panel) run(d *dispatch) deepchat.Turn {
	defer p.bg.Done()

	p.ensureSessionCreated(d.ctx, d.sessionID)

	payload := deepchat.NewAnswerRequest(p.props.GemID, d.description, d.turn.Question, d.sessionID, d.turn.Element)
	result, err := p.deps.Answerer.Answer(d.ctx, payload)
	failure := ""
	if err != nil {
		failure = failureMessage(d.ctx, err)
	}
	d.cancel()

	p.mu.Lock()
	delete(p.cancels, d.turn.ID)
	switch {
	case err != nil:
		d.turn.Fail(failure)
	case result == nil:
		d.turn.Fail(deepchat.GenericErrorMessage)
	default:
		d.turn.Resolve(result.Answer, result.FollowUps)
	}
	resolved := d.turn.Clone()
	if resolved.Status == deepchat.TurnAnswered {
		p.hasHistory = true
		p.bg.Add(1)
	}
	p.mu.Unlock()

	if err != nil {
		p.logWarn("Dispatch failed", map[string]interface{}{"session_id": d.sessionID, "turn_id": resolved.ID, "error": err.Error()})
	}

	p.publish(context.Background(), events.KindTurnResolved, d.sessionID, map[string]interface{}{"turn": resolved})

	if resolved.Status == deepchat.TurnAnswered {
		go p.afterAnswer(d.sessionID, resolved)
	}
	return resolved
}

// ensureSessionCreated persists the session record the first time a question is
// asked in it. A failed creation is logged and retried by the next question.
func (p *Panel) ensureSessionCreated(ctx context.Context, sessionID string) {
	p.createMu.Lock()
	defer p.createMu.Unlock()

	p.mu.Lock()
	created := p.createdSession == sessionID
	p.mu.Unlock()
	if created {
		return
	}

	if _, err := p.deps.Store.CreateSession(ctx, sessionID, p.props.GemID, p.props.UserID); err != nil {
		p.logWarn("Session creation failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return
	}

	p.mu.Lock()
	// Only if the panel still holds this session.
	if p.identity.Current() == sessionID {
		p.createdSession = sessionID
	}
	p.mu.Unlock()
}

// afterAnswer runs the best-effort bookkeeping of an answered turn.
func (p *Panel) afterAnswer(sessionID string, turn deepchat.Turn) {
	defer p.bg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.BookkeepTimeout)
	defer cancel()

	entry := deepchat.HistoryEntry{
		Question:  turn.Question,
		Answer:    turn.Answer,
		FollowUps: turn.FollowUps,
		Element:   turn.Element,
		CreatedAt: turn.CreatedAt,
	}
	err := p.deps.Store.AppendHistory(ctx, sessionID, p.props.UserID, p.props.GemID, entry)
	switch {
	case errors.Is(err, deepchat.ErrSessionNotFound):
		// Deleted while the question was in flight, or never created.
		p.logInfo("Answer not recorded, session is gone", map[string]interface{}{"session_id": sessionID})
		return
	case err != nil:
		p.logWarn("History append failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
	}
	if err := p.deps.Store.TouchSession(ctx, sessionID, p.props.UserID); err != nil {
		p.logWarn("Session touch failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
	}

	p.publish(ctx, events.KindSessionsRefresh, sessionID, map[string]interface{}{"reason": "answered"})
}

func failureMessage(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return deepchat.TimeoutErrorMessage
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return deepchat.CanceledErrorMessage
	}
	return err.Error()
}
