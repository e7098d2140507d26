package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"curiow-be/internal/pkg/logger"
	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/deepchat/identity"
	"curiow-be/pkg/events"

	"github.com/google/uuid"
)

const moduleName = "DeepChatPanel"

type State string

const (
	StateIdle            State = "idle"
	StateActive          State = "active"
	StateHistoryHydrated State = "history_hydrated"
)

// Props are the inputs a panel is mounted with.
type Props struct {
	UserID      string
	GemID       string
	Description string
	Suggestions []deepchat.SuggestionItem
}

type Deps struct {
	Store      deepchat.Store
	Answerer   deepchat.Answerer
	Notifier   deepchat.Notifier
	DailyStore identity.DailyStore
	Logger     logger.ILogger
}

type Options struct {
	DispatchTimeout  time.Duration
	RolloverInterval time.Duration // zero disables the day-rollover loop
	BookkeepTimeout  time.Duration
	Clock            func() time.Time
	NewID            func() string
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.DispatchTimeout <= 0 {
		out.DispatchTimeout = 90 * time.Second
	}
	if out.BookkeepTimeout <= 0 {
		out.BookkeepTimeout = 10 * time.Second
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	if out.NewID == nil {
		out.NewID = func() string { return uuid.NewString() }
	}
	return out
}

// View is a snapshot of what a client renders.
type View struct {
	UserID         string                    `json:"user_id"`
	GemID          string                    `json:"gem_id"`
	SessionID      string                    `json:"session_id"`
	DailySessionID string                    `json:"daily_session_id"`
	State          State                     `json:"state"`
	HasHistory     bool                      `json:"has_history"`
	Turns          []deepchat.Turn           `json:"turns"`
	Suggestions    []deepchat.SuggestionItem `json:"suggestions"`
}

// Panel is the conversation controller of one (user, gem) pair. It owns the turn
// list and the suggestion pools; durable state goes through the Store.
type Panel struct {
	mu sync.Mutex

	props    Props
	deps     Deps
	opts     Options
	identity *identity.Manager

	turns          []*deepchat.Turn
	pools          *suggestionPools
	state          State
	hasHistory     bool
	createdSession string // session id whose record is known to exist
	switches       uint64 // bumped by every session switch or reset

	createMu sync.Mutex
	cancels  map[string]context.CancelFunc

	baseCtx context.Context
	stop    context.CancelFunc
	bg      sync.WaitGroup
	closed  bool
}

// NewPanel mounts a panel: it checks whether the user already has sessions for
// the gem and starts the day-rollover loop.
func NewPanel(ctx context.Context, props Props, deps Deps, opts Options) *Panel {
	o := opts.withDefaults()
	baseCtx, stop := context.WithCancel(context.Background())

	p := &Panel{
		props: props,
		deps:  deps,
		opts:  o,
		identity: identity.NewManager(props.UserID, props.GemID,
			identity.WithDailyStore(deps.DailyStore),
			identity.WithNotifier(deps.Notifier),
			identity.WithClock(o.Clock),
			identity.WithIDGenerator(o.NewID),
		),
		pools:   newSuggestionPools(props.Suggestions),
		state:   StateIdle,
		cancels: make(map[string]context.CancelFunc),
		baseCtx: baseCtx,
		stop:    stop,
	}

	if props.GemID == deepchat.GeneralGemID {
		p.identity.Ensure(ctx, p.identity.DailySessionID())
	}

	p.hasHistory = p.lookupHistory(ctx)

	if o.RolloverInterval > 0 {
		p.bg.Add(1)
		go p.runRollover(o.RolloverInterval)
	}

	return p
}

func (p *Panel) UserID() string { return p.props.UserID }
func (p *Panel) GemID() string  { return p.props.GemID }

func (p *Panel) lookupHistory(ctx context.Context) bool {
	if p.deps.Store == nil {
		return false
	}
	sessions, err := p.deps.Store.ListSessions(ctx, p.props.GemID, p.props.UserID, 1)
	if err != nil {
		p.logWarn("History lookup failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return len(sessions) > 0
}

// SetDescription updates the gem context sent with each question.
func (p *Panel) SetDescription(description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if description != "" {
		p.props.Description = description
	}
}

// Open handles an "open chat with these candidate suggestions" signal.
func (p *Panel) Open(ctx context.Context, suggestions []deepchat.SuggestionItem) View {
	p.mu.Lock()
	p.pools.applyInvocation(suggestions)
	view := p.viewLocked()
	p.mu.Unlock()

	p.publish(ctx, events.KindOpenChat, view.SessionID, map[string]interface{}{"suggestions": len(suggestions)})
	return view
}

// NewSession clears the conversation and resets the suggestion pools from the
// signal's payload. The next question starts a new session.
func (p *Panel) NewSession(ctx context.Context, suggestions []deepchat.SuggestionItem) View {
	p.mu.Lock()
	left := p.identity.Current()
	p.resetLocked()
	p.pools.applyInvocation(suggestions)
	p.mu.Unlock()

	p.rejoinDay(ctx, left)
	p.publish(ctx, events.KindNewSession, "", nil)
	return p.View()
}

// UseExistingSession switches to a persisted session and hydrates its history.
// The panel adopts the id only once the store has returned the history of a
// session the user owns under this gem. Any failed fetch leaves a fresh idle
// conversation; ErrSessionNotFound is returned so callers can report it.
func (p *Panel) UseExistingSession(ctx context.Context, sessionID string) (View, error) {
	p.mu.Lock()
	p.switches++
	seq := p.switches
	p.mu.Unlock()

	entries, err := p.deps.Store.FetchHistory(ctx, sessionID, p.props.UserID, p.props.GemID)

	p.mu.Lock()
	if p.switches != seq {
		// A later switch or reset owns the panel now.
		view := p.viewLocked()
		p.mu.Unlock()
		return view, nil
	}

	if err != nil {
		p.resetLocked()
		p.mu.Unlock()

		p.logWarn("History fetch failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		p.rejoinDay(ctx, "")
		p.publish(ctx, events.KindNewSession, "", nil)
		if errors.Is(err, deepchat.ErrSessionNotFound) {
			return p.View(), err
		}
		return p.View(), nil
	}

	p.turns = make([]*deepchat.Turn, 0, len(entries))
	for _, entry := range entries {
		p.turns = append(p.turns, p.turnFromHistory(entry))
	}
	p.state = StateHistoryHydrated
	p.pools.restore()
	p.createdSession = sessionID
	if len(entries) > 0 {
		p.hasHistory = true
	}
	p.identity.Ensure(ctx, sessionID)
	view := p.viewLocked()
	p.mu.Unlock()

	p.publish(ctx, events.KindUseSession, sessionID, nil)
	return view, nil
}

func (p *Panel) turnFromHistory(entry deepchat.HistoryEntry) *deepchat.Turn {
	turn := deepchat.NewPendingTurn(p.opts.NewID(), entry.Question, deepchat.OriginCustom, "", entry.Element, entry.CreatedAt)
	if entry.Answer != "" {
		turn.Resolve(entry.Answer, entry.FollowUps)
	} else {
		turn.Fail(deepchat.GenericErrorMessage)
	}
	return turn
}

// DeleteSession removes a persisted session. Deleting the open one resets the
// panel and broadcasts session.new. On failure the panel is left untouched.
func (p *Panel) DeleteSession(ctx context.Context, sessionID string) error {
	if err := p.deps.Store.DeleteSession(ctx, sessionID, p.props.UserID); err != nil {
		p.logWarn("Session deletion failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return err
	}

	p.mu.Lock()
	wasCurrent := p.identity.Current() == sessionID
	if wasCurrent {
		p.resetLocked()
	}
	p.mu.Unlock()

	p.publish(ctx, events.KindSessionsRefresh, sessionID, map[string]interface{}{"reason": "deleted"})
	if wasCurrent {
		p.rejoinDay(ctx, sessionID)
		p.publish(ctx, events.KindNewSession, "", nil)
	}
	return nil
}

// resetLocked brings the panel back to a fresh, empty conversation.
func (p *Panel) resetLocked() {
	p.switches++
	p.turns = nil
	p.state = StateIdle
	p.createdSession = ""
	p.pools.restore()
	p.identity.Reset()
}

// rejoinDay points a reset general panel back at today's conversation. Leaving
// today's conversation itself starts an undated one until the next rollover.
func (p *Panel) rejoinDay(ctx context.Context, left string) {
	if p.props.GemID != deepchat.GeneralGemID {
		return
	}
	if daily := p.identity.DailySessionID(); daily != left {
		p.identity.Ensure(ctx, daily)
	}
}

// DailySessionID exposes the day-scoped id of the panel's user.
func (p *Panel) DailySessionID() string {
	return p.identity.DailySessionID()
}

func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Panel) viewLocked() View {
	turns := make([]deepchat.Turn, 0, len(p.turns))
	for _, t := range p.turns {
		turns = append(turns, t.Clone())
	}
	return View{
		UserID:         p.props.UserID,
		GemID:          p.props.GemID,
		SessionID:      p.identity.Current(),
		DailySessionID: p.identity.DailySessionID(),
		State:          p.state,
		HasHistory:     p.hasHistory,
		Turns:          turns,
		Suggestions:    p.pools.visible(len(p.turns), p.hasHistory),
	}
}

// Turn returns a snapshot of one turn of the current conversation.
func (p *Panel) Turn(turnID string) (deepchat.Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.turns {
		if t.ID == turnID {
			return t.Clone(), nil
		}
	}
	return deepchat.Turn{}, deepchat.ErrTurnNotFound
}

func (p *Panel) runRollover(interval time.Duration) {
	defer p.bg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.baseCtx.Done():
			return
		case <-ticker.C:
			p.CheckRollover(p.baseCtx)
		}
	}
}

// CheckRollover refreshes the day-scoped id. An idle general panel moves to the
// new day's conversation; a gem panel is never disrupted.
func (p *Panel) CheckRollover(ctx context.Context) {
	dailyID, advanced := p.identity.Rollover()
	if !advanced || p.props.GemID != deepchat.GeneralGemID {
		return
	}

	p.mu.Lock()
	if p.state != StateIdle || len(p.turns) > 0 {
		p.mu.Unlock()
		return
	}
	p.createdSession = ""
	p.mu.Unlock()

	p.identity.Ensure(ctx, dailyID)
	p.logInfo("Day rollover", map[string]interface{}{"session_id": dailyID})
}

// Close cancels in-flight dispatches, stops the rollover loop and waits for
// background bookkeeping.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, cancel := range p.cancels {
		cancel()
	}
	p.mu.Unlock()

	p.stop()
	p.bg.Wait()
}

func (p *Panel) publish(ctx context.Context, kind events.Kind, sessionID string, data map[string]interface{}) {
	if p.deps.Notifier == nil {
		return
	}
	p.deps.Notifier.Publish(ctx, events.NewDeepChatEvent(kind, p.props.UserID, p.props.GemID, sessionID, data))
}

func (p *Panel) logWarn(message string, details map[string]interface{}) {
	if p.deps.Logger == nil {
		return
	}
	details["user_id"] = p.props.UserID
	details["gem_id"] = p.props.GemID
	p.deps.Logger.Warn(moduleName, message, details)
}

func (p *Panel) logInfo(message string, details map[string]interface{}) {
	if p.deps.Logger == nil {
		return
	}
	details["user_id"] = p.props.UserID
	details["gem_id"] = p.props.GemID
	p.deps.Logger.Info(moduleName, message, details)
}
