package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"curiow-be/internal/pkg/logger"
	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeStore struct {
	mu sync.Mutex

	creates    []string
	createErrs []error
	touches    []string
	appended   map[string][]deepchat.HistoryEntry
	history    map[string][]deepchat.HistoryEntry
	sessions   []deepchat.Session
	deleted    []string

	fetchErr  error
	deleteErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appended: map[string][]deepchat.HistoryEntry{},
		history:  map[string][]deepchat.HistoryEntry{},
	}
}

func (s *fakeStore) CreateSession(_ context.Context, sessionID, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, sessionID)
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return sessionID, nil
}

func (s *fakeStore) TouchSession(_ context.Context, sessionID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches = append(s.touches, sessionID)
	return nil
}

func (s *fakeStore) ListSessions(_ context.Context, _, _ string, _ int) ([]deepchat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions, s.listErr
}

func (s *fakeStore) FetchHistory(_ context.Context, sessionID, _, _ string) ([]deepchat.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.history[sessionID], nil
}

func (s *fakeStore) DeleteSession(_ context.Context, sessionID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, sessionID)
	return nil
}

func (s *fakeStore) AppendHistory(_ context.Context, sessionID, _, _ string, entry deepchat.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.deleted {
		if id == sessionID {
			return deepchat.ErrSessionNotFound
		}
	}
	s.appended[sessionID] = append(s.appended[sessionID], entry)
	return nil
}

func (s *fakeStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates)
}

func (s *fakeStore) createdIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.creates...)
}

func (s *fakeStore) touched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.touches...)
}

func (s *fakeStore) appendedTo(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appended[sessionID])
}

type answerFunc func(ctx context.Context, req deepchat.AnswerRequest) (*deepchat.AnswerResult, error)

type fakeAnswerer struct {
	mu       sync.Mutex
	fn       answerFunc
	requests []deepchat.AnswerRequest
}

func (a *fakeAnswerer) Answer(ctx context.Context, req deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	fn := a.fn
	a.mu.Unlock()
	return fn(ctx, req)
}

func answerWith(answer string, followUps ...string) *fakeAnswerer {
	return &fakeAnswerer{fn: func(context.Context, deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
		return &deepchat.AnswerResult{Answer: answer, FollowUps: followUps}, nil
	}}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.DeepChatEvent
}

func (n *recordingNotifier) Publish(_ context.Context, evt events.DeepChatEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) kinds() []events.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]events.Kind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

func (n *recordingNotifier) count(kind events.Kind) int {
	c := 0
	for _, k := range n.kinds() {
		if k == kind {
			c++
		}
	}
	return c
}

type fixture struct {
	store    *fakeStore
	answerer *fakeAnswerer
	notifier *recordingNotifier
	panel    *Panel
}

func sequentialIDs() func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("id-%d", atomic.AddInt64(&n, 1))
	}
}

func newFixture(t *testing.T, answerer *fakeAnswerer, props Props, opts Options) *fixture {
	t.Helper()
	if props.UserID == "" {
		props.UserID = "user-1"
	}
	if props.GemID == "" {
		props.GemID = "gem-1"
	}
	if opts.NewID == nil {
		opts.NewID = sequentialIDs()
	}

	f := &fixture{
		store:    newFakeStore(),
		answerer: answerer,
		notifier: &recordingNotifier{},
	}
	f.panel = NewPanel(context.Background(), props, Deps{
		Store:    f.store,
		Answerer: answerer,
		Notifier: f.notifier,
		Logger:   logger.NewNopLogger(),
	}, opts)
	t.Cleanup(f.panel.Close)
	return f
}

func assertTerminal(t *testing.T, turn deepchat.Turn) {
	t.Helper()
	assert.False(t, turn.Loading)
	assert.True(t, (turn.Answer != "") != (turn.Error != ""), "exactly one of answer/error: %+v", turn)
}

// --- scenarios ---

func TestAskThenSuccess(t *testing.T) {
	f := newFixture(t, answerWith("La fotosintesi è...", "E la respirazione?"), Props{Description: "Le piante"}, Options{})
	ctx := context.Background()

	turn, err := f.panel.Ask(ctx, AskRequest{Question: "Che cos'è la fotosintesi?", Origin: deepchat.OriginCustom})
	require.NoError(t, err)

	assertTerminal(t, turn)
	assert.Equal(t, "Che cos'è la fotosintesi?", turn.Question)
	assert.Equal(t, "La fotosintesi è...", turn.Answer)
	assert.Equal(t, []string{"E la respirazione?"}, turn.FollowUps)
	assert.Equal(t, deepchat.TurnAnswered, turn.Status)

	req := f.answerer.requests[0]
	assert.Equal(t, deepchat.APIType, req.APIType)
	assert.Equal(t, "gem-1", req.GemID)
	assert.Equal(t, "Le piante", req.Description)
	assert.Equal(t, f.panel.View().SessionID, req.SessionID)

	f.panel.Close()
	assert.Len(t, f.store.appended[req.SessionID], 1)
	assert.Equal(t, []string{req.SessionID}, f.store.touches)
	assert.Equal(t, 1, f.notifier.count(events.KindSessionsRefresh))
	assert.Equal(t, 1, f.notifier.count(events.KindTurnResolved))
}

func TestAskThenFailure(t *testing.T) {
	f := newFixture(t, &fakeAnswerer{fn: func(context.Context, deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
		return nil, errors.New("timeout")
	}}, Props{}, Options{})

	turn, err := f.panel.Ask(context.Background(), AskRequest{Question: "X?", Origin: deepchat.OriginCustom})
	require.NoError(t, err)

	assertTerminal(t, turn)
	assert.Equal(t, "timeout", turn.Error)
	assert.Empty(t, turn.Answer)
	assert.Equal(t, deepchat.TurnFailed, turn.Status)

	f.panel.Close()
	assert.Empty(t, f.store.touches, "failed turns do not touch the session")
	assert.Equal(t, 0, f.notifier.count(events.KindSessionsRefresh))
}

func TestFailureDoesNotInvalidateOtherTurns(t *testing.T) {
	calls := int32(0)
	f := newFixture(t, &fakeAnswerer{fn: func(context.Context, deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("boom")
		}
		return &deepchat.AnswerResult{Answer: "ok"}, nil
	}}, Props{}, Options{})
	ctx := context.Background()

	first, err := f.panel.Ask(ctx, AskRequest{Question: "A?"})
	require.NoError(t, err)
	second, err := f.panel.Ask(ctx, AskRequest{Question: "A?"})
	require.NoError(t, err)

	assert.Equal(t, "boom", first.Error)
	assert.Equal(t, "ok", second.Answer)
	assert.NotEqual(t, first.ID, second.ID, "repeated questions are not de-duplicated")

	view := f.panel.View()
	require.Len(t, view.Turns, 2)
	assert.Equal(t, "boom", view.Turns[0].Error)
	assert.Equal(t, "ok", view.Turns[1].Answer)
}

func TestFollowUpClickCreatesCustomTurn(t *testing.T) {
	f := newFixture(t, answerWith("Risposta", "Y?"), Props{}, Options{})
	ctx := context.Background()

	title := "Mito"
	first, err := f.panel.Ask(ctx, AskRequest{
		Question:     "X?",
		Origin:       deepchat.OriginSuggested,
		SuggestionID: "sugg-1",
		Element:      &deepchat.ElementContext{Name: "myth", Title: &title},
	})
	require.NoError(t, err)
	assert.Equal(t, deepchat.OriginSuggested, first.Origin)

	second, err := f.panel.AskFollowUp(ctx, first.ID, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "Y?", second.Question)
	assert.Equal(t, deepchat.OriginCustom, second.Origin)

	view := f.panel.View()
	require.Len(t, view.Turns, 2)
	assert.Equal(t, "Y?", view.Turns[1].Question)

	_, err = f.panel.AskFollowUp(ctx, first.ID, 5, false)
	assert.ErrorIs(t, err, deepchat.ErrInvalidFollowUp)
	_, err = f.panel.AskFollowUp(ctx, "missing", 0, false)
	assert.ErrorIs(t, err, deepchat.ErrTurnNotFound)
}

func TestDeleteActiveSessionResetsPanel(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	ctx := context.Background()

	_, err := f.panel.UseExistingSession(ctx, "S1")
	require.NoError(t, err)
	_, err = f.panel.Ask(ctx, AskRequest{Question: "Q?"})
	require.NoError(t, err)
	require.Equal(t, "S1", f.panel.View().SessionID)

	require.NoError(t, f.panel.DeleteSession(ctx, "S1"))

	view := f.panel.View()
	assert.Empty(t, view.Turns)
	assert.Equal(t, StateIdle, view.State)
	assert.Equal(t, "", view.SessionID)
	assert.Equal(t, 1, f.notifier.count(events.KindNewSession))
	assert.Equal(t, []string{"S1"}, f.store.deleted)
}

func TestDeleteOtherSessionKeepsConversation(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	ctx := context.Background()

	_, err := f.panel.Ask(ctx, AskRequest{Question: "Q?"})
	require.NoError(t, err)

	require.NoError(t, f.panel.DeleteSession(ctx, "other"))
	assert.Len(t, f.panel.View().Turns, 1)
	assert.Equal(t, 0, f.notifier.count(events.KindNewSession))
}

func TestDeleteFailureLeavesPanelUntouched(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	ctx := context.Background()
	f.store.deleteErr = errors.New("permission denied")

	_, err := f.panel.Ask(ctx, AskRequest{Question: "Q?"})
	require.NoError(t, err)
	sessionID := f.panel.View().SessionID

	err = f.panel.DeleteSession(ctx, sessionID)
	assert.EqualError(t, err, "permission denied")
	assert.Len(t, f.panel.View().Turns, 1)
	assert.Equal(t, sessionID, f.panel.View().SessionID)
}

// --- properties ---

func TestLazySessionCreation(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	ctx := context.Background()

	f.panel.Open(ctx, nil)
	_ = f.panel.View()
	assert.Equal(t, 0, f.store.createCount(), "no session before the first question")

	for i := 0; i < 3; i++ {
		_, err := f.panel.Ask(ctx, AskRequest{Question: fmt.Sprintf("Q%d?", i)})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.store.createCount())
}

func TestSessionCreationRetriedAfterFailure(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	f.store.createErrs = []error{errors.New("permission denied"), nil}
	ctx := context.Background()

	first, err := f.panel.Ask(ctx, AskRequest{Question: "Q1?"})
	require.NoError(t, err)
	assert.Equal(t, "A", first.Answer, "the turn is still answered when creation fails")

	_, err = f.panel.Ask(ctx, AskRequest{Question: "Q2?"})
	require.NoError(t, err)
	_, err = f.panel.Ask(ctx, AskRequest{Question: "Q3?"})
	require.NoError(t, err)

	assert.Equal(t, 2, f.store.createCount(), "one failed attempt, one successful retry, no more")
}

func TestConcurrentAsksCreateSessionOnce(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, &fakeAnswerer{fn: func(ctx context.Context, _ deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
		<-release
		return &deepchat.AnswerResult{Answer: "A"}, nil
	}}, Props{}, Options{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.panel.AskAsync(ctx, AskRequest{Question: fmt.Sprintf("Q%d?", i)})
		require.NoError(t, err)
	}

	view := f.panel.View()
	require.Len(t, view.Turns, 5)
	for _, turn := range view.Turns {
		assert.True(t, turn.Loading)
		assert.Empty(t, turn.Answer)
		assert.Empty(t, turn.Error)
	}

	close(release)
	require.Eventually(t, func() bool {
		for _, turn := range f.panel.View().Turns {
			if turn.Loading {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	for _, turn := range f.panel.View().Turns {
		assertTerminal(t, turn)
	}
	assert.Equal(t, 1, f.store.createCount())
}

func TestOutOfOrderResolutionKeepsTurnsApart(t *testing.T) {
	gates := map[string]chan struct{}{"slow?": make(chan struct{}), "fast?": make(chan struct{})}
	f := newFixture(t, &fakeAnswerer{fn: func(ctx context.Context, req deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
		<-gates[req.QuestionText]
		return &deepchat.AnswerResult{Answer: "answer to " + req.QuestionText}, nil
	}}, Props{}, Options{})
	ctx := context.Background()

	slow, err := f.panel.AskAsync(ctx, AskRequest{Question: "slow?"})
	require.NoError(t, err)
	fast, err := f.panel.AskAsync(ctx, AskRequest{Question: "fast?"})
	require.NoError(t, err)

	close(gates["fast?"])
	require.Eventually(t, func() bool {
		turn, _ := f.panel.Turn(fast.ID)
		return !turn.Loading
	}, 2*time.Second, 10*time.Millisecond)

	pending, err := f.panel.Turn(slow.ID)
	require.NoError(t, err)
	assert.True(t, pending.Loading)

	close(gates["slow?"])
	require.Eventually(t, func() bool {
		turn, _ := f.panel.Turn(slow.ID)
		return !turn.Loading
	}, 2*time.Second, 10*time.Millisecond)

	s, _ := f.panel.Turn(slow.ID)
	q, _ := f.panel.Turn(fast.ID)
	assert.Equal(t, "answer to slow?", s.Answer)
	assert.Equal(t, "answer to fast?", q.Answer)
}

func TestSuggestionsHiddenOnceAsked(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{Suggestions: []deepchat.SuggestionItem{
		{ID: "g1", Text: "Di cosa parla?", Element: &deepchat.ElementContext{Name: deepchat.GeneralElement}},
		{ID: "s1", Text: "Perché?", Element: &deepchat.ElementContext{Name: "myth"}},
	}}, Options{})
	ctx := context.Background()

	assert.Len(t, f.panel.View().Suggestions, 2)

	_, err := f.panel.Ask(ctx, AskRequest{Question: "Perché?", Origin: deepchat.OriginSuggested, SuggestionID: "s1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Empty(t, f.panel.View().Suggestions)
	}
	f.panel.Open(ctx, []deepchat.SuggestionItem{{ID: "d1", Text: "Nuova", Element: &deepchat.ElementContext{Name: "fact"}}})
	assert.Empty(t, f.panel.View().Suggestions)
}

func TestGeneralSuggestionsHiddenWithPriorHistory(t *testing.T) {
	store := newFakeStore()
	store.sessions = []deepchat.Session{{ID: "old"}}

	p := NewPanel(context.Background(), Props{UserID: "u", GemID: "g", Suggestions: []deepchat.SuggestionItem{
		{ID: "g1", Text: "Di cosa parla?", Element: &deepchat.ElementContext{Name: deepchat.GeneralElement}},
		{ID: "s1", Text: "Perché?", Element: &deepchat.ElementContext{Name: "myth"}},
	}}, Deps{Store: store, Answerer: answerWith("A"), Logger: logger.NewNopLogger()}, Options{})
	defer p.Close()

	view := p.View()
	assert.True(t, view.HasHistory)
	require.Len(t, view.Suggestions, 1)
	assert.Equal(t, "s1", view.Suggestions[0].ID)
}

func TestHistoryHydrationRoundTrip(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	f.store.history["S1"] = []deepchat.HistoryEntry{
		{Question: "Q1", Answer: "A1", CreatedAt: base},
		{Question: "Q2", Answer: "A2", FollowUps: []string{"F"}, CreatedAt: base.Add(time.Minute)},
		{Question: "Q3", Answer: "A3", CreatedAt: base.Add(2 * time.Minute)},
	}

	view, err := f.panel.UseExistingSession(context.Background(), "S1")
	require.NoError(t, err)

	assert.Equal(t, StateHistoryHydrated, view.State)
	assert.Equal(t, "S1", view.SessionID)
	require.Len(t, view.Turns, 3)
	for i, turn := range view.Turns {
		assert.False(t, turn.Loading)
		assert.Equal(t, fmt.Sprintf("Q%d", i+1), turn.Question)
		assert.Equal(t, fmt.Sprintf("A%d", i+1), turn.Answer)
	}
	assert.Equal(t, []string{"F"}, view.Turns[1].FollowUps)
	assert.Empty(t, view.Suggestions)

	// The session already exists: asking in it must not create it again.
	_, err = f.panel.Ask(context.Background(), AskRequest{Question: "Q4"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.createCount())
}

func TestHistoryFetchFailureStaysIdle(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	ctx := context.Background()
	f.store.fetchErr = errors.New("unavailable")

	view, err := f.panel.UseExistingSession(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, view.State)
	assert.Empty(t, view.Turns)
	assert.NotEqual(t, "S1", view.SessionID, "an unreadable session is not adopted")

	f.store.fetchErr = nil
	_, err = f.panel.Ask(ctx, AskRequest{Question: "Q?"})
	require.NoError(t, err)

	sessionID := f.panel.View().SessionID
	require.NotEmpty(t, sessionID)
	assert.NotEqual(t, "S1", sessionID)
	assert.Equal(t, []string{sessionID}, f.store.createdIDs(), "the next question creates its own session")
	require.Eventually(t, func() bool { return f.store.appendedTo(sessionID) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, f.store.appendedTo("S1"))
}

func TestUseUnknownSessionStartsFresh(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	ctx := context.Background()

	_, err := f.panel.Ask(ctx, AskRequest{Question: "Q?"})
	require.NoError(t, err)
	before := f.panel.View().SessionID

	f.store.fetchErr = deepchat.ErrSessionNotFound
	view, err := f.panel.UseExistingSession(ctx, "VICTIM")
	assert.ErrorIs(t, err, deepchat.ErrSessionNotFound)
	assert.Empty(t, view.Turns)
	assert.NotEqual(t, "VICTIM", view.SessionID)
	assert.Equal(t, 0, f.notifier.count(events.KindUseSession))

	f.store.fetchErr = nil
	_, err = f.panel.Ask(ctx, AskRequest{Question: "Q2?"})
	require.NoError(t, err)
	after := f.panel.View().SessionID
	assert.NotEqual(t, before, after)
	assert.NotEqual(t, "VICTIM", after)
	assert.Equal(t, []string{before, after}, f.store.createdIDs())
	assert.Zero(t, f.store.appendedTo("VICTIM"))
}

func TestAnswerAfterDeleteIsNotRecorded(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, &fakeAnswerer{fn: func(ctx context.Context, _ deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
		<-release
		return &deepchat.AnswerResult{Answer: "A"}, nil
	}}, Props{}, Options{})
	ctx := context.Background()

	pending, err := f.panel.AskAsync(ctx, AskRequest{Question: "Q?"})
	require.NoError(t, err)
	sessionID := f.panel.View().SessionID
	require.NotEmpty(t, sessionID)

	require.NoError(t, f.panel.DeleteSession(ctx, sessionID))
	_, err = f.panel.Turn(pending.ID)
	assert.ErrorIs(t, err, deepchat.ErrTurnNotFound)

	close(release)
	f.panel.Close()

	assert.Zero(t, f.store.appendedTo(sessionID))
	assert.Empty(t, f.store.touched(), "a deleted session is not touched back to life")
}

func TestNewSessionClearsTurns(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})
	ctx := context.Background()

	_, err := f.panel.Ask(ctx, AskRequest{Question: "Q?"})
	require.NoError(t, err)
	old := f.panel.View().SessionID

	view := f.panel.NewSession(ctx, []deepchat.SuggestionItem{{ID: "d1", Text: "Nuova", Element: &deepchat.ElementContext{Name: "fact"}}})
	assert.Equal(t, StateIdle, view.State)
	assert.Empty(t, view.Turns)
	require.Len(t, view.Suggestions, 1)
	assert.Equal(t, "d1", view.Suggestions[0].ID)

	_, err = f.panel.Ask(ctx, AskRequest{Question: "Q2?"})
	require.NoError(t, err)
	assert.NotEqual(t, old, f.panel.View().SessionID)
	assert.Equal(t, 2, f.store.createCount())
}

func TestDispatchTimeout(t *testing.T) {
	f := newFixture(t, &fakeAnswerer{fn: func(ctx context.Context, _ deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}, Props{}, Options{DispatchTimeout: 20 * time.Millisecond})

	turn, err := f.panel.Ask(context.Background(), AskRequest{Question: "Q?"})
	require.NoError(t, err)
	assertTerminal(t, turn)
	assert.Equal(t, deepchat.TimeoutErrorMessage, turn.Error)
}

func TestCancelPendingTurn(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, &fakeAnswerer{fn: func(ctx context.Context, _ deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}, Props{}, Options{})

	pending, err := f.panel.AskAsync(context.Background(), AskRequest{Question: "Q?"})
	require.NoError(t, err)
	<-started

	require.NoError(t, f.panel.Cancel(pending.ID))
	require.Eventually(t, func() bool {
		turn, _ := f.panel.Turn(pending.ID)
		return !turn.Loading
	}, 2*time.Second, 10*time.Millisecond)

	turn, _ := f.panel.Turn(pending.ID)
	assert.Equal(t, deepchat.CanceledErrorMessage, turn.Error)
	assert.ErrorIs(t, f.panel.Cancel(pending.ID), deepchat.ErrTurnNotFound)
}

func TestAskValidation(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{}, Options{})

	_, err := f.panel.Ask(context.Background(), AskRequest{Question: "   "})
	assert.ErrorIs(t, err, deepchat.ErrEmptyQuestion)

	f.panel.Close()
	_, err = f.panel.Ask(context.Background(), AskRequest{Question: "Q?"})
	assert.ErrorIs(t, err, deepchat.ErrPanelClosed)
}

func TestGeneralPanelUsesDailySessionAndRollsOver(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	f := newFixture(t, answerWith("A"), Props{GemID: deepchat.GeneralGemID}, Options{Clock: clock})
	ctx := context.Background()

	day1 := f.panel.View().SessionID
	assert.Equal(t, day1, f.panel.DailySessionID())

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	f.panel.CheckRollover(ctx)

	day2 := f.panel.View().SessionID
	assert.NotEqual(t, day1, day2)
	assert.Equal(t, day2, f.panel.DailySessionID())
}

func TestGemPanelNotDisruptedByRollover(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	f := newFixture(t, answerWith("A"), Props{}, Options{Clock: clock})
	ctx := context.Background()

	_, err := f.panel.Ask(ctx, AskRequest{Question: "Q?"})
	require.NoError(t, err)
	session := f.panel.View().SessionID
	daily := f.panel.DailySessionID()

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	f.panel.CheckRollover(ctx)

	assert.Equal(t, session, f.panel.View().SessionID)
	assert.NotEqual(t, daily, f.panel.DailySessionID())
	assert.Len(t, f.panel.View().Turns, 1)
}

func TestGeneralPanelReturnsToDailySession(t *testing.T) {
	f := newFixture(t, answerWith("A"), Props{GemID: deepchat.GeneralGemID}, Options{})
	ctx := context.Background()
	daily := f.panel.DailySessionID()
	f.store.history["OLD"] = []deepchat.HistoryEntry{{Question: "Q", Answer: "A"}}

	view, err := f.panel.UseExistingSession(ctx, "OLD")
	require.NoError(t, err)
	require.Equal(t, "OLD", view.SessionID)

	view = f.panel.NewSession(ctx, nil)
	assert.Equal(t, daily, view.SessionID, "leaving a reloaded session goes back to today's")

	f.store.fetchErr = errors.New("unavailable")
	view, err = f.panel.UseExistingSession(ctx, "OLD")
	require.NoError(t, err)
	assert.Equal(t, daily, view.SessionID)

	view = f.panel.NewSession(ctx, nil)
	assert.NotEqual(t, daily, view.SessionID, "a new conversation from today's starts an undated one")
}
