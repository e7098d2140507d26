package identity

import (
	"context"
	"sync"
	"time"

	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/events"

	"github.com/google/uuid"
)

const dayLayout = "2006-01-02"

// DailyStore persists the calendar-day scoped session id of a user.
type DailyStore interface {
	GetDaily(userID, day string) (string, bool)
	SaveDaily(userID, day, sessionID string) error
}

// Manager hands out the identifier of the current conversation of one (user, gem)
// panel and publishes a session.current event whenever it changes.
type Manager struct {
	mu sync.Mutex

	userID string
	gemID  string

	current  string
	daily    string
	dailyDay string
	seenDay  string // day last observed by Rollover

	store    DailyStore
	notifier deepchat.Notifier
	now      func() time.Time
	newID    func() string
}

type Option func(*Manager)

func WithDailyStore(store DailyStore) Option {
	return func(m *Manager) { m.store = store }
}

func WithNotifier(n deepchat.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

func NewManager(userID, gemID string, opts ...Option) *Manager {
	m := &Manager{
		userID: userID,
		gemID:  gemID,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure returns the current id, generating one when none is held. A non-empty
// forcedID switches to that id.
func (m *Manager) Ensure(ctx context.Context, forcedID string) string {
	m.mu.Lock()
	changed := false
	switch {
	case forcedID != "" && forcedID != m.current:
		m.current = forcedID
		changed = true
	case m.current == "":
		m.current = m.newID()
		changed = true
	}
	id := m.current
	m.mu.Unlock()

	if changed {
		m.publish(ctx, id)
	}
	return id
}

// Reset drops the held id; the next Ensure starts a new conversation.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.current = ""
	m.mu.Unlock()
}

func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// DailySessionID returns the id of today's conversation, creating it on the
// first call of each calendar day. It never fails: without a usable store the
// id lives only in this manager.
func (m *Manager) DailySessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyLocked()
}

// Rollover recomputes the daily id and reports whether the date advanced since
// the last computation.
func (m *Manager) Rollover() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.dailyLocked()
	advanced := m.seenDay != m.dailyDay
	m.seenDay = m.dailyDay
	return id, advanced
}

func (m *Manager) dailyLocked() string {
	day := m.now().Format(dayLayout)
	if m.seenDay == "" {
		m.seenDay = day
	}
	if m.dailyDay == day && m.daily != "" {
		return m.daily
	}

	if m.store != nil {
		if id, found := m.store.GetDaily(m.userID, day); found && id != "" {
			m.daily, m.dailyDay = id, day
			return id
		}
	}

	id := m.newID()
	if m.store != nil {
		// Ephemeral on failure.
		_ = m.store.SaveDaily(m.userID, day, id)
	}
	m.daily, m.dailyDay = id, day
	return id
}

func (m *Manager) publish(ctx context.Context, id string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Publish(ctx, events.NewDeepChatEvent(events.KindCurrentSession, m.userID, m.gemID, id, nil))
}
