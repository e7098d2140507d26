// Package deepchat holds the domain model of the per-gem deep-topic conversation:
// sessions, turns, suggestions and the contracts of the collaborators a
// conversation panel talks to.
package deepchat

import (
	"context"
	"errors"
	"strings"
	"time"

	"curiow-be/pkg/events"
)

const (
	// APIType tags every request sent to the answer-generation endpoint.
	APIType = "deep-question"

	// GeneralElement marks suggestions that are not tied to a content section.
	GeneralElement = "general"

	// GeneralGemID identifies the day-scoped conversation that is not bound to a gem.
	GeneralGemID = "general"

	FallbackSessionTitle = "Sessione"
	GenericErrorMessage  = "Si è verificato un errore durante la generazione della risposta"
	TimeoutErrorMessage  = "timeout"
	CanceledErrorMessage = "richiesta annullata"

	maxTitleRunes = 60
)

var (
	ErrSessionNotFound = errors.New("session not found or access denied")
	ErrTurnNotFound    = errors.New("turn not found")
	ErrInvalidFollowUp = errors.New("follow-up index out of range")
	ErrEmptyQuestion   = errors.New("question text is empty")
	ErrPanelClosed     = errors.New("conversation panel is closed")
)

type Origin string

const (
	OriginSuggested Origin = "suggested"
	OriginCustom    Origin = "custom"
)

// ElementContext tags the structured-content section a question relates to.
type ElementContext struct {
	Name  string  `json:"name"`
	Title *string `json:"title"`
	Test  *string `json:"test"` // snippet of the section content
	Step  *int    `json:"step,omitempty"`
}

// IsGeneral reports whether the context is gem-level. A missing context counts as general.
func (e *ElementContext) IsGeneral() bool {
	return e == nil || e.Name == GeneralElement
}

type SuggestionItem struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Tipologia string          `json:"tipologia,omitempty"`
	Element   *ElementContext `json:"element,omitempty"`
}

type TurnStatus string

const (
	TurnPending  TurnStatus = "pending"
	TurnAnswered TurnStatus = "answered"
	TurnFailed   TurnStatus = "failed"
)

// Turn is one question/answer (or question/error) exchange.
// A pending turn carries neither answer nor error; a terminal one carries exactly one.
type Turn struct {
	ID           string          `json:"id"`
	Question     string          `json:"question"`
	Answer       string          `json:"answer,omitempty"`
	Error        string          `json:"error,omitempty"`
	Status       TurnStatus      `json:"status"`
	Loading      bool            `json:"loading"`
	Origin       Origin          `json:"origin"`
	SuggestionID string          `json:"suggestion_id,omitempty"`
	Element      *ElementContext `json:"element,omitempty"`
	FollowUps    []string        `json:"follow_ups,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func NewPendingTurn(id, question string, origin Origin, suggestionID string, element *ElementContext, now time.Time) *Turn {
	return &Turn{
		ID:           id,
		Question:     question,
		Status:       TurnPending,
		Loading:      true,
		Origin:       origin,
		SuggestionID: suggestionID,
		Element:      element,
		CreatedAt:    now,
	}
}

// Resolve moves a pending turn to answered. An empty answer fails the turn instead.
func (t *Turn) Resolve(answer string, followUps []string) {
	if t.Terminal() {
		return
	}
	if strings.TrimSpace(answer) == "" {
		t.Fail(GenericErrorMessage)
		return
	}
	t.Answer = answer
	t.FollowUps = followUps
	t.Error = ""
	t.Status = TurnAnswered
	t.Loading = false
}

// Fail moves a pending turn to failed.
func (t *Turn) Fail(message string) {
	if t.Terminal() {
		return
	}
	if strings.TrimSpace(message) == "" {
		message = GenericErrorMessage
	}
	t.Answer = ""
	t.FollowUps = nil
	t.Error = message
	t.Status = TurnFailed
	t.Loading = false
}

func (t *Turn) Terminal() bool {
	return t.Status != TurnPending
}

// Clone returns a copy that shares nothing mutable with t.
func (t *Turn) Clone() Turn {
	c := *t
	if t.FollowUps != nil {
		c.FollowUps = append([]string(nil), t.FollowUps...)
	}
	if t.Element != nil {
		el := *t.Element
		c.Element = &el
	}
	return c
}

type Session struct {
	ID         string    `json:"id"`
	GemID      string    `json:"gem_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// HistoryEntry is one persisted turn of a session.
type HistoryEntry struct {
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	FollowUps []string        `json:"followUps,omitempty"`
	Element   *ElementContext `json:"element,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store is the durable side of a conversation: session metadata and turn history.
type Store interface {
	CreateSession(ctx context.Context, sessionID, gemID, userID string) (string, error)
	TouchSession(ctx context.Context, sessionID, userID string) error
	ListSessions(ctx context.Context, gemID, userID string, limit int) ([]Session, error)
	FetchHistory(ctx context.Context, sessionID, userID, gemID string) ([]HistoryEntry, error)
	DeleteSession(ctx context.Context, sessionID, userID string) error
	AppendHistory(ctx context.Context, sessionID, userID, gemID string, entry HistoryEntry) error
}

// ElementPayload is the element block of an answer request; absent fields are null.
type ElementPayload struct {
	Name  string  `json:"name"`
	Title *string `json:"title"`
	Test  *string `json:"test"`
}

// AnswerRequest is the body sent to the answer-generation endpoint.
type AnswerRequest struct {
	APIType      string         `json:"apitype"`
	GemID        string         `json:"gemId"`
	Description  string         `json:"description"`
	QuestionText string         `json:"questionText"`
	Element      ElementPayload `json:"element"`
	SessionID    string         `json:"sessionId"`
}

type AnswerResult struct {
	Answer    string
	FollowUps []string
}

// Answerer generates the answer for one question.
type Answerer interface {
	Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error)
}

// Notifier receives the signals a panel emits.
type Notifier interface {
	Publish(ctx context.Context, evt events.DeepChatEvent)
}

// NewAnswerRequest builds the endpoint payload, nulling the element fields that are absent.
func NewAnswerRequest(gemID, description, question, sessionID string, element *ElementContext) AnswerRequest {
	payload := ElementPayload{}
	if element != nil {
		payload.Name = element.Name
		payload.Title = element.Title
		payload.Test = element.Test
	}
	return AnswerRequest{
		APIType:      APIType,
		GemID:        gemID,
		Description:  description,
		QuestionText: question,
		Element:      payload,
		SessionID:    sessionID,
	}
}

// TitleFromQuestion derives a session title from its first question.
func TitleFromQuestion(question string) string {
	question = strings.Join(strings.Fields(question), " ")
	runes := []rune(question)
	if len(runes) <= maxTitleRunes {
		return question
	}
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
}
