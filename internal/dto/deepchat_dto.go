package dto

import "time"

type ElementDTO struct {
	Name  string  `json:"name" validate:"required"`
	Title *string `json:"title"`
	Test  *string `json:"test"`
	Step  *int    `json:"step,omitempty"`
}

type SuggestionDTO struct {
	Id        string      `json:"id" validate:"required"`
	Text      string      `json:"text" validate:"required"`
	Tipologia string      `json:"tipologia,omitempty"`
	Element   *ElementDTO `json:"element,omitempty" validate:"omitempty"`
}

// OpenChatRequest mounts (or re-opens) the panel of a gem. Suggestions are the
// gem's own candidate questions; EventSuggestions come with the open signal.
type OpenChatRequest struct {
	Description      string          `json:"description" validate:"max=4000"`
	Suggestions      []SuggestionDTO `json:"suggestions" validate:"dive"`
	EventSuggestions []SuggestionDTO `json:"event_suggestions" validate:"dive"`
}

type AskRequest struct {
	Question     string      `json:"question" validate:"required,max=2000"`
	Origin       string      `json:"origin" validate:"omitempty,oneof=suggested custom"`
	SuggestionId string      `json:"suggestion_id"`
	Element      *ElementDTO `json:"element,omitempty" validate:"omitempty"`
}

type NewSessionRequest struct {
	Suggestions []SuggestionDTO `json:"suggestions" validate:"dive"`
}

// DeepChatCommand is an open/new/use signal received from another service.
type DeepChatCommand struct {
	UserId      string          `json:"user_id"`
	GemId       string          `json:"gem_id"`
	SessionId   string          `json:"session_id"`
	Description string          `json:"description"`
	Suggestions []SuggestionDTO `json:"suggestions"`
}

type TurnResponse struct {
	Id           string      `json:"id"`
	Question     string      `json:"question"`
	Answer       string      `json:"answer,omitempty"`
	Error        string      `json:"error,omitempty"`
	Status       string      `json:"status"`
	Loading      bool        `json:"loading"`
	Origin       string      `json:"origin"`
	SuggestionId string      `json:"suggestion_id,omitempty"`
	Element      *ElementDTO `json:"element,omitempty"`
	FollowUps    []string    `json:"follow_ups"`
	CreatedAt    time.Time   `json:"created_at"`
}

type PanelResponse struct {
	GemId          string          `json:"gem_id"`
	SessionId      string          `json:"session_id"`
	DailySessionId string          `json:"daily_session_id"`
	State          string          `json:"state"`
	HasHistory     bool            `json:"has_history"`
	Turns          []TurnResponse  `json:"turns"`
	Suggestions    []SuggestionDTO `json:"suggestions"`
}

type SessionResponse struct {
	Id         string    `json:"id"`
	GemId      string    `json:"gem_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

type DailySessionResponse struct {
	SessionId string `json:"session_id"`
	Day       string `json:"day"`
}
