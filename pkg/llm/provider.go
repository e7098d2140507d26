package llm

import (
	"context"
)

// Message is a chat message in a provider-agnostic format.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	JSON        bool // ask the backend to constrain output to a JSON object
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithJSONFormat() Option {
	return func(o *Options) {
		o.JSON = true
	}
}

// LLMProvider is the contract of a text-generation backend.
type LLMProvider interface {
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)
}
