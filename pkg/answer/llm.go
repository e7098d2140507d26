package answer

import (
	"context"
	"fmt"
	"strings"

	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/llm"
)

const systemPrompt = `Sei l'assistente di approfondimento di Curiow.
Rispondi in italiano, in modo chiaro e accurato, alla domanda dell'utente sul contenuto indicato.
Rispondi SOLO con un oggetto JSON della forma {"response": "<risposta>", "questions": ["<domanda di approfondimento>", ...]}
con al massimo tre domande di approfondimento.`

// LLMAnswerer answers in process by prompting a language model.
type LLMAnswerer struct {
	provider llm.LLMProvider
	opts     []llm.Option
}

var _ deepchat.Answerer = (*LLMAnswerer)(nil)

func NewLLMAnswerer(provider llm.LLMProvider, opts ...llm.Option) *LLMAnswerer {
	return &LLMAnswerer{provider: provider, opts: opts}
}

func (a *LLMAnswerer) Answer(ctx context.Context, req deepchat.AnswerRequest) (*deepchat.AnswerResult, error) {
	opts := append([]llm.Option{llm.WithJSONFormat()}, a.opts...)
	completion, err := a.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildPrompt(req)},
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if object, ok := extractJSONObject(completion); ok {
		if result, err := ParseResponse([]byte(object)); err == nil {
			return result, nil
		}
	}

	// Models do not always honour the format; plain text is still an answer.
	text := strings.TrimSpace(completion)
	if text == "" {
		return nil, ErrMissingAnswer
	}
	return &deepchat.AnswerResult{Answer: text}, nil
}

func buildPrompt(req deepchat.AnswerRequest) string {
	var b strings.Builder
	if req.Description != "" {
		fmt.Fprintf(&b, "Contenuto: %s\n", req.Description)
	}
	if req.Element.Name != "" && req.Element.Name != deepchat.GeneralElement {
		fmt.Fprintf(&b, "Sezione: %s\n", req.Element.Name)
		if req.Element.Title != nil {
			fmt.Fprintf(&b, "Titolo della sezione: %s\n", *req.Element.Title)
		}
		if req.Element.Test != nil {
			fmt.Fprintf(&b, "Testo della sezione: %s\n", *req.Element.Test)
		}
	}
	fmt.Fprintf(&b, "Domanda: %s", req.QuestionText)
	return b.String()
}
