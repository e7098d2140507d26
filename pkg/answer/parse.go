// Package answer implements the collaborators that generate the answer to a
// deep-chat question.
package answer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"curiow-be/pkg/deepchat"
)

var ErrMissingAnswer = errors.New("answer missing from response")

var (
	answerKeys   = []string{"response", "answer", "result", "text"}
	followUpKeys = []string{"questions", "followUps", "follow_ups"}
)

// ParseResponse reads the answer and the follow-up questions out of a JSON
// response body. The answer may sit under any of several keys.
func ParseResponse(body []byte) (*deepchat.AnswerResult, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(body), &raw); err != nil {
		return nil, fmt.Errorf("decode answer response: %w", err)
	}

	result := &deepchat.AnswerResult{}
	for _, key := range answerKeys {
		if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
			result.Answer = s
			break
		}
	}
	if result.Answer == "" {
		return nil, ErrMissingAnswer
	}

	for _, key := range followUpKeys {
		if v, ok := raw[key]; ok {
			result.FollowUps = deepchat.FollowUpTexts(v)
			break
		}
	}
	return result, nil
}

// extractJSONObject returns the outermost {...} of a model completion, which
// may wrap the object in prose or code fences.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
