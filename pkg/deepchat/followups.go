package deepchat

import "strings"

// FollowUpTexts extracts follow-up questions from a decoded JSON value. Items may
// be plain strings or objects carrying the text under "question" or "text".
func FollowUpTexts(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var text string
		switch it := item.(type) {
		case string:
			text = it
		case map[string]interface{}:
			if q, ok := it["question"].(string); ok {
				text = q
			} else if q, ok := it["text"].(string); ok {
				text = q
			}
		}
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
