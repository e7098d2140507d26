package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"curiow-be/pkg/deepchat"
)

// Unix timestamps above this are taken as milliseconds.
const millisThreshold = 1e12

var (
	questionKeys  = []string{"question", "questionText"}
	answerKeys    = []string{"answer", "response"}
	followUpKeys  = []string{"followUps", "follow_ups", "questions"}
	createdAtKeys = []string{"createdAt", "created_at", "timestamp"}
)

// decodeHistory turns a stored history document into an entry. Documents written
// by other producers use alternative field names and timestamp encodings;
// fallback is used when the document carries no usable time.
func decodeHistory(doc []byte, fallback time.Time) (deepchat.HistoryEntry, error) {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return deepchat.HistoryEntry{}, fmt.Errorf("decode history document: %w", err)
	}

	entry := deepchat.HistoryEntry{
		Question:  firstString(raw, questionKeys),
		Answer:    firstString(raw, answerKeys),
		Element:   decodeElement(raw["element"]),
		CreatedAt: fallback,
	}
	for _, key := range followUpKeys {
		if v, ok := raw[key]; ok {
			entry.FollowUps = deepchat.FollowUpTexts(v)
			break
		}
	}
	for _, key := range createdAtKeys {
		if t, ok := coerceTime(raw[key]); ok {
			entry.CreatedAt = t
			break
		}
	}
	return entry, nil
}

func encodeHistory(entry deepchat.HistoryEntry) ([]byte, error) {
	doc, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode history document: %w", err)
	}
	return doc, nil
}

func firstString(raw map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func decodeElement(v interface{}) *deepchat.ElementContext {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var el deepchat.ElementContext
	if err := json.Unmarshal(b, &el); err != nil || el.Name == "" {
		return nil
	}
	return &el
}

// coerceTime accepts RFC3339 strings, unix seconds or milliseconds, and
// {seconds, nanoseconds} objects (with or without leading underscores).
func coerceTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC(), true
		}
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return fromUnix(n), true
		}
	case json.Number:
		if n, err := t.Float64(); err == nil {
			return fromUnix(n), true
		}
	case float64:
		return fromUnix(t), true
	case map[string]interface{}:
		secs, ok := numberField(t, "seconds", "_seconds")
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := numberField(t, "nanoseconds", "_nanoseconds")
		return time.Unix(int64(secs), int64(nanos)).UTC(), true
	}
	return time.Time{}, false
}

func fromUnix(n float64) time.Time {
	if n > millisThreshold {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

func numberField(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch n := m[key].(type) {
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		case float64:
			return n, true
		}
	}
	return 0, false
}
