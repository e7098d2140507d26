package conversation

import "curiow-be/pkg/deepchat"

// suggestionPools tracks the three candidate-question pools of a panel.
// Items are keyed by id only: equal text with different element context stays distinct.
type suggestionPools struct {
	dynamic []deepchat.SuggestionItem // supplied by the current invocation, non-general
	general []deepchat.SuggestionItem // gem-level
	section []deepchat.SuggestionItem // derived once from the mount props

	mountGeneral []deepchat.SuggestionItem
	dismissed    bool
}

func newSuggestionPools(props []deepchat.SuggestionItem) *suggestionPools {
	general, section := splitGeneral(props)
	return &suggestionPools{
		general:      general,
		section:      section,
		mountGeneral: general,
	}
}

// applyInvocation replaces the pools fed by an open/new-session signal. General
// items in the payload replace the general pool; otherwise the mount pool is kept.
func (s *suggestionPools) applyInvocation(items []deepchat.SuggestionItem) {
	general, dynamic := splitGeneral(items)
	s.dynamic = dynamic
	if len(general) > 0 {
		s.general = general
	} else {
		s.general = s.mountGeneral
	}
}

func (s *suggestionPools) dismiss() {
	s.dismissed = true
}

func (s *suggestionPools) restore() {
	s.dismissed = false
}

// visible returns the groups to show. Nothing is shown once a turn exists or the
// groups were dismissed by a dispatch; general items are hidden when the user
// already has history for the gem.
func (s *suggestionPools) visible(turnCount int, hasHistory bool) []deepchat.SuggestionItem {
	if s.dismissed || turnCount > 0 {
		return []deepchat.SuggestionItem{}
	}

	out := make([]deepchat.SuggestionItem, 0, len(s.dynamic)+len(s.general)+len(s.section))
	out = append(out, s.dynamic...)
	if !hasHistory {
		out = append(out, s.general...)
	}
	out = append(out, s.section...)
	return out
}

func splitGeneral(items []deepchat.SuggestionItem) (general, other []deepchat.SuggestionItem) {
	for _, item := range items {
		if item.Element.IsGeneral() {
			general = append(general, item)
		} else {
			other = append(other, item)
		}
	}
	return general, other
}
