package service

import (
	"curiow-be/internal/dto"
	"curiow-be/pkg/deepchat"
	"curiow-be/pkg/deepchat/conversation"
)

func elementFromDTO(e *dto.ElementDTO) *deepchat.ElementContext {
	if e == nil {
		return nil
	}
	return &deepchat.ElementContext{Name: e.Name, Title: e.Title, Test: e.Test, Step: e.Step}
}

func elementToDTO(e *deepchat.ElementContext) *dto.ElementDTO {
	if e == nil {
		return nil
	}
	return &dto.ElementDTO{Name: e.Name, Title: e.Title, Test: e.Test, Step: e.Step}
}

func suggestionsFromDTO(items []dto.SuggestionDTO) []deepchat.SuggestionItem {
	out := make([]deepchat.SuggestionItem, 0, len(items))
	for _, item := range items {
		out = append(out, deepchat.SuggestionItem{
			ID:        item.Id,
			Text:      item.Text,
			Tipologia: item.Tipologia,
			Element:   elementFromDTO(item.Element),
		})
	}
	return out
}

func askFromDTO(request *dto.AskRequest) conversation.AskRequest {
	return conversation.AskRequest{
		Question:     request.Question,
		Origin:       deepchat.Origin(request.Origin),
		SuggestionID: request.SuggestionId,
		Element:      elementFromDTO(request.Element),
	}
}

func turnToDTO(t deepchat.Turn) *dto.TurnResponse {
	followUps := t.FollowUps
	if followUps == nil {
		followUps = []string{}
	}
	return &dto.TurnResponse{
		Id:           t.ID,
		Question:     t.Question,
		Answer:       t.Answer,
		Error:        t.Error,
		Status:       string(t.Status),
		Loading:      t.Loading,
		Origin:       string(t.Origin),
		SuggestionId: t.SuggestionID,
		Element:      elementToDTO(t.Element),
		FollowUps:    followUps,
		CreatedAt:    t.CreatedAt,
	}
}

func panelToDTO(v conversation.View) *dto.PanelResponse {
	turns := make([]dto.TurnResponse, 0, len(v.Turns))
	for _, t := range v.Turns {
		turns = append(turns, *turnToDTO(t))
	}
	suggestions := make([]dto.SuggestionDTO, 0, len(v.Suggestions))
	for _, s := range v.Suggestions {
		suggestions = append(suggestions, dto.SuggestionDTO{
			Id:        s.ID,
			Text:      s.Text,
			Tipologia: s.Tipologia,
			Element:   elementToDTO(s.Element),
		})
	}
	return &dto.PanelResponse{
		GemId:          v.GemID,
		SessionId:      v.SessionID,
		DailySessionId: v.DailySessionID,
		State:          string(v.State),
		HasHistory:     v.HasHistory,
		Turns:          turns,
		Suggestions:    suggestions,
	}
}
