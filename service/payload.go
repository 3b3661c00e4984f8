package service

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/mbolis/quick-poll/model"
)

// DecodeVotePayload turns the raw "data" field of a vote request into a
// payload variant: an array becomes a ChoicePayload, a string a TextPayload.
// Whether the variant fits the poll is decided later, by Vote.
func DecodeVotePayload(raw []byte) (model.VotePayload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, newError(ErrInvalidPayload, "vote data is required")
	}

	switch raw[0] {
	case '[':
		var ids []int64
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, newError(ErrInvalidPayload, "vote data must be an array of option ids")
		}
		return model.ChoicePayload{OptionIDs: ids}, nil
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, newError(ErrInvalidPayload, "vote data must be a string")
		}
		return model.TextPayload{Text: text}, nil
	}

	return nil, newError(ErrInvalidPayload, "vote data must be an array of option ids or a string")
}
