package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// RelayRequest is the JSON body accepted by the relay endpoint.
// BotToken and ChatID are only consulted when the relay has no
// server-side credentials of its own.
type RelayRequest struct {
	Submission
	BotToken string     `json:"botToken,omitempty"`
	ChatID   FlexString `json:"chatId,omitempty"`
}

// RelayResponse is the normalized envelope returned by the relay endpoint.
type RelayResponse struct {
	Success          bool            `json:"success,omitempty"`
	Message          string          `json:"message,omitempty"`
	Error            string          `json:"error,omitempty"`
	Details          string          `json:"details,omitempty"`
	Hint             string          `json:"hint,omitempty"`
	TelegramResponse json.RawMessage `json:"telegramResponse,omitempty"`
}

// FlexString decodes from either a JSON string or a JSON number.
// Chat ids are commonly written both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(f))), nil
}

func (f FlexString) String() string { return string(f) }
