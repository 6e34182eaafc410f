package types

import "encoding/json"

// MessageContext is one turn of prior chat history handed to the
// generation collaborator.
type MessageContext struct {
	Role    MessageUserRole `json:"role"`
	Content string          `json:"content"`
}

type MessageContent interface {
	Bytes() json.RawMessage
	Type() MessageType
}

type TextMessage struct {
	Text string
}

func (t *TextMessage) Bytes() json.RawMessage {
	return json.RawMessage(t.Text)
}

func (t *TextMessage) Type() MessageType {
	return MESSAGE_TYPE_TEXT
}

const AssistantFailedMessage = "Sorry, something went wrong while replying."
