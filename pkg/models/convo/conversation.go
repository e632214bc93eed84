package convo

import (
	"encoding/json"
	"slices"
)

// Conversation is a chat thread owned by the remote service.
type Conversation struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Timestamp Stamp    `json:"timestamp,omitzero"`
	Messages  Messages `json:"messages,omitempty"`

	// list summary only
	MessageCount int      `json:"message_count,omitempty"`
	LastMessage  *Message `json:"last_message,omitempty"`
}

type Conversations []Conversation

// Clone returns a deep copy safe to hand outside the owner
func (z *Conversation) Clone() Conversation {
	out := *z
	out.Messages = slices.Clone(z.Messages)
	if z.LastMessage != nil {
		lm := *z.LastMessage
		out.LastMessage = &lm
	}
	return out
}

// Visible returns a copy without system messages
func (z *Conversation) Visible() Conversation {
	out := z.Clone()
	out.Messages = z.Messages.Visible()
	return out
}

// Append adds messages and keeps the summary fields in step
func (z *Conversation) Append(msgs ...Message) {
	z.Messages = append(z.Messages, msgs...)
	if len(z.Messages) > z.MessageCount {
		z.MessageCount = len(z.Messages)
	}
	if last, ok := z.Messages.Last(); ok {
		z.LastMessage = &last
	}
}

// Preview returns the latest visible content cut to n runes
func (z *Conversation) Preview(n int) string {
	var content string
	if z.LastMessage != nil {
		content = z.LastMessage.Content
	} else if last, ok := z.Messages.Last(); ok {
		content = last.Content
	}
	if rs := []rune(content); n > 0 && len(rs) > n {
		return string(rs[:n]) + "..."
	}
	return content
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (z *Conversation) MarshalBinary() (data []byte, err error) {
	data, err = json.Marshal(z)
	return
}

// UnmarshalBinary unmarshal a binary representation of itself. for redis result.Scan
func (z *Conversation) UnmarshalBinary(data []byte) error {
	var t Conversation
	err := json.Unmarshal(data, &t)
	if err == nil {
		*z = t
	}
	return err
}
