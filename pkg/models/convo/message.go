package convo

import "encoding/json"

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation. ID is set only on assistant
// messages that accept feedback.
type Message struct {
	Role      Role   `json:"role" yaml:"role"`
	Content   string `json:"content" yaml:"content"`
	Timestamp Stamp  `json:"timestamp,omitzero" yaml:"-"`
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
}

type Messages []Message

// Visible returns the messages without system prompts
func (z Messages) Visible() Messages {
	out := make(Messages, 0, len(z))
	for _, m := range z {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the last non-system message
func (z Messages) Last() (Message, bool) {
	for i := len(z) - 1; i >= 0; i-- {
		if z[i].Role != RoleSystem {
			return z[i], true
		}
	}
	return Message{}, false
}

// Recommendation is a follow-up prompt suggested after an assistant reply
type Recommendation struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

type Recommendations []Recommendation

// Draft is an unsubmitted feedback for one assistant message.
type Draft struct {
	TargetMessageID string `json:"messageId"`
	Rating          int    `json:"rating"`
	Comment         string `json:"comment"`
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (z *Message) MarshalBinary() (data []byte, err error) {
	data, err = json.Marshal(z)
	return
}

// UnmarshalBinary unmarshal a binary representation of itself. for redis result.Scan
func (z *Message) UnmarshalBinary(data []byte) error {
	var t Message
	err := json.Unmarshal(data, &t)
	if err == nil {
		*z = t
	}
	return err
}
