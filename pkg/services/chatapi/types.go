package chatapi

import (
	"github.com/liut/parley/pkg/models/convo"
)

type listResult struct {
	Conversations []*convo.Conversation `json:"conversations"`
}

type detailResult struct {
	Conversation *convo.Conversation `json:"conversation"`
}

type createParam struct {
	Title string `json:"title"`
}

type createResult struct {
	Success      bool                `json:"success"`
	Conversation *convo.Conversation `json:"conversation"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Topic          string `json:"topic,omitempty"`
}

// ChatResponse is the reply of POST /api/chat
type ChatResponse struct {
	Success         bool                  `json:"success,omitempty"`
	ConversationID  string                `json:"conversation_id,omitempty"`
	Title           string                `json:"title,omitempty"`
	Response        string                `json:"response"`
	Recommendations convo.Recommendations `json:"recommendations,omitempty"`
}

type recommendResult struct {
	Recommendations convo.Recommendations `json:"recommendations"`
}

type speechParam struct {
	Audio string `json:"audio"`
}

// SpeechResult is the reply of POST /api/speech, Text carries the failure
// reason when Success is false.
type SpeechResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// FeedbackRequest is the body of POST /api/feedback
type FeedbackRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment"`
}

type wireUser struct {
	ID       any    `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type verifyResult struct {
	Valid bool      `json:"valid"`
	User  *wireUser `json:"user"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
