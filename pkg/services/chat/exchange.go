package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/services/chatapi"
)

// SendMessage posts content to the active conversation. The user message is
// shown at once and a pending indicator stands until the reply or failure.
// Failures are logged and returned but never shown in the transcript.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if err := s.lockOpen(); err != nil {
		return err
	}
	if s.active == nil {
		s.mu.Unlock()
		return nil
	}
	cid := s.active.ID
	topic := s.topic
	s.topic = ""
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessage, ConversationID: cid,
		Message: &convo.Message{Role: convo.RoleUser, Content: content, Timestamp: convo.Now()}})

	pid := "typing-" + uuid.NewString()
	s.emit(Event{Kind: EventPendingShown, ConversationID: cid, PendingID: pid})

	res, err := s.api.Chat(ctx, chatapi.ChatRequest{ConversationID: cid, Message: content, Topic: topic})
	s.emit(Event{Kind: EventPendingRemoved, ConversationID: cid, PendingID: pid})
	if err != nil {
		logger().Infow("send message fail", "cid", cid, "err", err)
		return err
	}

	now := convo.Now()
	reply := convo.Message{Role: convo.RoleAssistant, Content: res.Response, Timestamp: now,
		ID: "msg-" + uuid.NewString()}
	s.emit(Event{Kind: EventMessage, ConversationID: cid, Message: &reply, Feedback: true})

	s.mu.Lock()
	var evs []Event
	if _, cv := s.findLocked(cid); cv != nil {
		cv.Append(convo.Message{Role: convo.RoleUser, Content: content, Timestamp: now}, reply)
		if len(res.Title) > 0 {
			cv.Title = res.Title
		}
		cv.Timestamp = now
		evs = append(evs, s.listEventLocked())
		if s.active == cv {
			evs = append(evs, s.activeEventLocked())
		}
	} else {
		logger().Infow("conversation gone before reply", "cid", cid)
	}
	if len(res.Recommendations) > 0 {
		s.recs = res.Recommendations
		evs = append(evs, Event{Kind: EventRecommendations, ConversationID: cid, Recommendations: res.Recommendations})
	}
	s.mu.Unlock()
	s.emit(evs...)
	return nil
}

// Recommendations returns the follow-ups on display
func (s *Session) Recommendations() convo.Recommendations {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(convo.Recommendations, len(s.recs))
	copy(out, s.recs)
	return out
}

// SelectRecommendation puts the content of the i-th recommendation into the
// input and sends its topic along with the next message.
func (s *Session) SelectRecommendation(i int) error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	if i < 0 || i >= len(s.recs) {
		s.mu.Unlock()
		return ErrNoRecommend
	}
	rec := s.recs[i]
	s.topic = rec.Topic
	s.recs = nil
	s.mu.Unlock()

	s.emit(Event{Kind: EventInput, Text: rec.Content}, Event{Kind: EventRecommendationsDismissed})
	return nil
}

func (s *Session) DismissRecommendations() {
	s.mu.Lock()
	s.recs = nil
	s.mu.Unlock()
	s.emit(Event{Kind: EventRecommendationsDismissed})
}

// RefreshRecommendations asks the service for follow-ups on topic
func (s *Session) RefreshRecommendations(ctx context.Context, topic string, count int) (convo.Recommendations, error) {
	if err := s.lockOpen(); err != nil {
		return nil, err
	}
	s.mu.Unlock()

	recs, err := s.api.Recommendations(ctx, topic, count)
	if err != nil {
		logger().Infow("fetch recommendations fail", "topic", topic, "err", err)
		return nil, err
	}
	if len(recs) == 0 {
		return recs, nil
	}
	s.mu.Lock()
	s.recs = recs
	s.mu.Unlock()
	s.emit(Event{Kind: EventRecommendations, Recommendations: recs})
	return recs, nil
}
