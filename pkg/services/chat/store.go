package chat

import (
	"context"
	"slices"
	"strings"

	"github.com/liut/parley/pkg/models/convo"
)

// Conversations returns the local list, newest first
func (s *Session) Conversations() []convo.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]convo.Conversation, 0, len(s.convs))
	for _, cv := range s.convs {
		out = append(out, cv.Clone())
	}
	return out
}

// Active returns the active conversation without system messages
func (s *Session) Active() (convo.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return convo.Conversation{}, false
	}
	return s.active.Visible(), true
}

// LoadConversations replaces the local list with the service's. The first
// entry becomes active, an empty or unavailable list yields a new
// conversation so there is always one to type into.
func (s *Session) LoadConversations(ctx context.Context) error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	t := s.ticket
	s.mu.Unlock()

	list, err := s.api.ListConversations(ctx)
	if err != nil {
		logger().Infow("load conversations fail, create a new one", "err", err)
		_, err = s.CreateNewConversation(ctx, "")
		return err
	}
	for _, cv := range list {
		normalize(cv)
	}

	if err = s.lockOpen(); err != nil {
		return err
	}
	s.convs = dedupe(list)
	if t != s.ticket && s.active != nil {
		// selected meanwhile, keep that one
		if i, _ := s.findLocked(s.active.ID); i >= 0 {
			s.convs[i] = s.active
		} else {
			s.convs = slices.Insert(s.convs, 0, s.active)
		}
		ev := s.listEventLocked()
		s.mu.Unlock()
		s.emit(ev)
		return nil
	}

	if len(s.convs) == 0 {
		s.active = nil
		s.ticket++
		ev := s.listEventLocked()
		s.mu.Unlock()
		s.emit(ev)
		_, err = s.CreateNewConversation(ctx, "")
		return err
	}

	first := s.convs[0]
	s.selectLocked(first)
	evs := []Event{s.listEventLocked(), s.activeEventLocked()}
	s.mu.Unlock()
	s.emit(evs...)

	s.refresh(ctx, first.ID)
	return nil
}

// LoadConversation fetches the full history of id and makes it active.
// A response overtaken by a newer selection is dropped.
func (s *Session) LoadConversation(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.lockOpen(); err != nil {
		return err
	}
	s.ticket++
	t := s.ticket
	s.mu.Unlock()

	logger().Debugw("load conversation", "id", id)
	cv, err := s.api.GetConversation(ctx, id)
	if err != nil {
		logger().Infow("load conversation fail", "id", id, "err", err)
		return err
	}
	normalize(cv)

	if err = s.lockOpen(); err != nil {
		return err
	}
	if t != s.ticket {
		s.mu.Unlock()
		logger().Debugw("drop stale conversation", "id", id, "ticket", t)
		return nil
	}
	s.putLocked(cv)
	s.active = cv
	evs := []Event{s.listEventLocked(), s.activeEventLocked()}
	s.mu.Unlock()
	s.emit(evs...)
	return nil
}

// CreateNewConversation asks the service for a new conversation, makes it
// active and puts it first. An empty title takes the preset one.
func (s *Session) CreateNewConversation(ctx context.Context, title string) (convo.Conversation, error) {
	if title = strings.TrimSpace(title); title == "" {
		title = s.title
	}
	if err := s.lockOpen(); err != nil {
		return convo.Conversation{}, err
	}
	s.ticket++
	t := s.ticket
	s.mu.Unlock()

	cv, err := s.api.CreateConversation(ctx, title)
	if err != nil {
		logger().Infow("create conversation fail", "title", title, "err", err)
		return convo.Conversation{}, err
	}
	normalize(cv)

	if err = s.lockOpen(); err != nil {
		return convo.Conversation{}, err
	}
	s.putLocked(cv)
	evs := []Event{s.listEventLocked()}
	if t == s.ticket || s.active == nil {
		s.active = cv
		evs = append(evs, s.activeEventLocked(), Event{Kind: EventOverlayClosed})
	}
	out := cv.Clone()
	s.mu.Unlock()
	s.emit(evs...)

	logger().Infow("created conversation", "id", out.ID, "title", out.Title)
	return out, nil
}

// DeleteConversation removes id on the service and locally. Deleting the
// active one falls back to the new first entry, or to a new conversation.
func (s *Session) DeleteConversation(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.lockOpen(); err != nil {
		return err
	}
	s.mu.Unlock()

	if err := s.api.DeleteConversation(ctx, id); err != nil {
		logger().Infow("delete conversation fail", "id", id, "err", err)
		s.notice(s.notices.DeleteFailed)
		return err
	}

	if err := s.lockOpen(); err != nil {
		return err
	}
	if i, _ := s.findLocked(id); i >= 0 {
		s.convs = slices.Delete(s.convs, i, i+1)
	}
	evs := []Event{s.listEventLocked()}
	if s.active == nil || s.active.ID != id {
		s.mu.Unlock()
		s.emit(evs...)
		return nil
	}

	if len(s.convs) > 0 {
		first := s.convs[0]
		s.selectLocked(first)
		evs = append(evs, s.activeEventLocked())
		s.mu.Unlock()
		s.emit(evs...)
		s.refresh(ctx, first.ID)
		return nil
	}

	s.active = nil
	s.ticket++
	s.mu.Unlock()
	s.emit(evs...)
	_, err := s.CreateNewConversation(ctx, "")
	return err
}

func (s *Session) refresh(ctx context.Context, id string) {
	if err := s.LoadConversation(ctx, id); err != nil {
		logger().Infow("refresh conversation fail", "id", id, "err", err)
	}
}

func (s *Session) findLocked(id string) (int, *convo.Conversation) {
	for i, cv := range s.convs {
		if cv.ID == id {
			return i, cv
		}
	}
	return -1, nil
}

// putLocked replaces the entry with the same id or puts cv first
func (s *Session) putLocked(cv *convo.Conversation) {
	if i, _ := s.findLocked(cv.ID); i >= 0 {
		s.convs[i] = cv
		return
	}
	s.convs = slices.Insert(s.convs, 0, cv)
}

func (s *Session) selectLocked(cv *convo.Conversation) {
	s.ticket++
	s.active = cv
}

func (s *Session) listEventLocked() Event {
	out := make([]convo.Conversation, 0, len(s.convs))
	for _, cv := range s.convs {
		sum := cv.Clone()
		sum.Messages = nil
		out = append(out, sum)
	}
	return Event{Kind: EventConversations, Conversations: out}
}

func (s *Session) activeEventLocked() Event {
	v := s.active.Visible()
	return Event{Kind: EventActive, ConversationID: v.ID, Conversation: &v}
}

func normalize(cv *convo.Conversation) {
	if len(cv.Messages) > cv.MessageCount {
		cv.MessageCount = len(cv.Messages)
	}
	if last, ok := cv.Messages.Last(); ok {
		cv.LastMessage = &last
	}
}

func dedupe(list []*convo.Conversation) []*convo.Conversation {
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, cv := range list {
		if _, ok := seen[cv.ID]; ok {
			continue
		}
		seen[cv.ID] = struct{}{}
		out = append(out, cv)
	}
	return out
}
