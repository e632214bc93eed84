package chat

import (
	"context"

	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/services/chatapi"
)

// OpenFeedback starts a new draft for an assistant message, replacing any
// draft still open.
func (s *Session) OpenFeedback(messageID string) error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	s.draft = &convo.Draft{TargetMessageID: messageID}
	d := *s.draft
	s.mu.Unlock()

	s.emit(Event{Kind: EventFeedbackDraft, Draft: &d})
	return nil
}

// Draft returns the open draft
func (s *Session) Draft() (convo.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return convo.Draft{}, false
	}
	return *s.draft, true
}

// SetRating accepts 1 to 5 inclusive
func (s *Session) SetRating(n int) error {
	if n < 1 || n > 5 {
		return ErrInvalidRating
	}
	return s.editDraft(func(d *convo.Draft) { d.Rating = n })
}

func (s *Session) SetComment(comment string) error {
	return s.editDraft(func(d *convo.Draft) { d.Comment = comment })
}

func (s *Session) editDraft(fn func(d *convo.Draft)) error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	if s.draft == nil {
		s.mu.Unlock()
		return ErrNoDraft
	}
	fn(s.draft)
	d := *s.draft
	s.mu.Unlock()

	s.emit(Event{Kind: EventFeedbackDraft, Draft: &d})
	return nil
}

// SubmitFeedback sends the draft once. On failure the draft is kept for a
// retry, a call while another is in flight returns ErrFeedbackBusy.
func (s *Session) SubmitFeedback(ctx context.Context) error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	draft := s.draft
	var cid string
	if s.active != nil {
		cid = s.active.ID
	}
	var d convo.Draft
	if draft != nil {
		d = *draft
	}
	var err error
	switch {
	case s.sending:
		err = ErrFeedbackBusy
	case draft == nil || d.TargetMessageID == "":
		err = ErrNoDraft
	case d.Rating == 0:
		err = ErrRatingUnset
	case cid == "":
		err = ErrNoActive
	default:
		s.sending = true
	}
	s.mu.Unlock()

	switch err {
	case nil:
	case ErrFeedbackBusy:
		return err
	case ErrNoActive:
		s.notice(s.notices.FeedbackFailed)
		return err
	default:
		s.notice(s.notices.RatingRequired)
		return err
	}

	err = s.api.SubmitFeedback(ctx, chatapi.FeedbackRequest{
		ConversationID: cid,
		MessageID:      d.TargetMessageID,
		Rating:         d.Rating,
		Comment:        d.Comment,
	})

	s.mu.Lock()
	s.sending = false
	if err == nil && s.draft == draft {
		s.draft = nil
	}
	s.mu.Unlock()

	if err != nil {
		logger().Infow("submit feedback fail", "cid", cid, "mid", d.TargetMessageID, "err", err)
		s.notice(s.notices.FeedbackFailed)
		return err
	}

	s.emit(
		Event{Kind: EventFeedbackDismissed},
		Event{Kind: EventMessageRated, ConversationID: cid,
			Message: &convo.Message{Role: convo.RoleAssistant, ID: d.TargetMessageID}, Rating: d.Rating},
	)
	logger().Infow("feedback submitted", "cid", cid, "mid", d.TargetMessageID, "rating", d.Rating)
	return nil
}

// CancelFeedback drops the draft and dismisses the surface
func (s *Session) CancelFeedback() {
	s.mu.Lock()
	s.draft = nil
	s.mu.Unlock()
	s.emit(Event{Kind: EventFeedbackDismissed})
}
