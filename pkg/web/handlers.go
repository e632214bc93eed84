package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcsv/go-binder/binder"
	"github.com/spf13/cast"

	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/services/chat"
	"github.com/liut/parley/pkg/services/stores"
)

// State is a full snapshot for a freshly attached surface
type State struct {
	User            *stores.User          `json:"user,omitempty"`
	Conversations   []convo.Conversation  `json:"conversations"`
	Active          *convo.Conversation   `json:"active,omitempty"`
	Voice           chat.VoiceState       `json:"voice"`
	Draft           *convo.Draft          `json:"draft,omitempty"`
	Recommendations convo.Recommendations `json:"recommendations,omitempty"`
}

func (s *server) state() *State {
	st := &State{
		User:            s.sess.User(),
		Conversations:   s.sess.Conversations(),
		Voice:           s.sess.VoiceState(),
		Recommendations: s.sess.Recommendations(),
	}
	for i := range st.Conversations {
		st.Conversations[i].Messages = nil
	}
	if cv, ok := s.sess.Active(); ok {
		st.Active = &cv
	}
	if d, ok := s.sess.Draft(); ok {
		st.Draft = &d
	}
	return st
}

func (s *server) getState(w http.ResponseWriter, r *http.Request) {
	apiOk(w, r, s.state())
}

// detach keeps a service call running when the client goes away, the
// outcome still reaches the other surfaces by events.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

type conversationReq struct {
	Title string `json:"title" form:"title"`
}

func (s *server) postConversation(w http.ResponseWriter, r *http.Request) {
	var param conversationReq
	if r.ContentLength > 0 {
		if err := binder.BindBody(r, &param); err != nil {
			apiFail(w, r, 400, err)
			return
		}
	}
	cv, err := s.sess.CreateNewConversation(detach(r), param.Title)
	if err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	apiOk(w, r, cv.Visible())
}

func (s *server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sess.LoadConversation(r.Context(), id); err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	cv, ok := s.sess.Active()
	if !ok || cv.ID != id {
		// overtaken by a newer selection
		apiFail(w, r, 409, "conversation is not active")
		return
	}
	apiOk(w, r, cv)
}

func (s *server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.DeleteConversation(detach(r), chi.URLParam(r, "id")); err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	apiOk(w, r, s.state())
}

type chatReq struct {
	Message string `json:"message" form:"message"`
}

func (s *server) postChat(w http.ResponseWriter, r *http.Request) {
	var param chatReq
	if err := binder.BindBody(r, &param); err != nil {
		apiFail(w, r, 400, err)
		return
	}
	logger().Infow("chat", "size", len(param.Message), "ip", r.RemoteAddr)
	if err := s.sess.SendMessage(detach(r), param.Message); err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	if cv, ok := s.sess.Active(); ok {
		apiOk(w, r, cv)
		return
	}
	apiOk(w, r)
}

func (s *server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := cast.ToInt(q.Get("count"))
	recs, err := s.sess.RefreshRecommendations(r.Context(), q.Get("topic"), count)
	if err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	apiOk(w, r, recs, len(recs))
}

func (s *server) postRecommendation(w http.ResponseWriter, r *http.Request) {
	idx, err := cast.ToIntE(chi.URLParam(r, "idx"))
	if err != nil {
		apiFail(w, r, 400, err)
		return
	}
	if err = s.sess.SelectRecommendation(idx); err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	apiOk(w, r)
}

func (s *server) deleteRecommendations(w http.ResponseWriter, r *http.Request) {
	s.sess.DismissRecommendations()
	apiOk(w, r)
}

func (s *server) postVoice(w http.ResponseWriter, r *http.Request) {
	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		err = s.sess.StartRecording(detach(r))
	case "stop":
		err = s.sess.StopRecording()
	case "cancel":
		s.sess.CancelRecording()
	default:
		apiFail(w, r, 404, "unknown voice action: "+action)
		return
	}
	if err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	apiOk(w, r, M{"voice": s.sess.VoiceState()})
}

type feedbackReq struct {
	MessageID string  `json:"messageId" form:"messageId"`
	Rating    *int    `json:"rating" form:"rating"`
	Comment   *string `json:"comment" form:"comment"`
}

func (s *server) postFeedback(w http.ResponseWriter, r *http.Request) {
	var param feedbackReq
	if err := binder.BindBody(r, &param); err != nil {
		apiFail(w, r, 400, err)
		return
	}
	if len(param.MessageID) == 0 {
		apiFail(w, r, 400, "messageId is required")
		return
	}
	if err := s.sess.OpenFeedback(param.MessageID); err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	s.replyDraft(w, r)
}

func (s *server) putFeedback(w http.ResponseWriter, r *http.Request) {
	var param feedbackReq
	if err := binder.BindBody(r, &param); err != nil {
		apiFail(w, r, 400, err)
		return
	}
	if param.Rating != nil {
		if err := s.sess.SetRating(*param.Rating); err != nil {
			apiFail(w, r, statusOf(err), err)
			return
		}
	}
	if param.Comment != nil {
		if err := s.sess.SetComment(*param.Comment); err != nil {
			apiFail(w, r, statusOf(err), err)
			return
		}
	}
	s.replyDraft(w, r)
}

func (s *server) replyDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := s.sess.Draft()
	if !ok {
		apiFail(w, r, statusOf(chat.ErrNoDraft), chat.ErrNoDraft)
		return
	}
	apiOk(w, r, &d)
}

func (s *server) submitFeedback(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.SubmitFeedback(detach(r)); err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	apiOk(w, r)
}

func (s *server) deleteFeedback(w http.ResponseWriter, r *http.Request) {
	s.sess.CancelFeedback()
	apiOk(w, r)
}

func (s *server) postLogout(w http.ResponseWriter, r *http.Request) {
	s.sess.Close()
	if s.store != nil {
		if err := s.store.Clear(r.Context()); err != nil {
			logger().Infow("clear session fail", "err", err)
			apiFail(w, r, 500, err)
			return
		}
	}
	logger().Infow("logged out", "ip", r.RemoteAddr)
	apiOk(w, r)
	if s.cfg.OnLogout != nil {
		go s.cfg.OnLogout()
	}
}
