package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type M = render.M

func (s *server) strapRouter() {

	s.ar.Get("/ping", handlerPing)

	s.ar.Route("/api", func(r chi.Router) {
		if mw := rateLimiter(s.cfg.RateLimit); mw != nil {
			r.Use(mw)
		}
		r.Get("/me", s.handleMe)
		r.Get("/state", s.getState)
		r.Get("/events", s.getEvents)
		r.Get("/ws", s.getSocket)
		r.Post("/logout", s.postLogout)

		r.Post("/conversations", s.postConversation)
		r.Get("/conversations/{id}", s.getConversation)
		r.Delete("/conversations/{id}", s.deleteConversation)
		r.Post("/chat", s.postChat)

		r.Get("/recommendations", s.getRecommendations)
		r.Post("/recommendations/{idx}", s.postRecommendation)
		r.Delete("/recommendations", s.deleteRecommendations)

		r.Post("/voice/{action}", s.postVoice)

		r.Post("/feedback", s.postFeedback)
		r.Put("/feedback", s.putFeedback)
		r.Post("/feedback/submit", s.submitFeedback)
		r.Delete("/feedback", s.deleteFeedback)
	})

	if s.cfg.DocHandler != nil {
		s.ar.Get("/", s.cfg.DocHandler.ServeHTTP)
		s.ar.NotFound(s.cfg.DocHandler.ServeHTTP)
	}
}

func handlerPing(w http.ResponseWriter, r *http.Request) {
	render.Data(w, r, []byte("Pong\n"))
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	if user := s.sess.User(); user != nil {
		apiOk(w, r, user)
	} else {
		apiFail(w, r, 401, "not login")
	}
}

func apiFail(w http.ResponseWriter, r *http.Request, status int, err interface{}) {
	res := render.M{
		"status": status,
		"error":  err,
	}
	switch ret := err.(type) {
	case error:
		res["error"] = ret.Error()
		res["message"] = ret.Error()
	case fmt.Stringer:
		res["message"] = ret.String()
	case string, *string, []byte:
		res["message"] = ret
	}
	render.Status(r, status)
	render.JSON(w, r, res)
}

type RespDone struct {
	Status int `json:"status"`
	Data   any `json:"data,omitempty"`
	Count  int `json:"count,omitempty"`
}

func apiOk(w http.ResponseWriter, r *http.Request, args ...any) {
	res := &RespDone{}
	if len(args) > 0 && args[0] != nil {
		res.Data = args[0]
		if len(args) > 1 {
			if c, ok := args[1].(int); ok {
				res.Count = c
			}
		}
	}

	render.JSON(w, r, res)
}
