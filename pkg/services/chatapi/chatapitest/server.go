// Package chatapitest provides an in-memory chat service for tests.
package chatapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/services/chatapi"
)

// route keys
const (
	RouteVerify    = "GET /api/verify-token"
	RouteList      = "GET /api/conversations"
	RouteGet       = "GET /api/conversations/{id}"
	RouteCreate    = "POST /api/conversations/new"
	RouteDelete    = "DELETE /api/conversations/{id}"
	RouteChat      = "POST /api/chat"
	RouteRecommend = "GET /api/recommendations"
	RouteSpeech    = "POST /api/speech"
	RouteFeedback  = "POST /api/feedback"
)

const Token = "test-token"

// Call is a recorded request
type Call struct {
	Route string
	Path  string
	Body  []byte
}

// Server fakes the remote chat service, conversations are kept newest first.
type Server struct {
	*httptest.Server

	// ChatReply builds the reply of /api/chat, defaults to an echo
	ChatReply func(req chatapi.ChatRequest) chatapi.ChatResponse
	// SpeechReply builds the reply of /api/speech
	SpeechReply func(audio string) chatapi.SpeechResult
	// Welcome is added as the first assistant message of new conversations
	Welcome string

	mu    sync.Mutex
	convs []*convo.Conversation
	calls []Call
	fails map[string]int
	holds map[string]chan struct{}
	seq   int
}

// NewServer starts a fake service, callers must Close it
func NewServer() *Server {
	s := &Server{
		fails: make(map[string]int),
		holds: make(map[string]chan struct{}),
		ChatReply: func(req chatapi.ChatRequest) chatapi.ChatResponse {
			return chatapi.ChatResponse{Success: true, Response: "echo: " + req.Message}
		},
		SpeechReply: func(audio string) chatapi.SpeechResult {
			return chatapi.SpeechResult{Success: true, Text: "transcribed"}
		},
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/verify-token", s.wrap(RouteVerify, s.verify))
		r.Get("/conversations", s.wrap(RouteList, s.list))
		r.Post("/conversations/new", s.wrap(RouteCreate, s.create))
		r.Get("/conversations/{id}", s.wrap(RouteGet, s.get))
		r.Delete("/conversations/{id}", s.wrap(RouteDelete, s.delete))
		r.Post("/chat", s.wrap(RouteChat, s.chat))
		r.Get("/recommendations", s.wrap(RouteRecommend, s.recommend))
		r.Post("/speech", s.wrap(RouteSpeech, s.speech))
		r.Post("/feedback", s.wrap(RouteFeedback, s.feedback))
	})
	s.Server = httptest.NewServer(r)
	return s
}

// Client returns a chatapi client bound to this server
func (s *Server) Client() *chatapi.Client {
	c, err := chatapi.New(s.URL, Token, chatapi.WithHTTPClient(s.Server.Client()))
	if err != nil {
		panic(err)
	}
	return c
}

// Seed adds conversations in the given order, first is newest
func (s *Server) Seed(convs ...convo.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range convs {
		cv := convs[i]
		s.convs = append(s.convs, &cv)
	}
}

// IDs returns the ids held by the service
func (s *Server) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.convs))
	for _, cv := range s.convs {
		out = append(out, cv.ID)
	}
	return out
}

// Fail forces route to answer with status until cleared with status 0
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.fails, route)
		return
	}
	s.fails[route] = status
}

// Hold blocks requests of route until the returned func is called
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[route] == ch {
				delete(s.holds, route)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Count returns how many requests hit route
func (s *Server) Count(route string) (n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.Route == route {
			n++
		}
	}
	return
}

// Calls returns the recorded requests of route
func (s *Server) Calls(route string) (out []Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.Route == route {
			out = append(out, c)
		}
	}
	return
}

// Total returns the number of all recorded requests
func (s *Server) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *Server) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls = append(s.calls, Call{Route: route, Path: r.URL.Path, Body: body})
		status := s.fails[route]
		hold := s.holds[route]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if r.Header.Get("Authorization") != "Bearer "+Token {
			fail(w, r, http.StatusUnauthorized, "无效或已过期的令牌")
			return
		}
		if status != 0 {
			fail(w, r, status, "forced failure")
			return
		}
		h(w, r)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, render.M{"error": msg})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"valid": true, "user": render.M{"id": "u1", "username": "alice", "nickname": "Alice"}})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]convo.Conversation, 0, len(s.convs))
	for _, cv := range s.convs {
		sum := convo.Conversation{ID: cv.ID, Title: cv.Title, Timestamp: cv.Timestamp, MessageCount: len(cv.Messages)}
		if last, ok := cv.Messages.Last(); ok {
			sum.LastMessage = &last
		}
		out = append(out, sum)
	}
	s.mu.Unlock()
	render.JSON(w, r, render.M{"conversations": out})
}

func (s *Server) find(id string) (int, *convo.Conversation) {
	for i, cv := range s.convs {
		if cv.ID == id {
			return i, cv
		}
	}
	return -1, nil
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, cv := s.find(chi.URLParam(r, "id"))
	var out convo.Conversation
	if cv != nil {
		out = cv.Clone()
	}
	s.mu.Unlock()
	if cv == nil {
		fail(w, r, http.StatusNotFound, "对话不存在")
		return
	}
	render.JSON(w, r, render.M{"conversation": out})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var param struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&param)
	s.mu.Lock()
	s.seq++
	now := convo.Stamp{Time: time.Now()}
	cv := &convo.Conversation{
		ID:        fmt.Sprintf("new-%d", s.seq),
		Title:     param.Title,
		Timestamp: now,
		Messages: convo.Messages{
			{Role: convo.RoleSystem, Content: "system prompt", Timestamp: now},
		},
	}
	if s.Welcome != "" {
		cv.Messages = append(cv.Messages, convo.Message{Role: convo.RoleAssistant, Content: s.Welcome, Timestamp: now})
	}
	s.convs = append([]*convo.Conversation{cv}, s.convs...)
	out := cv.Clone()
	s.mu.Unlock()
	render.JSON(w, r, render.M{"success": true, "conversation": out})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	i, cv := s.find(chi.URLParam(r, "id"))
	if cv != nil {
		s.convs = append(s.convs[:i], s.convs[i+1:]...)
	}
	s.mu.Unlock()
	if cv == nil {
		fail(w, r, http.StatusNotFound, "删除对话失败，对话可能不存在")
		return
	}
	render.JSON(w, r, render.M{"success": true})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatapi.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		fail(w, r, http.StatusBadRequest, "消息不能为空")
		return
	}
	s.mu.Lock()
	_, cv := s.find(req.ConversationID)
	reply := s.ChatReply
	s.mu.Unlock()
	if cv == nil {
		fail(w, r, http.StatusNotFound, "对话不存在")
		return
	}
	res := reply(req)
	s.mu.Lock()
	now := convo.Stamp{Time: time.Now()}
	cv.Messages = append(cv.Messages,
		convo.Message{Role: convo.RoleUser, Content: req.Message, Timestamp: now},
		convo.Message{Role: convo.RoleAssistant, Content: res.Response, Timestamp: now},
	)
	if res.Title != "" {
		cv.Title = res.Title
	}
	cv.Timestamp = now
	s.mu.Unlock()
	render.JSON(w, r, &res)
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	render.JSON(w, r, render.M{"recommendations": convo.Recommendations{
		{Topic: topic, Content: "tell me more about " + topic, Reason: "recent interest"},
	}})
}

func (s *Server) speech(w http.ResponseWriter, r *http.Request) {
	var param struct {
		Audio string `json:"audio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&param); err != nil || param.Audio == "" {
		fail(w, r, http.StatusBadRequest, "未提供音频数据")
		return
	}
	s.mu.Lock()
	reply := s.SpeechReply
	s.mu.Unlock()
	res := reply(param.Audio)
	render.JSON(w, r, &res)
}

func (s *Server) feedback(w http.ResponseWriter, r *http.Request) {
	var req chatapi.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "参数不足")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		fail(w, r, http.StatusBadRequest, "评分必须在1-5之间")
		return
	}
	render.JSON(w, r, render.M{"success": true})
}
