package chat

import (
	"context"
	"sync"
	"time"

	"github.com/cupogo/andvari/utils/zlog"
	auth "github.com/liut/simpauth"

	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/services/chatapi"
)

var dftNotices = convo.Notices{
	NoCapture:      "Voice input is not supported on this device",
	MicDenied:      "Cannot access the microphone, please check the permission settings",
	NoSpeech:       "No speech detected",
	SpeechFailed:   "Speech recognition failed",
	SpeechError:    "Speech recognition service error",
	DeleteFailed:   "Failed to delete the conversation, please try again later",
	RatingRequired: "Please give a rating first",
	FeedbackFailed: "Failed to submit feedback, please try again later",
}

const (
	dftTitle       = "New chat"
	dftNoticeDelay = time.Second * 2
)

func logger() zlog.Logger {
	return zlog.Get()
}

// Service is the remote chat service as the engine sees it
type Service interface {
	VerifyToken(ctx context.Context) (*auth.User, error)
	ListConversations(ctx context.Context) ([]*convo.Conversation, error)
	GetConversation(ctx context.Context, id string) (*convo.Conversation, error)
	CreateConversation(ctx context.Context, title string) (*convo.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	Chat(ctx context.Context, req chatapi.ChatRequest) (*chatapi.ChatResponse, error)
	Recommendations(ctx context.Context, topic string, count int) (convo.Recommendations, error)
	Transcribe(ctx context.Context, audio string) (*chatapi.SpeechResult, error)
	SubmitFeedback(ctx context.Context, req chatapi.FeedbackRequest) error
}

var _ Service = (*chatapi.Client)(nil)

type Option func(*Session)

func WithObserver(obs Observer) Option {
	return func(s *Session) {
		if obs != nil {
			s.obs = obs
		}
	}
}

func WithMicrophone(mic Microphone) Option {
	return func(s *Session) {
		s.mic = mic
	}
}

// WithPreset sets the default title and the notice texts
func WithPreset(p convo.Preset) Option {
	return func(s *Session) {
		if len(p.Title) > 0 {
			s.title = p.Title
		}
		s.notices = p.Merge(convo.Preset{Notices: dftNotices}).Notices
	}
}

// WithNoticeDelay sets how long a voice failure notice stays before the
// pipeline returns to idle
func WithNoticeDelay(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.noticeDelay = d
		}
	}
}

// Session owns the chat state of one logged in user, from login to logout.
type Session struct {
	api         Service
	obs         Observer
	mic         Microphone
	title       string
	notices     convo.Notices
	noticeDelay time.Duration

	ctx    context.Context // background work: transcription
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	user    *auth.User
	convs   []*convo.Conversation // newest first
	active  *convo.Conversation
	ticket  uint64 // latest selection of the active conversation
	recs    convo.Recommendations
	topic   string // of the picked recommendation, sent with the next message
	draft   *convo.Draft
	sending bool // feedback in flight

	voice   VoiceState
	opening bool
	rec     *recording
}

func New(api Service, opts ...Option) *Session {
	s := &Session{
		api:         api,
		obs:         nopObserver{},
		title:       dftTitle,
		notices:     dftNotices,
		noticeDelay: dftNoticeDelay,
		voice:       VoiceIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start verifies the token and loads the conversations
func (s *Session) Start(ctx context.Context) error {
	user, err := s.api.VerifyToken(ctx)
	if err != nil {
		logger().Infow("verify token fail", "err", err)
		if chatapi.IsUnauthorized(err) {
			return ErrUnauthorized
		}
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.user = user
	s.mu.Unlock()
	logger().Infow("session start", "uid", user.UID, "name", user.Name)

	return s.LoadConversations(ctx)
}

// Close stops any recording, drops the draft and detaches the observer.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	rec := s.rec
	s.draft = nil
	s.obs = nopObserver{}
	s.mu.Unlock()

	if rec != nil {
		rec.stop()
	}
	s.cancel()
	logger().Debugw("session closed")
}

// User returns the verified user, nil before Start
func (s *Session) User() *auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) emit(evs ...Event) {
	s.mu.Lock()
	obs := s.obs
	s.mu.Unlock()
	for _, ev := range evs {
		obs.Notify(ev)
	}
}

func (s *Session) notice(text string) {
	s.emit(Event{Kind: EventNotice, Text: text})
}

// lockOpen locks s, it returns ErrClosed without the lock held
func (s *Session) lockOpen() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}
