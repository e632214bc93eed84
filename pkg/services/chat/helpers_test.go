package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/services/chatapi/chatapitest"
)

type recorder struct {
	mu  sync.Mutex
	evs []Event
}

func (r *recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) of(kind EventKind) (out []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.evs {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return
}

func (r *recorder) count(kind EventKind) int {
	return len(r.of(kind))
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.evs...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = nil
}

type fakeStream struct {
	ch    chan []byte
	once  sync.Once
	stops atomic.Int32
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan []byte)}
}

func (f *fakeStream) Chunks() <-chan []byte { return f.ch }

func (f *fakeStream) Stop() error {
	f.stops.Add(1)
	f.once.Do(func() { close(f.ch) })
	return nil
}

type fakeMic struct {
	unsupported bool
	err         error
	stream      *fakeStream
	opens       atomic.Int32
}

func (m *fakeMic) Supported() bool { return !m.unsupported }

func (m *fakeMic) Open(ctx context.Context) (AudioStream, error) {
	m.opens.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.stream, nil
}

var errDenied = errors.New("NotAllowedError: permission denied")

func newTestSession(t *testing.T, convs ...convo.Conversation) (*Session, *chatapitest.Server, *recorder) {
	t.Helper()
	srv := chatapitest.NewServer()
	t.Cleanup(srv.Close)
	srv.Seed(convs...)
	rec := &recorder{}
	s := New(srv.Client(), WithObserver(rec), WithNoticeDelay(0))
	t.Cleanup(s.Close)
	return s, srv, rec
}

func ids(list []convo.Conversation) []string {
	out := make([]string, 0, len(list))
	for _, cv := range list {
		out = append(out, cv.ID)
	}
	return out
}
