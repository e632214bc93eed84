package chat

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/services/chatapi/chatapitest"
)

func seeded() []convo.Conversation {
	return []convo.Conversation{
		{ID: "c1", Title: "first", Messages: convo.Messages{
			{Role: convo.RoleSystem, Content: "system prompt"},
			{Role: convo.RoleUser, Content: "hello"},
			{Role: convo.RoleAssistant, Content: "hi"},
		}},
		{ID: "c2", Title: "second"},
	}
}

// assertConsistent checks that exactly one conversation is active and listed
func assertConsistent(t *testing.T, s *Session) {
	t.Helper()
	active, ok := s.Active()
	require.True(t, ok, "no active conversation")
	assert.Contains(t, ids(s.Conversations()), active.ID)
}

func TestLoadConversationsEmptyCreates(t *testing.T) {
	s, srv, rec := newTestSession(t)

	require.NoError(t, s.LoadConversations(context.Background()))

	assert.Equal(t, 1, srv.Count(chatapitest.RouteCreate))
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "new-1", active.ID)
	assert.Equal(t, "New chat", active.Title)
	assert.Empty(t, active.Messages)
	assert.Equal(t, []string{"new-1"}, ids(s.Conversations()))
	assert.Equal(t, 1, rec.count(EventOverlayClosed))
}

func TestLoadConversationsFailureCreates(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusUnauthorized} {
		s, srv, _ := newTestSession(t, seeded()...)
		srv.Fail(chatapitest.RouteList, status)

		require.NoError(t, s.LoadConversations(context.Background()))
		assert.Equal(t, 1, srv.Count(chatapitest.RouteCreate))
		assertConsistent(t, s)
	}
}

func TestLoadConversationsFirstActive(t *testing.T) {
	s, srv, rec := newTestSession(t, seeded()...)

	require.NoError(t, s.LoadConversations(context.Background()))

	assert.Equal(t, 0, srv.Count(chatapitest.RouteCreate))
	assert.Equal(t, 1, srv.Count(chatapitest.RouteGet))
	assert.Equal(t, []string{"c1", "c2"}, ids(s.Conversations()))

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "c1", active.ID)
	require.Len(t, active.Messages, 2, "system message must be filtered")
	assert.Equal(t, convo.RoleUser, active.Messages[0].Role)

	evs := rec.of(EventActive)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	for _, m := range last.Conversation.Messages {
		assert.NotEqual(t, convo.RoleSystem, m.Role)
	}
}

func TestLoadConversationsDetailFailureKeepsSummary(t *testing.T) {
	s, srv, _ := newTestSession(t, seeded()...)
	srv.Fail(chatapitest.RouteGet, http.StatusBadGateway)

	require.NoError(t, s.LoadConversations(context.Background()))
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "c1", active.ID)
	assertConsistent(t, s)
}

func TestLoadConversationEmptyID(t *testing.T) {
	s, srv, rec := newTestSession(t)
	require.NoError(t, s.LoadConversation(context.Background(), ""))
	assert.Equal(t, 0, srv.Total())
	assert.Empty(t, rec.all())
}

func TestLoadConversationFailureKeepsActive(t *testing.T) {
	s, srv, _ := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))

	err := s.LoadConversation(ctx, "missing")
	assert.Error(t, err)
	active, _ := s.Active()
	assert.Equal(t, "c1", active.ID)

	srv.Fail(chatapitest.RouteGet, http.StatusInternalServerError)
	assert.Error(t, s.LoadConversation(ctx, "c2"))
	active, _ = s.Active()
	assert.Equal(t, "c1", active.ID)
}

func TestLoadConversationSwitches(t *testing.T) {
	s, _, _ := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))

	require.NoError(t, s.LoadConversation(ctx, "c2"))
	active, _ := s.Active()
	assert.Equal(t, "c2", active.ID)
	assert.Equal(t, []string{"c1", "c2"}, ids(s.Conversations()), "order is kept")
}

func TestStaleLoadDropped(t *testing.T) {
	s, srv, _ := newTestSession(t, seeded()...)
	ctx := context.Background()

	release := srv.Hold(chatapitest.RouteGet)
	done := make(chan error, 1)
	go func() { done <- s.LoadConversation(ctx, "c2") }()
	require.Eventually(t, func() bool { return srv.Count(chatapitest.RouteGet) == 1 },
		time.Second, 5*time.Millisecond)

	created, err := s.CreateNewConversation(ctx, "")
	require.NoError(t, err)

	release()
	require.NoError(t, <-done)

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, created.ID, active.ID, "the older load must not win")
	assertConsistent(t, s)
}

func TestCreateNewConversationPrepends(t *testing.T) {
	s, _, rec := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))
	rec.reset()

	cv, err := s.CreateNewConversation(ctx, "  topic  ")
	require.NoError(t, err)
	assert.Equal(t, "topic", cv.Title)
	assert.Equal(t, []string{cv.ID, "c1", "c2"}, ids(s.Conversations()))
	active, _ := s.Active()
	assert.Equal(t, cv.ID, active.ID)
	assert.Equal(t, 1, rec.count(EventOverlayClosed))
}

func TestCreateNewConversationFailure(t *testing.T) {
	s, srv, rec := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))
	srv.Fail(chatapitest.RouteCreate, http.StatusInternalServerError)
	rec.reset()

	_, err := s.CreateNewConversation(ctx, "")
	assert.Error(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids(s.Conversations()))
	active, _ := s.Active()
	assert.Equal(t, "c1", active.ID)
	assert.Empty(t, rec.all())
}

func TestDeleteActiveFallsBackToFirst(t *testing.T) {
	s, srv, _ := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))

	require.NoError(t, s.DeleteConversation(ctx, "c1"))

	assert.Equal(t, []string{"c2"}, ids(s.Conversations()))
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "c2", active.ID)
	assert.Equal(t, []string{"c2"}, srv.IDs())
	assert.Equal(t, 0, srv.Count(chatapitest.RouteCreate))
}

func TestDeleteLastCreates(t *testing.T) {
	s, srv, _ := newTestSession(t, convo.Conversation{ID: "c1"})
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))

	require.NoError(t, s.DeleteConversation(ctx, "c1"))

	assert.Equal(t, 1, srv.Count(chatapitest.RouteCreate))
	active, ok := s.Active()
	require.True(t, ok)
	assert.NotEqual(t, "c1", active.ID)
	assert.Equal(t, []string{active.ID}, ids(s.Conversations()))
}

func TestDeleteInactive(t *testing.T) {
	s, _, _ := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))

	require.NoError(t, s.DeleteConversation(ctx, "c2"))
	assert.Equal(t, []string{"c1"}, ids(s.Conversations()))
	active, _ := s.Active()
	assert.Equal(t, "c1", active.ID)
}

func TestDeleteFailureNotice(t *testing.T) {
	s, srv, rec := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))
	srv.Fail(chatapitest.RouteDelete, http.StatusInternalServerError)

	assert.Error(t, s.DeleteConversation(ctx, "c1"))
	assert.Equal(t, []string{"c1", "c2"}, ids(s.Conversations()))
	notices := rec.of(EventNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, dftNotices.DeleteFailed, notices[0].Text)
}

func TestCreateDeleteKeepsOneActive(t *testing.T) {
	s, _, _ := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))

	steps := []string{"create", "delete-active", "create", "create", "delete-last",
		"delete-active", "delete-active", "delete-active", "create", "delete-first"}
	for _, step := range steps {
		list := s.Conversations()
		active, _ := s.Active()
		switch step {
		case "create":
			_, err := s.CreateNewConversation(ctx, "")
			require.NoError(t, err)
		case "delete-active":
			require.NoError(t, s.DeleteConversation(ctx, active.ID))
		case "delete-last":
			require.NoError(t, s.DeleteConversation(ctx, list[len(list)-1].ID))
		case "delete-first":
			require.NoError(t, s.DeleteConversation(ctx, list[0].ID))
		}
		assertConsistent(t, s)
		seen := map[string]bool{}
		for _, id := range ids(s.Conversations()) {
			assert.False(t, seen[id], "duplicate id %s after %s", id, step)
			seen[id] = true
		}
	}
}

func TestClosedSession(t *testing.T) {
	s, srv, _ := newTestSession(t, seeded()...)
	s.Close()
	ctx := context.Background()
	assert.ErrorIs(t, s.LoadConversations(ctx), ErrClosed)
	_, err := s.CreateNewConversation(ctx, "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.SendMessage(ctx, "hi"), ErrClosed)
	assert.Equal(t, 0, srv.Total())
}
