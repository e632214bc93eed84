package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liut/parley/pkg/services/chatapi"
	"github.com/liut/parley/pkg/services/chatapi/chatapitest"
)

func TestSetRatingBounds(t *testing.T) {
	s, _, _ := newTestSession(t)
	assert.ErrorIs(t, s.SetRating(3), ErrNoDraft)

	require.NoError(t, s.OpenFeedback("msg-1"))
	for _, n := range []int{1, 5} {
		require.NoError(t, s.SetRating(n))
		d, ok := s.Draft()
		require.True(t, ok)
		assert.Equal(t, n, d.Rating)
	}
	for _, n := range []int{0, 6, -1} {
		assert.ErrorIs(t, s.SetRating(n), ErrInvalidRating)
		d, _ := s.Draft()
		assert.Equal(t, 5, d.Rating, "rejected value leaves the draft")
	}
}

func TestOpenFeedbackReplaces(t *testing.T) {
	s, _, rec := newTestSession(t)
	require.NoError(t, s.OpenFeedback("msg-1"))
	require.NoError(t, s.SetRating(4))
	require.NoError(t, s.SetComment("good"))
	require.NoError(t, s.OpenFeedback("msg-2"))

	d, ok := s.Draft()
	require.True(t, ok)
	assert.Equal(t, "msg-2", d.TargetMessageID)
	assert.Zero(t, d.Rating)
	assert.Empty(t, d.Comment)
	assert.Equal(t, 4, rec.count(EventFeedbackDraft))
}

func TestSubmitFeedbackWithoutDraft(t *testing.T) {
	s, srv, rec := newTestSession(t, seeded()...)
	require.NoError(t, s.LoadConversations(context.Background()))
	before := srv.Total()

	assert.ErrorIs(t, s.SubmitFeedback(context.Background()), ErrNoDraft)
	assert.Equal(t, before, srv.Total())
	notices := rec.of(EventNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, dftNotices.RatingRequired, notices[0].Text)
}

func TestSubmitFeedbackRatingUnset(t *testing.T) {
	s, srv, rec := newTestSession(t, seeded()...)
	require.NoError(t, s.LoadConversations(context.Background()))
	require.NoError(t, s.OpenFeedback("msg-1"))
	require.NoError(t, s.SetComment("meh"))

	assert.ErrorIs(t, s.SubmitFeedback(context.Background()), ErrRatingUnset)
	assert.Equal(t, 0, srv.Count(chatapitest.RouteFeedback))
	assert.Equal(t, 1, rec.count(EventNotice))
	_, ok := s.Draft()
	assert.True(t, ok)
}

func TestSubmitFeedback(t *testing.T) {
	s, srv, rec := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))
	require.NoError(t, s.OpenFeedback("msg-1"))
	require.NoError(t, s.SetRating(4))
	require.NoError(t, s.SetComment("helpful"))
	rec.reset()

	require.NoError(t, s.SubmitFeedback(ctx))

	calls := srv.Calls(chatapitest.RouteFeedback)
	require.Len(t, calls, 1)
	var body chatapi.FeedbackRequest
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	assert.Equal(t, chatapi.FeedbackRequest{ConversationID: "c1", MessageID: "msg-1", Rating: 4, Comment: "helpful"}, body)

	_, ok := s.Draft()
	assert.False(t, ok)
	assert.Equal(t, 1, rec.count(EventFeedbackDismissed))
	rated := rec.of(EventMessageRated)
	require.Len(t, rated, 1)
	assert.Equal(t, "msg-1", rated[0].Message.ID)
	assert.Equal(t, 4, rated[0].Rating)

	assert.ErrorIs(t, s.SubmitFeedback(ctx), ErrNoDraft)
	assert.Equal(t, 1, srv.Count(chatapitest.RouteFeedback))
}

func TestSubmitFeedbackFailureKeepsDraft(t *testing.T) {
	s, srv, rec := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))
	require.NoError(t, s.OpenFeedback("msg-1"))
	require.NoError(t, s.SetRating(2))
	srv.Fail(chatapitest.RouteFeedback, http.StatusInternalServerError)
	rec.reset()

	assert.Error(t, s.SubmitFeedback(ctx))
	d, ok := s.Draft()
	require.True(t, ok)
	assert.Equal(t, 2, d.Rating)
	notices := rec.of(EventNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, dftNotices.FeedbackFailed, notices[0].Text)
	assert.Empty(t, rec.of(EventFeedbackDismissed))

	srv.Fail(chatapitest.RouteFeedback, 0)
	require.NoError(t, s.SubmitFeedback(ctx))
	assert.Equal(t, 2, srv.Count(chatapitest.RouteFeedback))
}

func TestCancelFeedback(t *testing.T) {
	s, srv, rec := newTestSession(t)
	require.NoError(t, s.OpenFeedback("msg-1"))
	s.CancelFeedback()
	_, ok := s.Draft()
	assert.False(t, ok)
	assert.Equal(t, 1, rec.count(EventFeedbackDismissed))
	assert.Equal(t, 0, srv.Total())
}

func TestSubmitFeedbackOnceWhileInFlight(t *testing.T) {
	s, srv, rec := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))
	require.NoError(t, s.OpenFeedback("msg-1"))
	require.NoError(t, s.SetRating(4))

	release := srv.Hold(chatapitest.RouteFeedback)
	first := make(chan error, 1)
	go func() { first <- s.SubmitFeedback(ctx) }()
	require.Eventually(t, func() bool { return srv.Count(chatapitest.RouteFeedback) == 1 },
		time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.ErrorIs(t, s.SubmitFeedback(ctx), ErrFeedbackBusy)
		}()
	}
	wg.Wait()
	release()
	require.NoError(t, <-first)

	assert.Equal(t, 1, srv.Count(chatapitest.RouteFeedback))
	assert.Equal(t, 1, rec.count(EventMessageRated))
	_, ok := s.Draft()
	assert.False(t, ok)
}

func TestSubmitFeedbackRetryAfterFailure(t *testing.T) {
	s, srv, _ := newTestSession(t, seeded()...)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))
	require.NoError(t, s.OpenFeedback("msg-1"))
	require.NoError(t, s.SetRating(3))

	srv.Fail(chatapitest.RouteFeedback, http.StatusBadGateway)
	assert.Error(t, s.SubmitFeedback(ctx))
	srv.Fail(chatapitest.RouteFeedback, 0)
	assert.NoError(t, s.SubmitFeedback(ctx), "a failed submit must not leave the draft busy")
}

func TestSubmitFeedbackNoActive(t *testing.T) {
	s, srv, rec := newTestSession(t)
	require.NoError(t, s.OpenFeedback("msg-1"))
	require.NoError(t, s.SetRating(5))

	assert.ErrorIs(t, s.SubmitFeedback(context.Background()), ErrNoActive)
	assert.Equal(t, 0, srv.Total())
	notices := rec.of(EventNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, dftNotices.FeedbackFailed, notices[0].Text)
	_, ok := s.Draft()
	assert.True(t, ok)
}
