package stores

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRC(t *testing.T) (*miniredis.Miniredis, RedisClient) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestSessionStore(t *testing.T) {
	mr, rc := newTestRC(t)
	ctx := context.Background()
	ss := NewSessionStore(rc, "parley-test", time.Hour)

	_, err := ss.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	assert.ErrorIs(t, ss.Save(ctx, &Identity{}), ErrNoSession)

	id := &Identity{Token: "tok", User: &User{UID: "u1", Name: "Alice"}}
	require.NoError(t, ss.Save(ctx, id))
	assert.True(t, mr.Exists("parley-test"))

	got, err := ss.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
	require.NotNil(t, got.User)
	assert.Equal(t, "u1", got.User.UID)

	mr.FastForward(2 * time.Hour)
	_, err = ss.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, ss.Save(ctx, id))
	require.NoError(t, ss.Clear(ctx))
	_, err = ss.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionStoreEmptyKey(t *testing.T) {
	_, rc := newTestRC(t)
	ss := NewSessionStore(rc, "", 0)
	_, err := ss.Load(context.Background())
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestLoadPreset(t *testing.T) {
	p, err := LoadPresetFrom("")
	require.NoError(t, err)
	assert.Equal(t, "New chat", p.Title)
	assert.NotEmpty(t, p.Notices.NoSpeech)

	p, err = LoadPresetFrom("zh.yaml")
	require.NoError(t, err)
	assert.Equal(t, "新对话", p.Title)
	assert.Equal(t, "未检测到语音", p.Notices.NoSpeech)

	p, err = LoadPresetFrom("missing.yaml")
	assert.Error(t, err)
	assert.Equal(t, "New chat", p.Title)
}

func TestOpenRC(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := openRC(context.Background(), "redis://"+mr.Addr()+"/1")
	require.NoError(t, err)
	defer rc.Close()
	require.NoError(t, rc.Set(context.Background(), "k", "v", 0).Err())

	_, err = openRC(context.Background(), "mysql://nope")
	assert.ErrorContains(t, err, "parse redisURI")

	_, err = openRC(context.Background(), "redis://127.0.0.1:1")
	assert.ErrorContains(t, err, "ping redis")
}
