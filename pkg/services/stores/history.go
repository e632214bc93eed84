package stores

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liut/parley/pkg/models/convo"
)

const (
	historyLifetime  = time.Hour * 24 * 7
	historyMaxLength = 50
)

// ConversationCache keeps the last seen conversation summaries of one user,
// newest first, so they can be listed without the service.
type ConversationCache interface {
	Put(ctx context.Context, list []convo.Conversation) error
	List(ctx context.Context) ([]convo.Conversation, error)
	Clear(ctx context.Context) error
}

func NewConversationCache(rc RedisClient, uid string) ConversationCache {
	return &conversationCache{rc: rc, uid: uid}
}

// SgtConversationCache returns a cache on the singleton redis client
func SgtConversationCache(uid string) ConversationCache {
	return NewConversationCache(SgtRC(), uid)
}

type conversationCache struct {
	rc  RedisClient
	uid string
}

func (s *conversationCache) Put(ctx context.Context, list []convo.Conversation) error {
	if len(s.uid) == 0 {
		return ErrEmptyKey
	}
	if len(list) > historyMaxLength {
		list = list[:historyMaxLength]
	}
	key := s.getKey()
	items := make([]any, 0, len(list))
	for i := range list {
		sum := list[i].Clone()
		sum.Messages = nil
		items = append(items, &sum)
	}
	_, err := s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(items) > 0 {
			pipe.RPush(ctx, key, items...)
			pipe.Expire(ctx, key, historyLifetime)
		}
		return nil
	})
	if err != nil {
		logger().Infow("put conversations fail", "key", key, "err", err)
		return err
	}
	logger().Debugw("put conversations", "key", key, "count", len(items))
	return nil
}

func (s *conversationCache) List(ctx context.Context) (data []convo.Conversation, err error) {
	if len(s.uid) == 0 {
		return nil, ErrEmptyKey
	}
	err = s.rc.LRange(ctx, s.getKey(), 0, -1).ScanSlice(&data)
	return
}

func (s *conversationCache) Clear(ctx context.Context) error {
	return s.rc.Del(ctx, s.getKey()).Err()
}

func (s *conversationCache) getKey() string {
	return "parley-convs-" + s.uid
}
