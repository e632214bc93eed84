package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/cupogo/andvari/utils/zlog"
	"github.com/redis/go-redis/v9"

	"github.com/liut/parley/pkg/settings"
)

type RedisClient = redis.UniversalClient

var (
	rcOnce sync.Once
	rcu    RedisClient
)

func logger() zlog.Logger {
	return zlog.Get()
}

// SgtRC start return a singleton instance of redis client
func SgtRC() RedisClient {
	rcOnce.Do(func() {
		var err error
		if rcu, err = openRC(context.Background(), settings.Current.RedisURI); err != nil {
			logger().Panicw("open redis fail", "uri", settings.Current.RedisURI, "err", err)
		}
	})

	return rcu
}

// openRC parses redisURI and pings the server
func openRC(ctx context.Context, redisURI string) (RedisClient, error) {
	opt, err := redis.ParseURL(redisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redisURI: %w", err)
	}
	rc := redis.NewClient(opt)
	if err = rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rc, nil
}
