package lock

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dropshare-api/config"
)

const sweepKey = "dropshare:sweep:lease"

// compare-and-delete so a holder never frees someone else's lease
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type commands interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLease is a SET NX PX lease shared by every instance.
type RedisLease struct {
	rdb    commands
	key    string
	logger *zap.Logger
}

func NewClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	host, port, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		host, port = cfg.Addr, "6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(host, port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err = rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func NewRedisLease(rdb commands, logger *zap.Logger) *RedisLease {
	return &RedisLease{rdb: rdb, key: sweepKey, logger: logger}
}

func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := l.rdb.Eval(rctx, releaseScript, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("release sweep lease failed", zap.Error(err))
		}
	}

	return release, true, nil
}
