package redis_client

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

// poolSize grows with the CPU count, capped at 512.
func poolSize() int {
	return min(runtime.NumCPU()*8, 512)
}

// NewRedisClient connects to host:port and pings it before returning.
func NewRedisClient(ctx context.Context, host string, port uint16) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(int(port))),
		PoolSize: poolSize(),
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := Ping(ctx, rc); err != nil {
		_ = rc.Close()
		zap.L().Error("redis_connect", zap.String("addr", rc.Options().Addr), zap.Error(err))
		return nil, err
	}
	return rc, nil
}

func Ping(ctx context.Context, rc redis.Cmdable) error {
	if err := rc.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}
