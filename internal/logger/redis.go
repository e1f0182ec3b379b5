package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisHook logs failed and slow redis commands.
type RedisHook struct{}

func (RedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			slog.ErrorContext(ctx, "Redis Dial Error",
				slog.String("addr", addr),
				slog.Duration("latency", time.Since(start)),
				slog.Any("err", err),
			)
		}
		return conn, err
	}
}

func (RedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		args := "[PROTECTED]"
		if name := cmd.Name(); name != "auth" && name != "hello" {
			args = fmt.Sprint(cmd.Args())
		}
		fields := []any{
			slog.String("command", cmd.Name()),
			slog.String("args", args),
			slog.Duration("latency", elapsed),
		}

		if err != nil && !errors.Is(err, redis.Nil) {
			slog.ErrorContext(ctx, "Redis Error", append(fields, slog.Any("err", err))...)
		} else if elapsed > 100*time.Millisecond {
			slog.WarnContext(ctx, "Redis Slow", fields...)
		}
		return err
	}
}

func (RedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if err != nil {
			slog.ErrorContext(ctx, "Redis Pipeline Error",
				slog.Int("cmd_count", len(cmds)),
				slog.Duration("latency", time.Since(start)),
				slog.Any("err", err),
			)
		}
		return err
	}
}
