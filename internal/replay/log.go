package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/structstream/config"
	"github.com/BaSui01/structstream/events"
	"github.com/BaSui01/structstream/internal/tlsutil"
)

// =============================================================================
// 💾 事件回放日志
// =============================================================================

// ErrClosed 日志已关闭
var ErrClosed = errors.New("replay log is closed")

// Log 把每个请求的事件按顺序追加到 Redis 列表 <prefix>:<request_id>，
// 并可选地发布到频道供实时订阅。
type Log struct {
	redis  *redis.Client
	config config.RedisConfig
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

var _ events.Sink = (*Log)(nil)

// NewLog 创建回放日志并测试连接
func NewLog(cfg config.RedisConfig, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.ForAddr(cfg.Addr)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	l := &Log{
		redis:  client,
		config: cfg,
		logger: logger.With(zap.String("component", "replay")),
	}

	l.logger.Debug("replay log initialized",
		zap.String("addr", cfg.Addr),
		zap.String("key_prefix", cfg.KeyPrefix),
		zap.String("channel", cfg.Channel),
	)

	return l, nil
}

// Key 返回请求对应的列表键
func (l *Log) Key(requestID string) string {
	if l.config.KeyPrefix == "" {
		return requestID
	}
	return l.config.KeyPrefix + ":" + requestID
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Dispatch 实现 events.Sink。写入失败只记录日志。
func (l *Log) Dispatch(ctx context.Context, e events.Event) {
	if err := l.Append(ctx, e); err != nil && !errors.Is(err, ErrClosed) {
		l.logger.Warn("回放事件写入失败",
			zap.String("request_id", e.Meta().RequestID),
			zap.String("type", string(e.Type())),
			zap.Error(err),
		)
	}
}

// Append 追加一条事件；RPUSH、EXPIRE 与 PUBLISH 在同一个 pipeline 中执行。
func (l *Log) Append(ctx context.Context, e events.Event) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}

	data, err := events.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := l.Key(e.Meta().RequestID)
	_, err = l.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if l.config.TTL > 0 {
			pipe.Expire(ctx, key, l.config.TTL)
		}
		if l.config.Channel != "" {
			pipe.Publish(ctx, l.config.Channel, data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Load 按写入顺序读取某个请求的全部事件
func (l *Log) Load(ctx context.Context, requestID string) ([]events.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, ErrClosed
	}

	raw, err := l.redis.LRange(ctx, l.Key(requestID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	records := make([]events.Record, 0, len(raw))
	for i, item := range raw {
		rec, err := events.Unmarshal([]byte(item))
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Follow 订阅发布频道，对每条事件调用 fn，直到 ctx 结束。
func (l *Log) Follow(ctx context.Context, fn func(events.Record)) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	if l.config.Channel == "" {
		l.mu.RUnlock()
		return errors.New("replay channel is not configured")
	}
	sub := l.redis.Subscribe(ctx, l.config.Channel)
	l.mu.RUnlock()
	defer sub.Close()

	// 等待订阅确认，保证之后发布的事件不会丢失
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", l.config.Channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			rec, err := events.Unmarshal([]byte(msg.Payload))
			if err != nil {
				l.logger.Warn("跳过无法解析的事件", zap.Error(err))
				continue
			}
			fn(rec)
		}
	}
}

// Delete 删除某个请求的事件列表
func (l *Log) Delete(ctx context.Context, requestID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}
	return l.redis.Del(ctx, l.Key(requestID)).Err()
}

// Close 关闭 Redis 连接
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.redis.Close()
}
