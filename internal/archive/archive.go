package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/structstream/config"
	"github.com/BaSui01/structstream/events"
	"github.com/BaSui01/structstream/internal/database"
)

// =============================================================================
// 🗃️ 失败归档
// =============================================================================

// FailureRecord 一次失败的 attempt。
type FailureRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RequestID   string    `gorm:"size:64;index" json:"request_id"`
	Attempt     int       `json:"attempt"`
	Code        string    `gorm:"size:64" json:"code,omitempty"`
	Message     string    `gorm:"type:text" json:"message"`
	Terminal    bool      `json:"terminal"`
	LastPartial string    `gorm:"type:text" json:"last_partial,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 固定表名，与迁移文件保持一致
func (FailureRecord) TableName() string { return "failure_records" }

// Archive 将 ResponseGenerationFailed 事件写入数据库。
// 当前 attempt 最近一次修复后的 JSON 会随失败记录一起保存，便于排查；
// 新 attempt 开始时清空，终态失败或完成时释放。
type Archive struct {
	pool   *database.PoolManager
	logger *zap.Logger

	mu       sync.Mutex
	partials map[string]string
}

// Open 按配置打开数据库；AutoMigrate 为 true 时同步表结构。
func Open(cfg config.ArchiveConfig, logger *zap.Logger) (*Archive, error) {
	pool, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := New(pool, logger)
	if cfg.AutoMigrate {
		if err := a.AutoMigrate(); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return a, nil
}

// New wraps an existing pool.
func New(pool *database.PoolManager, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{
		pool:     pool,
		logger:   logger.With(zap.String("component", "archive")),
		partials: make(map[string]string),
	}
}

// AutoMigrate 创建或更新 failure_records 表
func (a *Archive) AutoMigrate() error {
	if err := a.pool.DB().AutoMigrate(&FailureRecord{}); err != nil {
		return fmt.Errorf("auto migrate failure_records: %w", err)
	}
	return nil
}

// Dispatch 实现 events.Sink。写入失败只记录日志，不影响数据路径。
func (a *Archive) Dispatch(ctx context.Context, e events.Event) {
	switch ev := e.(type) {
	case events.AttemptStarted:
		a.forget(ev.RequestID)

	case events.PartialJSONReceived:
		a.mu.Lock()
		a.partials[ev.RequestID] = ev.JSON
		a.mu.Unlock()

	case events.ResponseFinalized:
		a.forget(ev.RequestID)

	case events.ResponseGenerationFailed:
		a.mu.Lock()
		last := a.partials[ev.RequestID]
		if ev.Terminal {
			delete(a.partials, ev.RequestID)
		}
		a.mu.Unlock()

		rec := FailureRecord{
			RequestID:   ev.RequestID,
			Attempt:     ev.Attempt,
			Code:        ev.Code,
			Message:     ev.Message,
			Terminal:    ev.Terminal,
			LastPartial: last,
			CreatedAt:   ev.At,
		}
		if err := a.Save(ctx, &rec); err != nil {
			a.logger.Warn("归档失败记录写入失败",
				zap.String("request_id", ev.RequestID),
				zap.Int("attempt", ev.Attempt),
				zap.Error(err),
			)
		}
	}
}

func (a *Archive) forget(requestID string) {
	a.mu.Lock()
	delete(a.partials, requestID)
	a.mu.Unlock()
}

// Save 写入一条记录
func (a *Archive) Save(ctx context.Context, rec *FailureRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := a.pool.DB().WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save failure record: %w", err)
	}
	return nil
}

// List 按 attempt 顺序返回某个请求的失败记录
func (a *Archive) List(ctx context.Context, requestID string) ([]FailureRecord, error) {
	var recs []FailureRecord
	err := a.pool.DB().WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("attempt ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list failure records: %w", err)
	}
	return recs, nil
}

// Purge 删除早于 before 的记录，返回删除条数
func (a *Archive) Purge(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := a.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		res := tx.Where("created_at < ?", before).Delete(&FailureRecord{})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("purge failure records: %w", err)
	}
	return n, nil
}

// Close 关闭底层连接池
func (a *Archive) Close() error {
	return a.pool.Close()
}
