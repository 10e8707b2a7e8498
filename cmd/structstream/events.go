package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/structstream/events"
	"github.com/BaSui01/structstream/internal/replay"
)

// =============================================================================
// 📜 events / tail 命令
// =============================================================================

func runEvents(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	requestID := fs.String("request", "", "Request id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *requestID == "" {
		return errors.New("--request is required")
	}

	log, logger, err := openEventLog(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer log.Close()

	records, err := log.Load(context.Background(), *requestID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no events recorded for request %s", *requestID)
	}
	return writeRecords(os.Stdout, records)
}

func runTail(args []string) error {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	requestID := fs.String("request", "", "Only print events of this request")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, logger, err := openEventLog(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = log.Follow(ctx, func(rec events.Record) {
		if *requestID != "" && rec.RequestID != *requestID {
			return
		}
		if err := enc.Encode(rec); err != nil {
			logger.Warn("write event failed", zap.Error(err))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openEventLog 加载配置并连接 Redis 事件日志。
func openEventLog(configPath string) (*replay.Log, *zap.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Redis.Enabled {
		return nil, nil, errors.New("redis event log is disabled (set redis.enabled)")
	}
	logger := initLogger(cfg.Log)
	log, err := replay.NewLog(cfg.Redis, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	return log, logger, nil
}

// writeRecords 以 JSON 行输出事件记录。
func writeRecords(w io.Writer, records []events.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
