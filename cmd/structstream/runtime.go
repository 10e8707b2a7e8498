package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/structstream/config"
	"github.com/BaSui01/structstream/events"
	"github.com/BaSui01/structstream/internal/archive"
	"github.com/BaSui01/structstream/internal/metrics"
	"github.com/BaSui01/structstream/internal/replay"
	"github.com/BaSui01/structstream/internal/server"
	"github.com/BaSui01/structstream/internal/telemetry"
)

const instrumentationName = "github.com/BaSui01/structstream"

// appRuntime 汇总一次命令执行需要的外部组件：遥测、指标、事件日志与失败归档。
type appRuntime struct {
	logger     *zap.Logger
	providers  *telemetry.Providers
	registry   *prometheus.Registry
	metricsSrv *server.Manager
	sinks      []events.Sink
	closers    []func() error
}

// newRuntime 按配置启用各组件。Redis 与归档启用但不可用时直接返回错误，
// 遥测初始化失败只记录警告。
func newRuntime(cfg *config.Config, logger *zap.Logger) (*appRuntime, error) {
	rt := &appRuntime{logger: logger}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	rt.providers = providers

	rt.sinks = append(rt.sinks, events.NewLogSink(logger))

	meterSink, err := metrics.NewMeterSink(providers.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("create meter sink: %w", err)
	}
	rt.sinks = append(rt.sinks, meterSink)

	if cfg.Metrics.Enabled {
		rt.registry = prometheus.NewRegistry()
		rt.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rt.sinks = append(rt.sinks, metrics.NewCollector(cfg.Metrics.Namespace, rt.registry, logger))

		if cfg.Metrics.Addr != "" {
			srvCfg := server.DefaultConfig()
			srvCfg.Addr = cfg.Metrics.Addr
			if cfg.Metrics.ShutdownTimeout > 0 {
				srvCfg.ShutdownTimeout = cfg.Metrics.ShutdownTimeout
			}
			rt.metricsSrv = server.NewManager(server.MetricsHandler(rt.registry), srvCfg, logger)
			if err := rt.metricsSrv.Start(); err != nil {
				rt.Close(context.Background())
				return nil, fmt.Errorf("start metrics server: %w", err)
			}
		}
	}

	if cfg.Redis.Enabled {
		log, err := replay.NewLog(cfg.Redis, logger)
		if err != nil {
			rt.Close(context.Background())
			return nil, fmt.Errorf("open event log: %w", err)
		}
		rt.sinks = append(rt.sinks, log)
		rt.closers = append(rt.closers, log.Close)
	}

	if cfg.Archive.Enabled {
		arc, err := archive.Open(cfg.Archive, logger)
		if err != nil {
			rt.Close(context.Background())
			return nil, fmt.Errorf("open failure archive: %w", err)
		}
		rt.sinks = append(rt.sinks, arc)
		rt.closers = append(rt.closers, arc.Close)
	}

	return rt, nil
}

// Sink fans events out to every enabled component.
func (rt *appRuntime) Sink() events.Sink { return events.Multi(rt.sinks...) }

// Tracer returns the tracer used for attempt spans.
func (rt *appRuntime) Tracer() trace.Tracer { return rt.providers.Tracer(instrumentationName) }

// Close 按启用顺序的逆序释放资源。
func (rt *appRuntime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if rt.metricsSrv != nil {
		if err := rt.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := rt.providers.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
