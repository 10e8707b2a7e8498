// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，为 structstream
// 命令行提供 OTLP gRPC 导出的 TracerProvider 和 MeterProvider。
// 流水线的 attempt span 与 metrics.MeterSink 都通过这里配置的 provider 导出。
package telemetry
