// 版权所有 2024 StructStream Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 把流水线事件转换为指标。

# 核心类型

  - Collector：Prometheus 实现，通过 promauto.With 注册到调用方提供的
    Registerer，便于测试隔离与 /metrics 暴露。
  - MeterSink：OpenTelemetry Meter 实现，配合 telemetry 包的 OTLP
    导出器使用。

两者都实现 events.Sink，可以与其他 Sink 一起通过 events.Multi 组合。

# 指标

  - fragments_total、partial_emissions_total、partial_failures_total
  - partial_json_bytes（直方图）
  - tool_calls_total{stage}：started / completed / repaired
  - attempts_total{outcome}：started / succeeded / failed
  - responses_total{outcome}：finalized / failed（仅终态失败）
  - tokens_total{type}：input / output / reasoning
*/
package metrics
