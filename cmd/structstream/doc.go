// Copyright (c) StructStream Authors.
// Licensed under the MIT License.

/*
Package main 提供 StructStream 命令行程序入口。

# 概述

cmd/structstream 把录制好的片段流（JSONL）送入提取流水线，逐行输出
部分值与最终结果，并提供查看 Redis 事件日志、管理失败归档表结构的子命令。

# 子命令

  - replay   回放片段流；支持 content / tools 模式、JSON Schema 校验、
    按 attempt 分组的多次尝试
  - events   按 request id 打印 Redis 中的事件记录
  - tail     订阅事件发布频道并实时输出
  - migrate  归档表迁移：up、down、status、version、force
  - version  打印构建信息

# 组件装配

replay 根据配置启用：zap 日志事件 sink、OTel meter sink、Prometheus
收集器（可选 /metrics 端口）、Redis 事件日志与 SQL 失败归档。
Version、BuildTime、GitCommit 通过 ldflags 注入。
*/
package main
