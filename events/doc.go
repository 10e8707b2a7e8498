// Copyright 2026 StructStream Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 events 定义流式结构化输出流水线的生命周期事件契约。

事件总线本身不在本包范围内：流水线把 Sink 作为显式参数逐层传递，
同步调用 Dispatch，调用方可以在 Sink 中转发到任意总线、日志或存储。

# 主要类型

  - Event：所有事件实现的接口，携带 Envelope（请求 ID、attempt、时间）
  - Sink / SinkFunc：事件接收方
  - Multi / Nop / Recorder / NewLogSink：常用 Sink 组合
  - Record / Marshal：事件的 JSON 记录形式，用于回放日志
*/
package events
