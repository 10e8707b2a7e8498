// Copyright 2026 StructStream Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 pipeline 实现流式结构化输出的重建流水线：从逐步到达的片段中
重建类型化的部分值，去重后逐个发出，并在流结束时对完整响应执行
带有限次重试的终结校验。

数据流：

	FragmentSource → 增量提取 → JSON 修复 → 反序列化+去重 → 序号/用量 → 聚合 fold → 事件派发 → 调用方

# 核心组件

  - deltaExtractor：按 OutputMode 选定一次的提取策略（content / tools）
  - ToolCallBuffer：单个工具调用的 Building → Finalized 状态机
  - AggregationState：不可变聚合快照，只通过 fold 得到新状态
  - finalize：提取 → 反序列化 → 校验 → 转换，唯一的正确性关口
  - RetryPolicy / Orchestrator / Stream：attempt 状态机与拉取式快照序列

# 并发模型

单个 Stream 内完全顺序执行，唯一的挂起点是 FragmentSource.Next；
流水线内部不启动 goroutine，也不持有计时器。每次重试都重新获取片段源，
并丢弃上一次 attempt 的聚合状态与工具调用缓冲区，只保留错误列表。

# 使用示例

	orch, err := pipeline.New[Person](model, pipeline.WithMaxAttempts(3))
	stream := orch.Stream(ctx, factory)
	for state, err := range stream.All(ctx) {
		if err != nil {
			return err
		}
		p, _ := state.Latest()
		render(p)
	}
	person, err := stream.Result()
*/
package pipeline
