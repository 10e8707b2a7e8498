// 版权所有 2024 StructStream Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义流水线与外部推理传输层之间的契约。

# 概述

HTTP 传输与各服务商的请求/响应适配不在本模块范围内，它们只负责产出
原始片段序列。本包把这些片段统一为 [Fragment]，并以拉取式的
[FragmentSource] 暴露给 pipeline 包。每次 attempt 通过 [SourceFactory]
重新获取一个全新的片段源。

# 核心接口

  - [FragmentSource]：拉取式片段序列，耗尽时返回 io.EOF
  - [SourceFactory]：按 attempt 获取新的片段源
  - [Provider]：流式 Provider 的最小接口（Stream / Name）

# 核心类型

  - [Fragment]：一次流式步骤的内容增量、工具调用增量、结束信号与用量增量
  - [StreamChunk]：OpenAI 兼容风格的 Provider 流式块
  - [SliceSource] / [ChunkSource]：内存片段源与通道适配器
*/
package llm
