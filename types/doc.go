// Copyright (c) StructStream Authors.
// Licensed under the MIT License.

/*
Package types 提供 structstream 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、structured、pipeline
等上层模块提供统一的类型契约，避免循环依赖。

# 核心类型

  - Usage            ：流式 Token 用量（input/output/cache write/cache read/reasoning）
  - Error / ErrorCode：结构化错误体系，含 Retryable 标记与 Cause 链

# 主要能力

  - 用量累加：Usage.Add 返回新值，保证累计用量单调不减
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
  - 常用错误构造：NewTransportError / NewValidationError 等
*/
package types
