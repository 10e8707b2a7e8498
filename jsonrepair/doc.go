// Copyright 2026 StructStream Authors
// Use of this source code is governed by the project license.

/*
包 jsonrepair 把持续增长、可能不完整的文本缓冲修复为当前最长的合法 JSON。

# 概述

LLM 的结构化输出以片段形式逐步到达，在流结束前缓冲区几乎总是不完整的
JSON。[Repair] 每次接收完整的累积缓冲（而不仅是增量），先尝试严格解析，
失败后用单遍栈式扫描器做有界修复：

  - 闭合未结束的字符串值
  - 按栈补齐未闭合的 { 与 [
  - 丢弃尾随逗号、悬空的键、未完成的字面量与转义序列
  - 裁剪未完成的数字尾部（如 "1." → "1"）

首个 { 或 [ 之前的说明文字或 markdown 围栏会被跳过，顶层值闭合之后的内容
被忽略。输出要么是合法 JSON，要么是空串；空串表示"尚无可解析前缀"，
不是错误。

# 单调性

对同一文档的更长前缀，已经出现且稳定的子路径不会被后续修复抹去。
对非 JSON 形态输入的行为由实现定义，由测试固定。
*/
package jsonrepair
