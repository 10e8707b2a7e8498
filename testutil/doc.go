// Copyright 2026 StructStream Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 structstream 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试与属性测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertEventTypes
  - 数据工具: MustJSON / MustParseJSON
  - 流式辅助: SplitContent / SplitToolArgs / DrainSource / SendChunksToChannel，
    用于把完整文档切分为片段并回放

# 子包

  - testutil/mocks: MockProvider（流式 Provider）、ScriptedSource（可注入错误的片段源）、
    MockFactory（按 attempt 编排片段源）
  - testutil/fixtures: 预置片段脚本与 StreamChunk 样例

# 使用示例

	ctx := testutil.TestContext(t)
	factory := mocks.NewMockFactory().
		WithAttempt(mocks.Fail(errors.New("reset"))).
		WithAttempt(mocks.Steps(testutil.SplitContent(doc, 3, 7)...)...)
	value, err := orch.Run(ctx, factory.Factory())
*/
package testutil
