// Copyright 2026 StructStream Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 structured 提供响应模型（ResponseModel）：目标 Schema、期望的工具名、
校验规则与转换规则，以及流水线依赖的三个能力契约
Deserialize / Validate / Transform。

Schema 默认通过反射从 Go 类型推导，也可以显式提供；校验由
kaptinlin/jsonschema 编译后的 Schema 执行，再叠加自定义校验函数。

# 主要类型

  - ResponseModel[T]：泛型响应模型，实现 pipeline.Model[T]
  - JSONSchema：JSON Schema 定义（object/array/enum/约束）
  - SchemaGenerator：通过反射从 Go 类型生成 JSONSchema，支持 jsonschema 标签
  - ParseError / ValidationErrors：字段级错误与聚合错误

# 典型用法

	type Person struct {
		Name string `json:"name" jsonschema:"required,minLength=1"`
		Age  int    `json:"age" jsonschema:"minimum=0"`
	}

	model, err := structured.NewResponseModel[Person](
		structured.WithName[Person]("extract_person"),
		structured.WithValidator(func(p Person) error { ... }),
	)
*/
package structured
