// Package config 提供 StructStream 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，环境变量
// 以 STRUCTSTREAM_ 为前缀，按结构体 env 标签逐级拼接，例如
// STRUCTSTREAM_PIPELINE_MAX_ATTEMPTS、STRUCTSTREAM_REDIS_ADDR。
package config
