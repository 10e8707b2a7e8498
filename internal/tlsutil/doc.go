// Package tlsutil 提供集中式 TLS 配置，目前用于 Redis 回放日志连接（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
