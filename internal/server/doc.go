// 版权所有 2024 StructStream Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理命令行进程内的指标 HTTP 服务器。

Manager 封装 net/http.Server，Start 在后台 goroutine 中服务，Shutdown
在配置的超时内优雅关闭；MetricsHandler 基于 promhttp 暴露 /metrics
与 /healthz。配置 metrics.addr 后 `structstream replay` 会在运行期间
启动该服务器。
*/
package server
