// 版权所有 2024 StructStream Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 replay 提供基于 Redis 的事件回放日志。

Log 实现 events.Sink：每个事件编码为 events.Record 后追加到
<key_prefix>:<request_id> 列表并设置过期时间；配置了 channel 时同时
发布到该频道。Load 按写入顺序读回某个请求的全部事件，Follow 订阅
频道实时接收事件，供 `structstream events` 与 `structstream tail` 使用。
*/
package replay
