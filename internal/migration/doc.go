// 版权所有 2024 StructStream Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理失败归档表的版本化 Schema，基于 golang-migrate。

迁移文件按方言内嵌在 migrations/{postgres,mysql,sqlite} 下，连接复用
internal/database 的连接池，因此 sqlite 同样走纯 Go 驱动。生产环境建议
关闭 archive.auto_migrate，改用 `structstream migrate up` 显式升级。

  - Migrator / DefaultMigrator：Up、Down、Force、Version、Status、Info。
  - CLI：把迁移结果格式化输出到终端。
*/
package migration
