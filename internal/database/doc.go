// 版权所有 2024 StructStream Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，供失败归档与
迁移工具共用。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、SQLDB()、Ping()、Stats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，包含最大空闲连接数、最大打开连接数
    与连接最大生命周期。

# 方言

Dialector 按 config.ArchiveConfig.Driver 选择方言：sqlite 使用纯 Go
实现的 github.com/glebarez/sqlite（无需 cgo），postgres 与 mysql 使用
gorm.io/driver 下的官方驱动。
*/
package database
