// Package store 提供 newslens 的持久化层。
//
// 关系型数据（文章、订阅源、标签、摘要）通过 gorm 存储，支持 sqlite、
// postgres 与 mysql；文章向量存放在独立的 VectorIndex 中（Milvus 或内存实现），
// 以 article_id 为键，是文章表的派生副本。
package store
