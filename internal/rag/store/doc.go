// Package store 提供 Agent 检索使用的向量存储层。
//
// 该包定义了向量存储的接口抽象，并提供 Milvus 与 Weaviate 两种实现，
// 只负责检索与统计，不负责文档写入。
package store
