package store

import (
	"context"
)

// SearchResult 表示检索结果。
type SearchResult struct {
	// ID 片段 ID。
	ID string
	// Content 片段正文。
	Content string
	// Source 来源文件。
	Source string
	// Page 页码，未知时为 0。
	Page int64
	// Score 相似度分数。
	Score float32
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// Search 向量相似度搜索，结果按相似度降序排列。
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error)

	// GetStats 获取集合中的片段数量。
	GetStats(ctx context.Context, collection string) (int64, error)

	// Ping 检查服务可用且集合存在。
	Ping(ctx context.Context, collection string) error

	// Close 关闭连接。
	Close(ctx context.Context) error
}

// 片段字段名。
const (
	FieldContent = "content"
	FieldSource  = "source"
	FieldPage    = "page"
)
