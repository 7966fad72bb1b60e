package store

import (
	"context"
	"fmt"

	"github.com/kart-io/agentic-rag/pkg/component/milvus"
)

// milvusClient 是 MilvusStore 使用的客户端方法集。
type milvusClient interface {
	Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]milvus.SearchResult, error)
	GetCollectionStats(ctx context.Context, collectionName string) (int64, error)
	HasCollection(ctx context.Context, collectionName string) (bool, error)
	Close(ctx context.Context) error
}

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client milvusClient
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// Search 执行向量相似度搜索。
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	outputFields := []string{FieldContent, FieldSource, FieldPage}
	results, err := s.client.Search(ctx, collection, embedding, topK, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	searchResults := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		result := &SearchResult{
			ID:    fmt.Sprintf("%d", r.ID),
			Score: r.Score,
		}
		// 字段缺失或类型不符时保持零值
		result.Content, _ = r.Metadata[FieldContent].(string)
		result.Source, _ = r.Metadata[FieldSource].(string)
		result.Page, _ = r.Metadata[FieldPage].(int64)
		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// GetStats 获取集合统计信息。
func (s *MilvusStore) GetStats(ctx context.Context, collection string) (int64, error) {
	return s.client.GetCollectionStats(ctx, collection)
}

// Ping 检查集合是否存在。
func (s *MilvusStore) Ping(ctx context.Context, collection string) error {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("milvus collection %q not found", collection)
	}
	return nil
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)
