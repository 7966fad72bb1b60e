package store

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/kart-io/agentic-rag/pkg/utils/json"
)

// WeaviateConfig Weaviate 连接配置。
type WeaviateConfig struct {
	// Host 服务地址，如 localhost:8080。
	Host string
	// Scheme http 或 https。
	Scheme string
	// APIKey 可选。
	APIKey string
}

// WeaviateStore 实现基于 Weaviate 的向量存储。集合名映射为 Weaviate 类名。
type WeaviateStore struct {
	client *weaviate.Client
}

// NewWeaviateStore 创建 Weaviate 存储实例。
func NewWeaviateStore(cfg WeaviateConfig) (*WeaviateStore, error) {
	host, scheme := cfg.Host, cfg.Scheme
	switch {
	case strings.HasPrefix(host, "https://"):
		scheme, host = "https", strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		scheme, host = "http", strings.TrimPrefix(host, "http://")
	}
	if scheme == "" {
		scheme = "http"
	}

	wcfg := weaviate.Config{Host: host, Scheme: scheme}
	if cfg.APIKey != "" {
		wcfg.Headers = map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateStore{client: client}, nil
}

// ClassName 将集合名转换为 Weaviate 类名（首字母大写）。
func ClassName(collection string) string {
	if collection == "" {
		return ""
	}
	r := []rune(collection)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

type weaviateHit struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Page       float64 `json:"page"`
	Additional struct {
		ID        string  `json:"id"`
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// Search 执行 nearVector 检索。
func (s *WeaviateStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	class := ClassName(collection)
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(embedding)

	result, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(
			graphql.Field{Name: FieldContent},
			graphql.Field{Name: FieldSource},
			graphql.Field{Name: FieldPage},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
		).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search weaviate: %w", err)
	}
	if err := graphQLError(result); err != nil {
		return nil, err
	}

	var payload struct {
		Get map[string][]weaviateHit `json:"Get"`
	}
	if err := json.Convert(result.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode weaviate response: %w", err)
	}

	hits := payload.Get[class]
	searchResults := make([]*SearchResult, 0, len(hits))
	for _, h := range hits {
		searchResults = append(searchResults, &SearchResult{
			ID:      h.Additional.ID,
			Content: h.Content,
			Source:  h.Source,
			Page:    int64(h.Page),
			Score:   float32(h.Additional.Certainty),
		})
	}
	return searchResults, nil
}

// GetStats 通过 Aggregate 查询对象数量。
func (s *WeaviateStore) GetStats(ctx context.Context, collection string) (int64, error) {
	class := ClassName(collection)
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate weaviate: %w", err)
	}
	if err := graphQLError(result); err != nil {
		return 0, err
	}

	var payload struct {
		Aggregate map[string][]struct {
			Meta struct {
				Count float64 `json:"count"`
			} `json:"meta"`
		} `json:"Aggregate"`
	}
	if err := json.Convert(result.Data, &payload); err != nil {
		return 0, fmt.Errorf("decode weaviate response: %w", err)
	}
	groups := payload.Aggregate[class]
	if len(groups) == 0 {
		return 0, nil
	}
	return int64(groups[0].Meta.Count), nil
}

// Ping 检查 Weaviate 就绪且类已创建。
func (s *WeaviateStore) Ping(ctx context.Context, collection string) error {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate ready check: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}

	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(ClassName(collection)).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate class check: %w", err)
	}
	if !exists {
		return fmt.Errorf("weaviate class %q not found", ClassName(collection))
	}
	return nil
}

// Close 释放资源。Weaviate 客户端基于 HTTP，无需关闭。
func (s *WeaviateStore) Close(_ context.Context) error {
	return nil
}

func graphQLError(result *models.GraphQLResponse) error {
	if result == nil {
		return fmt.Errorf("empty weaviate response")
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("weaviate query error: %s", result.Errors[0].Message)
	}
	return nil
}

// 确保 WeaviateStore 实现了 VectorStore 接口。
var _ VectorStore = (*WeaviateStore)(nil)
