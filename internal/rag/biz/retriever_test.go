package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agentic-rag/internal/rag/store"
)

type fakeStore struct {
	hits  []*store.SearchResult
	err   error
	count int64
}

func (s *fakeStore) Search(context.Context, string, []float32, int) ([]*store.SearchResult, error) {
	return s.hits, s.err
}

func (s *fakeStore) GetStats(context.Context, string) (int64, error) { return s.count, nil }

func (s *fakeStore) Ping(context.Context, string) error { return s.err }

func (s *fakeStore) Close(context.Context) error { return nil }

type fakeEmbedder struct{ err error }

func (e fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, e.err
}

func (e fakeEmbedder) EmbedSingle(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, e.err
}

func (fakeEmbedder) Name() string { return "fake" }

func TestVectorRetriever_Search(t *testing.T) {
	st := &fakeStore{hits: []*store.SearchResult{
		{Content: "产一石卵", Source: "xiyouji.txt", Page: 1, Score: 0.9},
		{Content: "", Source: "blank", Score: 0.8},
		{Content: "低分片段", Source: "xiyouji.txt", Score: 0.1},
		{Content: "见风化一个石猴", Score: 0.7},
	}}
	r := NewVectorRetriever(st, fakeEmbedder{}, &RetrieverConfig{Collection: "xiyouji", MinScore: 0.5})

	res, err := r.Search(context.Background(), "石卵", 3)
	require.NoError(t, err)
	assert.Equal(t, "石卵", res.Query)
	require.Len(t, res.Snippets, 2)
	assert.Equal(t, "xiyouji.txt 第1页", res.Snippets[0].Source)
	assert.Equal(t, "", res.Snippets[1].Source)
	assert.Contains(t, res.Observation(), "来源: 未知")
}

func TestVectorRetriever_EmptyIsNotError(t *testing.T) {
	r := NewVectorRetriever(&fakeStore{}, fakeEmbedder{}, &RetrieverConfig{Collection: "c"})

	res, err := r.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, NoResultObservation, res.Observation())
}

func TestVectorRetriever_Errors(t *testing.T) {
	_, err := NewVectorRetriever(&fakeStore{}, fakeEmbedder{err: errors.New("embed down")}, &RetrieverConfig{}).
		Search(context.Background(), "q", 3)
	assert.Error(t, err)

	_, err = NewVectorRetriever(&fakeStore{err: errors.New("store down")}, fakeEmbedder{}, &RetrieverConfig{}).
		Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestLocator(t *testing.T) {
	assert.Equal(t, "a.pdf 第3页", Locator("a.pdf", 3))
	assert.Equal(t, "第3页", Locator("", 3))
	assert.Equal(t, "a.pdf", Locator("a.pdf", 0))
	assert.Equal(t, "", Locator("", 0))
}

func TestRetrievalResult_Observation(t *testing.T) {
	var nilResult *RetrievalResult
	assert.True(t, nilResult.Empty())

	r := &RetrievalResult{Snippets: []Snippet{{Text: "甲", Source: "s1"}, {Text: "乙", Source: "s2"}}}
	assert.Equal(t, "[片段 1] 来源: s1\n甲\n\n[片段 2] 来源: s2\n乙", r.Observation())
	assert.Equal(t, "甲\n\n乙", r.Text())
}
