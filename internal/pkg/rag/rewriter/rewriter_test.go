package rewriter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agentic-rag/pkg/llm"
)

type fakeChat struct {
	out  string
	err  error
	reqs []*llm.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.out}, nil
}

func (f *fakeChat) Name() string { return "fake" }

func TestRewrite_UsesGivenQuestion(t *testing.T) {
	chat := &fakeChat{out: "孙悟空 美猴王 出生地 花果山 仙石"}
	r := New(chat, llm.Temperature(0.7))

	out, err := r.Rewrite(context.Background(), "孙悟空从哪里出生？")
	require.NoError(t, err)
	assert.Equal(t, "孙悟空 美猴王 出生地 花果山 仙石", out)

	require.Len(t, chat.reqs, 1)
	msgs := chat.reqs[0].Messages
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "原始问题：孙悟空从哪里出生？")
	assert.InDelta(t, 0.7, *chat.reqs[0].Temperature, 1e-9)
}

func TestRewrite_Empty(t *testing.T) {
	r := New(&fakeChat{out: "<think>想不出来</think>\n  "}, nil)

	_, err := r.Rewrite(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmptyRewrite)
}

func TestRewrite_ServiceError(t *testing.T) {
	boom := errors.New("timeout")
	r := New(&fakeChat{err: boom}, nil)

	_, err := r.Rewrite(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"孙悟空 出生", "孙悟空 出生"},
		{"改写后的问题：孙悟空的出生地", "孙悟空的出生地"},
		{"<think>\n分析\n</think>\n\n\"美猴王 出生\"\n解释：……", "美猴王 出生"},
		{"“石猴 来历”", "石猴 来历"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
