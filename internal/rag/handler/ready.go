package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/agentic-rag/pkg/errors"
)

// readyTimeout 是一次就绪检查的总超时。
const readyTimeout = 3 * time.Second

// Check 是一个依赖的就绪检查，Probe 返回的 detail 原样输出。
type Check struct {
	Name  string
	Probe func(ctx context.Context) (detail any, err error)
}

// CheckStatus 是单个依赖的检查结果。
type CheckStatus struct {
	Ready  bool   `json:"ready"`
	Detail any    `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Readyz 依次检查所有依赖，任一失败时返回 503 并附带各项结果。
func (h *AgentHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	statuses := make(map[string]CheckStatus, len(h.checks))
	ready := true
	for _, chk := range h.checks {
		detail, err := chk.Probe(ctx)
		st := CheckStatus{Ready: err == nil, Detail: detail}
		if err != nil {
			st.Error = err.Error()
			ready = false
		}
		statuses[chk.Name] = st
	}

	if !ready {
		h.fail(c, errors.ErrUnavailable, statuses)
		return
	}
	h.ok(c, statuses)
}
