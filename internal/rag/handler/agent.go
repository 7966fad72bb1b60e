// Package handler provides HTTP handlers for the agent service.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/agentic-rag/internal/rag/biz"
	"github.com/kart-io/agentic-rag/pkg/errors"
	"github.com/kart-io/agentic-rag/pkg/middleware"
	"github.com/kart-io/agentic-rag/pkg/response"
)

// AgentHandler handles agent HTTP requests.
type AgentHandler struct {
	service biz.Service
	checks  []Check
}

// NewAgentHandler creates a new AgentHandler. checks back /readyz.
func NewAgentHandler(service biz.Service, checks ...Check) *AgentHandler {
	return &AgentHandler{service: service, checks: checks}
}

// AskRequest represents an ask request.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask runs one agent session for the question.
// A failed session is reported with its error code and still carries the trace.
func (h *AgentHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.ErrBind.WithCause(err), nil)
		return
	}

	ctx := c.Request.Context()
	result, err := h.service.Ask(ctx, req.Question, biz.WithSessionID(middleware.GetRequestID(ctx)))
	if err != nil {
		// 提前失败时没有轨迹，避免写出 "data": null
		var data any
		if result != nil {
			data = result
		}
		h.fail(c, errors.FromError(err), data)
		return
	}
	h.ok(c, result)
}

// Stats returns service statistics.
func (h *AgentHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		h.fail(c, errors.ErrUnavailable.WithCause(err), nil)
		return
	}
	h.ok(c, stats)
}

// Healthz reports liveness.
func (h *AgentHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AgentHandler) ok(c *gin.Context, data any) {
	resp := response.Success(data).WithRequestID(middleware.GetRequestID(c.Request.Context()))
	c.JSON(resp.HTTPStatus(), resp)
}

func (h *AgentHandler) fail(c *gin.Context, e *errors.Errno, data any) {
	_ = c.Error(e)
	resp := response.Err(e, language(c)).
		WithRequestID(middleware.GetRequestID(c.Request.Context()))
	if data != nil {
		resp.WithData(data)
	}
	c.JSON(resp.HTTPStatus(), resp)
}

// language picks the message language from Accept-Language.
func language(c *gin.Context) string {
	if strings.HasPrefix(strings.ToLower(c.GetHeader("Accept-Language")), "zh") {
		return "zh"
	}
	return "en"
}
