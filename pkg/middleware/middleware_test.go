package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agentic-rag/pkg/errors"
	"github.com/kart-io/agentic-rag/pkg/id"
	"github.com/kart-io/agentic-rag/pkg/utils/json"
)

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(Recovery(), RequestID(), Logger())
	e.GET("/test", handlers...)
	return e
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	e := newTestEngine(func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		assert.Equal(t, seen, c.GetString(ContextKeyRequestID))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, id.IsValidULID(seen))
	assert.Equal(t, seen, w.Header().Get(HeaderXRequestID))
}

func TestRequestID_Propagated(t *testing.T) {
	e := newTestEngine(func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderXRequestID, "req-123")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(HeaderXRequestID))
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := newTestEngine(func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body struct {
		Code      int               `json:"code"`
		Data      map[string]string `json:"data"`
		RequestID string            `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrInternal.Code, body.Code)
	assert.Equal(t, "panic: test panic", body.Data["detail"])
	assert.NotEmpty(t, body.RequestID)
}

func TestRecovery_OnPanic(t *testing.T) {
	var got interface{}
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(RecoveryWithConfig(RecoveryConfig{
		OnPanic: func(_ *gin.Context, err interface{}, _ []byte) { got = err },
	}))
	e.GET("/test", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, "boom", got)
}

func TestLogger_SkipPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(LoggerWithConfig(LoggerConfig{SkipPaths: []string{"/healthz"}}))
	e.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
