package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*AgentMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestGetAgentMetrics(t *testing.T) {
	m1 := GetAgentMetrics()
	m2 := GetAgentMetrics()

	// 应该返回同一个实例
	assert.Same(t, m1, m2)
}

func TestSessionFinished(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SessionStarted()
	m.SessionStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.activeSessions))

	m.SessionFinished(OutcomeDone, 2, time.Second)
	m.SessionFinished(OutcomeFallback, 6, 3*time.Second)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessions.WithLabelValues(OutcomeDone)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessions.WithLabelValues(OutcomeFallback)))

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.Sessions)
	assert.Equal(t, uint64(1), s.Done)
	assert.Equal(t, uint64(1), s.Fallback)
	assert.Equal(t, uint64(0), s.Failed)
	assert.InDelta(t, 4.0, s.AvgSteps, 1e-9)
}

func TestRecordCache(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(false)
	m.RecordCache(true)

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.CacheHits)
	assert.Equal(t, uint64(2), s.CacheMisses)
	assert.InDelta(t, 0.5, s.CacheHitRate, 1e-9)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheRequests.WithLabelValues("hit")))
}

func TestRecordCall(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordCall("decide", 100*time.Millisecond, nil)
	m.RecordCall("decide", 200*time.Millisecond, errors.New("boom"))
	m.RecordCall("retrieve", 50*time.Millisecond, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.callErrors.WithLabelValues("decide")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.callErrors.WithLabelValues("retrieve")))
}

func TestControlLoopCounters(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordTransition("AWAIT_DECISION", "tool_call", "RETRIEVING")
	m.RecordTransition("AWAIT_DECISION", "tool_call", "RETRIEVING")
	m.RecordParseFailure("decide")
	m.RecordUnknownAction()
	m.RecordGrade("relevant")
	m.RecordRewrite()
	m.RecordRetrieval(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("AWAIT_DECISION", "tool_call", "RETRIEVING")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.parseFailures.WithLabelValues("decide")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.unknownActions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.grades.WithLabelValues("relevant")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rewrites))
}

func TestExposition(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.SessionStarted()
	m.SessionFinished(OutcomeFailed, 1, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "agentic_rag_sessions_total")
	assert.Contains(t, joined, "agentic_rag_session_steps")
	assert.Contains(t, joined, "agentic_rag_active_sessions")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *AgentMetrics

	assert.NotPanics(t, func() {
		m.SessionStarted()
		m.SessionFinished(OutcomeDone, 1, time.Second)
		m.RecordTransition("a", "b", "c")
		m.RecordParseFailure("grade")
		m.RecordUnknownAction()
		m.RecordGrade("relevant")
		m.RecordRewrite()
		m.RecordRetrieval(0)
		m.RecordCache(true)
		m.RecordCall("decide", time.Second, nil)
	})
	assert.Equal(t, Stats{}, m.Snapshot())
}
