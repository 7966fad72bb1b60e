package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// enabled 返回以 NewOptions 为基础的启用配置。
func enabled(mutate func(o *Options)) *Options {
	o := NewOptions()
	o.Enabled = true
	if mutate != nil {
		mutate(o)
	}
	return o
}

// keepGlobal 在测试结束后恢复全局 TracerProvider。
func keepGlobal(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestNewOptions_Defaults(t *testing.T) {
	o := NewOptions()

	assert.False(t, o.Enabled)
	assert.Equal(t, "agentic-rag", o.ServiceName)
	assert.Equal(t, ExporterOTLPGRPC, o.ExporterType)
	assert.Equal(t, SamplerParentBased, o.SamplerType)
	assert.Equal(t, 1.0, o.SamplerRatio)
	assert.NoError(t, o.Validate())
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Options
		wantErr string
	}{
		{"disabled ignores everything", &Options{Enabled: false, ExporterType: "bogus"}, ""},
		{"defaults", enabled(nil), ""},
		{"missing service name", enabled(func(o *Options) { o.ServiceName = "" }), "service name"},
		{"otlp needs endpoint", enabled(func(o *Options) { o.Endpoint = "" }), "endpoint is required"},
		{"stdout needs no endpoint", enabled(func(o *Options) {
			o.ExporterType = ExporterStdout
			o.Endpoint = ""
		}), ""},
		{"noop needs no endpoint", enabled(func(o *Options) {
			o.ExporterType = ExporterNoop
			o.Endpoint = ""
		}), ""},
		{"unknown exporter", enabled(func(o *Options) { o.ExporterType = "zipkin" }), "invalid exporter type"},
		{"unknown sampler", enabled(func(o *Options) { o.SamplerType = "sometimes" }), "invalid sampler type"},
		{"ratio out of range", enabled(func(o *Options) {
			o.SamplerType = SamplerRatio
			o.SamplerRatio = 1.5
		}), "sampler ratio"},
		{"zero batch timeout", enabled(func(o *Options) { o.BatchTimeout = 0 }), "batch timeout"},
		{"zero queue", enabled(func(o *Options) { o.MaxQueueSize = 0 }), "max queue size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOptions_Complete(t *testing.T) {
	o := &Options{}
	require.NoError(t, o.Complete())
	assert.NotNil(t, o.Headers)
	assert.NotNil(t, o.ResourceAttributes)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		sampler SamplerType
		ratio   float64
		want    string
	}{
		{SamplerAlwaysOn, 0, "AlwaysOnSampler"},
		{SamplerAlwaysOff, 0, "AlwaysOffSampler"},
		{SamplerRatio, 0.25, "TraceIDRatioBased{0.25}"},
		{SamplerParentBased, 0.5, "ParentBased{root:TraceIDRatioBased{0.5}"},
		{"", 0, "ParentBased{root:AlwaysOnSampler"},
	}
	for _, tt := range tests {
		t.Run(string(tt.sampler), func(t *testing.T) {
			s := newSampler(&Options{SamplerType: tt.sampler, SamplerRatio: tt.ratio})
			assert.Contains(t, s.Description(), tt.want)
		})
	}
}

func TestNewExporter(t *testing.T) {
	ctx := context.Background()
	for _, typ := range []ExporterType{ExporterOTLPGRPC, ExporterOTLPHTTP, ExporterStdout, ExporterNoop} {
		t.Run(string(typ), func(t *testing.T) {
			o := enabled(func(o *Options) {
				o.ExporterType = typ
				o.Headers = map[string]string{"x-tenant": "rag"}
			})
			if typ == ExporterOTLPHTTP {
				o.Endpoint = "localhost:4318"
			}
			exp, err := newExporter(ctx, o)
			require.NoError(t, err)
			require.NotNil(t, exp)

			shutdownCtx, cancel := context.WithTimeout(ctx, 0)
			defer cancel()
			_ = exp.Shutdown(shutdownCtx)
		})
	}

	_, err := newExporter(ctx, &Options{ExporterType: "zipkin"})
	assert.Error(t, err)
}

func TestNewProvider_Disabled(t *testing.T) {
	keepGlobal(t)
	before := otel.GetTracerProvider()

	p, err := NewProvider(NewOptions())
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))

	// 未启用时不接管全局实例
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestNewProvider_InvalidOptions(t *testing.T) {
	_, err := NewProvider(enabled(func(o *Options) { o.ServiceName = "" }))
	assert.Error(t, err)

	_, err = NewProvider(enabled(func(o *Options) { o.SamplerType = "sometimes" }))
	assert.Error(t, err)
}

func TestNewProvider_RegistersGlobal(t *testing.T) {
	keepGlobal(t)

	p, err := NewProvider(enabled(func(o *Options) {
		o.ExporterType = ExporterNoop
		o.SamplerType = SamplerAlwaysOn
		o.ResourceAttributes = map[string]string{"corpus": "xiyouji"}
	}))
	require.NoError(t, err)
	require.True(t, p.Enabled())
	defer func() { assert.NoError(t, p.Shutdown(context.Background())) }()

	ctx, span := StartSpan(context.Background(), "test", "agent.session")
	defer span.End()
	assert.True(t, span.IsRecording())
	assert.NotEmpty(t, TraceIDFromContext(ctx))

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
}

func TestNewProvider_AlwaysOffDropsSpans(t *testing.T) {
	keepGlobal(t)

	p, err := NewProvider(enabled(func(o *Options) {
		o.ExporterType = ExporterNoop
		o.SamplerType = SamplerAlwaysOff
	}))
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	_, span := StartSpan(context.Background(), "test", "agent.session")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestSpanHelpers(t *testing.T) {
	keepGlobal(t)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)

	ctx, span := StartSpan(context.Background(), "test", "agent.decide",
		trace.WithAttributes(attribute.String("agent.session_id", "s1")))
	AddSpanEvent(ctx, "agent.transition", attribute.String("agent.to", "RETRIEVING"))
	SetSpanOK(ctx)
	span.End()

	_, failed := StartSpan(context.Background(), "test", "agent.retrieve")
	RecordError(trace.ContextWithSpan(context.Background(), failed), errors.New("milvus down"))
	RecordError(context.Background(), nil)
	failed.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "agent.decide", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "agent.transition", ended[0].Events()[0].Name)

	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "milvus down", ended[1].Status().Description)

	assert.Empty(t, TraceIDFromContext(context.Background()))
}
