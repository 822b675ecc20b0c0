package tracing

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/config"
)

// Init installs a Jaeger tracer as the global tracer. Every request is
// sampled. The returned closer flushes buffered spans.
func Init(cfg config.TracingConfig) (io.Closer, error) {
	tcfg := &jaegercfg.Configuration{
		ServiceName: cfg.ServiceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			CollectorEndpoint: cfg.Endpoint,
		},
	}

	tracer, closer, err := tcfg.NewTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

// StartBackendCall opens a client span for an outgoing backend request and
// propagates it in the request headers. The returned request carries the
// span context.
func StartBackendCall(req *http.Request, operation string) (opentracing.Span, *http.Request) {
	span, ctx := opentracing.StartSpanFromContext(req.Context(), "backend."+operation)
	ext.SpanKindRPCClient.Set(span)
	ext.HTTPMethod.Set(span, req.Method)
	ext.HTTPUrl.Set(span, req.URL.String())

	// A tracer that cannot inject still records the span.
	_ = span.Tracer().Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))

	return span, req.WithContext(ctx)
}

// FinishBackendCall tags the outcome and closes the span. status is 0 when
// no response arrived.
func FinishBackendCall(span opentracing.Span, status int, err error) {
	if status > 0 {
		ext.HTTPStatusCode.Set(span, uint16(status))
	}
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
	}
	span.Finish()
}

// SpanFromContext returns the active span, if any
func SpanFromContext(ctx context.Context) opentracing.Span {
	return opentracing.SpanFromContext(ctx)
}
