package tracing

import (
	"approvalflow/common"
	"context"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/sirupsen/logrus"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	jaegerlog "github.com/uber/jaeger-client-go/log"
	"github.com/uber/jaeger-lib/metrics"
)

// InitGlobalTracer configures the jaeger tracer from JAEGER_* environment variables.
func InitGlobalTracer() (io.Closer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = common.GetServiceName()
	}
	tracer, closer, err := cfg.NewTracer(
		jaegercfg.Logger(jaegerlog.StdLogger),
		jaegercfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	logrus.Infof("tracer initialized for service %s", cfg.ServiceName)
	return closer, nil
}

// StartSpan starts an internal span as child of the span carried by ctx.
func StartSpan(ctx context.Context, operation string) (opentracing.Span, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	span, spanCtx := opentracing.StartSpanFromContext(ctx, operation)
	return span, spanCtx
}

// FinishSpan marks the span as failed when err is not nil.
func FinishSpan(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
	}
	span.Finish()
}
