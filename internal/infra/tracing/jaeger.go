package tracing

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const ServiceName = "timelapse-recorder"

// Stream identifies the camera and destination a recorder instance serves.
// It is attached to every exported span.
type Stream struct {
	SourceURL       string
	OutputDir       string
	FramesPerVideo  int
	IntervalSeconds int
}

func InitTracer(ctx context.Context, jaegerEndpoint string, stream Stream) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(jaegerEndpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, Attributes(stream)...)),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// Attributes describes stream as resource attributes. Credentials embedded
// in the source URL are masked.
func Attributes(stream Stream) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(ServiceName)}
	if stream.SourceURL != "" {
		attrs = append(attrs, attribute.String("timelapse.source", RedactSource(stream.SourceURL)))
	}
	if stream.OutputDir != "" {
		attrs = append(attrs, attribute.String("timelapse.output_dir", stream.OutputDir))
	}
	if stream.FramesPerVideo > 0 {
		attrs = append(attrs, attribute.Int("timelapse.frames_per_video", stream.FramesPerVideo))
	}
	if stream.IntervalSeconds > 0 {
		attrs = append(attrs, attribute.Int("timelapse.interval_seconds", stream.IntervalSeconds))
	}
	return attrs
}

// RedactSource masks the password of a camera URL. Unparseable input is
// dropped entirely.
func RedactSource(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
