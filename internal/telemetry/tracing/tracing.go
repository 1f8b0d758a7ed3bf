package tracing

import (
	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var GlobalTracer = otel.Tracer("notesbox")

// HoneycombSetup configures the OpenTelemetry SDK to export to honeycomb.
// Exporter settings come from the standard OTEL_* / HONEYCOMB_* env vars.
// The returned func flushes and shuts the exporter down.
func HoneycombSetup(enabled bool, serviceName string) (func(), error) {
	if !enabled {
		log.Debugln("tracing disabled")
		return func() {}, nil
	}

	// copies baggage entries into span attributes
	bsp := honeycomb.NewBaggageSpanProcessor()

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
		otelconfig.WithSpanProcessor(bsp),
	)
	if err != nil {
		return nil, err
	}

	log.Debugf("honeycomb tracing set up for service [%s]", serviceName)
	return otelShutdown, nil
}

// EndSpanWithErrCheck records err on the span (if any) and ends it.
func EndSpanWithErrCheck(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}
