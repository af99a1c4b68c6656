package workflow

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-workflow/core/workflow"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	eventsDecoded, _ = meter.Int64Counter("workflow.stream.events",
		metric.WithDescription("Workflow events decoded from backend streams"))
	unknownEvents, _ = meter.Int64Counter("workflow.stream.unknown_events",
		metric.WithDescription("Frames that decoded to unknown events"))
)
