package sse

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-workflow/core/sse"

var logger = otelslog.NewLogger(scopeName)
