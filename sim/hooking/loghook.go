package hooking

import (
	"context"
	"fmt"
	"log/slog"
)

// LogHook writes every hook invocation into a structured logger.
type LogHook struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogHook returns a LogHook logging at the given level.
func NewLogHook(logger *slog.Logger, level slog.Level) *LogHook {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogHook{
		logger: logger,
		level:  level,
	}
}

// Func logs the hook position together with the item and detail.
func (h *LogHook) Func(ctx HookCtx) {
	attrs := []any{"pos", ctx.Pos.Name}

	if ctx.Item != nil {
		attrs = append(attrs, "item", fmt.Sprint(ctx.Item))
	}

	if ctx.Detail != nil {
		attrs = append(attrs, "detail", fmt.Sprint(ctx.Detail))
	}

	h.logger.Log(context.Background(), h.level, "hook", attrs...)
}
