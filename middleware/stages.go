package middleware

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/dirtywork-solutions/runecaller/signal"
)

// Logging returns a stage that debug-logs each message passing through
// the pipeline. The message is not modified.
func Logging(logger *slog.Logger) Stage {
	return func(ctx context.Context, msg signal.Message) (signal.Message, error) {
		logger.DebugContext(ctx, "dispatching signal",
			slog.String("signal", msg.Signal.String()),
			slog.String("sender", msg.Sender.String()),
			slog.Int("values", len(msg.Values)),
		)
		return msg, nil
	}
}

// Filter returns a stage that aborts dispatch when pred returns false.
func Filter(pred func(signal.Message) bool, reason string) Stage {
	return func(_ context.Context, msg signal.Message) (signal.Message, error) {
		if !pred(msg) {
			return msg, Abort(reason)
		}
		return msg, nil
	}
}

// RateLimit returns a stage that aborts dispatch when the limiter denies
// the message. Denied dispatches are not queued; the producer gets an
// empty batch immediately.
func RateLimit(limiter *rate.Limiter) Stage {
	return func(_ context.Context, msg signal.Message) (signal.Message, error) {
		if !limiter.Allow() {
			return msg, Abort("rate limit exceeded")
		}
		return msg, nil
	}
}
