package workflow

import (
	"context"

	"github.com/AnTengye/civicfund/pkg/logger"
)

// Notifier surfaces transient progress and outcome messages to the user
type Notifier interface {
	Info(ctx context.Context, msg string)
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct{}

func (LogNotifier) Info(ctx context.Context, msg string) {
	logger.Info(ctx, msg, "kind", "info")
}

func (LogNotifier) Success(ctx context.Context, msg string) {
	logger.Info(ctx, msg, "kind", "success")
}

func (LogNotifier) Error(ctx context.Context, msg string) {
	logger.Warn(ctx, msg, "kind", "error")
}

func notifierOrDefault(n Notifier) Notifier {
	if n == nil {
		return LogNotifier{}
	}
	return n
}
