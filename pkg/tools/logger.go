package tools

import (
	"context"
	"log/slog"

	"github.com/amitbl/pharmachat/pkg/session"
)

func getLogger(ctx context.Context) *slog.Logger {
	logger, err := session.LoggerFromContext(ctx, "tools")
	if err != nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
