package session

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With attaches the session to ctx so that components down the call chain
// can obtain their loggers.
func (s *Session) With(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}

// LoggerFromContext returns the named logger of the session in ctx, or a
// discarding logger when no session is attached.
func LoggerFromContext(ctx context.Context, name string) (*slog.Logger, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return slog.New(slog.DiscardHandler), nil
	}
	return s.GetLogger(name)
}
