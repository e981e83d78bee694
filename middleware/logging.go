package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/broady/restproxy"
)

// Logging creates a filter that logs every exchange using slog.
// It logs the start and end of each exchange, including status and duration.
func Logging(logger *slog.Logger) restproxy.ExchangeFilter {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, req *restproxy.RequestDescriptor, next restproxy.ExchangeFunc) (*http.Response, error) {
		start := time.Now()
		client, method, _ := restproxy.MethodFromContext(ctx)
		endpoint := client + "." + method

		logger.DebugContext(ctx, "request started",
			slog.String("endpoint", endpoint),
			slog.String("method", req.Method),
			slog.String("url", req.URL.Redacted()),
		)

		resp, err := next(ctx, req)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "request failed",
				slog.String("endpoint", endpoint),
				slog.String("method", req.Method),
				slog.String("url", req.URL.Redacted()),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
			return nil, err
		}

		level := slog.LevelInfo
		if resp.StatusCode >= 500 {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "request completed",
			slog.String("endpoint", endpoint),
			slog.String("method", req.Method),
			slog.String("url", req.URL.Redacted()),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", duration),
		)
		return resp, nil
	}
}
