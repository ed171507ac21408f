// Example usage:
//
//	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
//	slog.SetDefault(logger)
//
//	func handle(ctx context.Context) {
//	    logging.WithRequestID(ctx, slog.Default()).Info("processing request")
//	}
package logging
