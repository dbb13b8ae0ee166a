// Package logging provides structured logging utilities with context propagation.
//
// Example usage:
//
//	func main() {
//	    logger := logging.NewLogger()
//	    slog.SetDefault(logger)
//	}
//
//	func handle(ctx context.Context) {
//	    logger := logging.WithCorrelationID(ctx, slog.Default())
//	    logger.Info("analysis started")
//	}
package logging
