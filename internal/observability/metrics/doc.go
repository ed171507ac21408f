// Package metrics provides the shop's Prometheus metrics registry and
// recording helpers.
//
// It centralizes:
//   - Business metrics (orders placed, status changes, contact messages)
//   - Telegram bot credential checks
//   - Database query metrics
//
// All metrics are registered with the Prometheus default registry and
// exposed via the /metrics endpoint. HTTP request metrics live next to the
// middleware in the http handler package.
//
// Example usage:
//
//	import "perfumery-notify/internal/observability/metrics"
//
//	func place(ctx context.Context, o *entity.Order) error {
//	    if err := repo.Create(ctx, o); err != nil {
//	        return err
//	    }
//	    metrics.RecordOrderPlaced(o.Total)
//	    return nil
//	}
package metrics
