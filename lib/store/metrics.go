package store

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// track records the outcome and latency of an operation once f settled.
func track[T any](op string, f *Future[T]) *Future[T] {
	start := time.Now()
	f.whenDone(func(_ T, err error) {
		metrics.GetOrCreateCounter(fmt.Sprintf(`tkv_store_ops_total{op=%q,result=%q}`, op, resultLabel(err))).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`tkv_store_op_duration_seconds{op=%q}`, op)).UpdateDuration(start)
	})
	return f
}

func resultLabel(err error) string {
	var storeErr *Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &storeErr):
		return storeErr.Code.String()
	default:
		return "error"
	}
}

// OpCount returns how often op finished with result ("ok" or a RetCode name).
func OpCount(op, result string) uint64 {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`tkv_store_ops_total{op=%q,result=%q}`, op, result)).Get()
}

// WriteMetrics writes all store metrics in Prometheus text format to w.
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
