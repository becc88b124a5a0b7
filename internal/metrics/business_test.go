package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBizMetricLine checks that the Prometheus output contains a metric matching the
// given name, partial label pattern and value. OTel scope labels may appear in between.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func TestBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("cryptoshred_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "cryptoshred_test")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordOperation(ctx, "shredder", "log_event", "success")
	bm.RecordOperation(ctx, "shredder", "log_event", "success")
	bm.RecordOperation(ctx, "shredder", "read_event", "erased")
	bm.RecordDuration(ctx, "shredder", "shred", 15*time.Millisecond, "success")
	bm.RecordRewrapped(ctx, 7)
	bm.RecordRewrapped(ctx, 0)

	output := scrape(t, provider)

	assertBizMetricLine(t, output, "cryptoshred_test_operations_total",
		`domain="shredder",operation="log_event",status="success"`, "2")
	assertBizMetricLine(t, output, "cryptoshred_test_operations_total",
		`domain="shredder",operation="read_event",status="erased"`, "1")
	assertBizMetricLine(t, output, "cryptoshred_test_operation_duration_seconds_count",
		`domain="shredder",operation="shred",status="success"`, "1")
	assert.Regexp(t, `cryptoshred_test_rewrapped_keys_total(\{[^}]*\})? 7`, output)
}

func TestNoOpBusinessMetrics(t *testing.T) {
	noOp := NewNoOpBusinessMetrics()
	assert.IsType(t, &NoOpBusinessMetrics{}, noOp)

	assert.NotPanics(t, func() {
		noOp.RecordOperation(context.Background(), "shredder", "shred", "success")
		noOp.RecordDuration(context.Background(), "shredder", "shred", time.Millisecond, "error")
		noOp.RecordRewrapped(context.Background(), 3)
	})
}
