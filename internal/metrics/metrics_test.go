package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOperation(t *testing.T) {
	initial := testutil.ToFloat64(OperationsTotal.WithLabelValues("activate", "success"))

	RecordOperation("activate", "success", 0.01)

	assert.Equal(t, initial+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("activate", "success")))
}

func TestRecordChange(t *testing.T) {
	initial := testutil.ToFloat64(ActiveRuleChangesTotal.WithLabelValues("ACTIVATED"))

	RecordChange("ACTIVATED")
	RecordChange("ACTIVATED")

	assert.Equal(t, initial+2, testutil.ToFloat64(ActiveRuleChangesTotal.WithLabelValues("ACTIVATED")))
}

func TestRecordBulk(t *testing.T) {
	succeeded := testutil.ToFloat64(BulkItemsTotal.WithLabelValues("bulk_activate", "succeeded"))
	failed := testutil.ToFloat64(BulkItemsTotal.WithLabelValues("bulk_activate", "failed"))

	RecordBulk("bulk_activate", 3, 1)

	assert.Equal(t, succeeded+3, testutil.ToFloat64(BulkItemsTotal.WithLabelValues("bulk_activate", "succeeded")))
	assert.Equal(t, failed+1, testutil.ToFloat64(BulkItemsTotal.WithLabelValues("bulk_activate", "failed")))
}

func TestRecordBuiltInSync(t *testing.T) {
	success := testutil.ToFloat64(BuiltInSyncTotal.WithLabelValues("success"))
	failed := testutil.ToFloat64(BuiltInSyncTotal.WithLabelValues("failed"))

	RecordBuiltInSync(true)
	RecordBuiltInSync(false)

	assert.Equal(t, success+1, testutil.ToFloat64(BuiltInSyncTotal.WithLabelValues("success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(BuiltInSyncTotal.WithLabelValues("failed")))
}

func TestRecordNotification(t *testing.T) {
	initial := testutil.ToFloat64(NotificationsTotal.WithLabelValues("failed"))

	RecordNotification(false)

	assert.Equal(t, initial+1, testutil.ToFloat64(NotificationsTotal.WithLabelValues("failed")))
}

func TestRecordIndexError(t *testing.T) {
	initial := testutil.ToFloat64(IndexErrorsTotal)

	RecordIndexError()

	assert.Equal(t, initial+1, testutil.ToFloat64(IndexErrorsTotal))
}
