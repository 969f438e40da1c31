// Package metrics 提供 eidos-qprofile 服务的 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eidos_qprofile"

// 规则激活指标
var (
	// OperationsTotal 配置操作总数
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "配置操作总数",
		},
		[]string{"operation", "result"}, // result: success/rejected/error
	)

	// OperationDuration 配置操作耗时
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "配置操作耗时(秒)",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	// ActiveRuleChangesTotal 激活规则变更总数
	ActiveRuleChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "active_rule_changes_total",
			Help:      "激活规则变更总数",
		},
		[]string{"type"}, // type: ACTIVATED/UPDATED/DEACTIVATED
	)

	// BulkItemsTotal 批量操作规则数
	BulkItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_items_total",
			Help:      "批量操作规则数",
		},
		[]string{"operation", "result"}, // result: succeeded/failed
	)
)

// 内置配置同步指标
var (
	// BuiltInSyncTotal 内置配置同步次数
	BuiltInSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builtin_sync_total",
			Help:      "内置配置同步次数",
		},
		[]string{"result"},
	)

	// BuiltInSyncChangesTotal 内置配置同步产生的变更数
	BuiltInSyncChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builtin_sync_changes_total",
			Help:      "内置配置同步产生的变更数",
		},
		[]string{"language", "type"},
	)

	// JobRunsTotal 定时任务执行次数
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "定时任务执行次数",
		},
		[]string{"job", "result"}, // result: success/failed/skipped
	)
)

// 下游指标
var (
	// IndexErrorsTotal 索引写入失败次数
	IndexErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_errors_total",
			Help:      "索引写入失败次数",
		},
	)

	// NotificationsTotal 变更通知发送次数
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "变更通知发送次数",
		},
		[]string{"result"},
	)
)

// Helper functions

// RecordOperation 记录配置操作
func RecordOperation(operation, result string, durationSeconds float64) {
	OperationsTotal.WithLabelValues(operation, result).Inc()
	OperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordChange 记录激活规则变更
func RecordChange(changeType string) {
	ActiveRuleChangesTotal.WithLabelValues(changeType).Inc()
}

// RecordBulk 记录批量操作结果
func RecordBulk(operation string, succeeded, failed int) {
	BulkItemsTotal.WithLabelValues(operation, "succeeded").Add(float64(succeeded))
	BulkItemsTotal.WithLabelValues(operation, "failed").Add(float64(failed))
}

// RecordBuiltInSync 记录内置配置同步
func RecordBuiltInSync(success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	BuiltInSyncTotal.WithLabelValues(result).Inc()
}

// RecordBuiltInChange 记录内置配置变更
func RecordBuiltInChange(language, changeType string) {
	BuiltInSyncChangesTotal.WithLabelValues(language, changeType).Inc()
}

// RecordJobRun 记录定时任务执行
func RecordJobRun(job, result string) {
	JobRunsTotal.WithLabelValues(job, result).Inc()
}

// RecordIndexError 记录索引写入失败
func RecordIndexError() {
	IndexErrorsTotal.Inc()
}

// RecordNotification 记录变更通知
func RecordNotification(sent bool) {
	result := "sent"
	if !sent {
		result = "failed"
	}
	NotificationsTotal.WithLabelValues(result).Inc()
}
