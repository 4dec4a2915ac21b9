package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backupCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobvault",
			Subsystem: "backup",
			Name:      "created_total",
			Help:      "成功创建的备份总数。",
		},
		[]string{"trigger"},
	)

	backupSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jobvault",
			Subsystem: "backup",
			Name:      "skipped_total",
			Help:      "因数据无变化而跳过的备份次数。",
		},
	)

	backupFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jobvault",
			Subsystem: "backup",
			Name:      "failed_total",
			Help:      "备份创建失败总数。",
		},
	)

	storageBytesInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobvault",
			Subsystem: "storage",
			Name:      "bytes_in_use",
			Help:      "键值存储当前的近似字节占用。",
		},
	)
)

// BackupCreated 记录一次成功的备份，trigger 标识来源：api（HTTP 直接
// 触发）、manual/auto（worker 任务）、import（备份文件导入）。
func BackupCreated(trigger string) {
	backupCreatedTotal.WithLabelValues(trigger).Inc()
}

// BackupSkipped 记录一次被变更检测跳过的备份。
func BackupSkipped() {
	backupSkippedTotal.Inc()
}

// BackupFailed 记录一次备份失败。
func BackupFailed() {
	backupFailedTotal.Inc()
}

// SetStorageBytesInUse 更新键值存储占用指标。
func SetStorageBytesInUse(bytes int64) {
	storageBytesInUse.Set(float64(bytes))
}
