package worker

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type BackupNotifyMessage struct {
	Status        string `json:"status"` // success | skipped | error
	BackupID      string `json:"backup_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// NotifyChannel 是备份通知的 Redis Pub/Sub 频道。单用户部署，
// 无需按用户拆分频道。
const NotifyChannel = "jobvault:backup_notify"
