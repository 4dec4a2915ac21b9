package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeBackupCreate = "backup:create"
)

// BackupCreatePayload 描述触发一次备份所需的最小信息。
type BackupCreatePayload struct {
	Description   string `json:"description"`
	IsAutoBackup  bool   `json:"is_auto_backup"`
	Force         bool   `json:"force"`
	CorrelationID string `json:"correlation_id"`
}

// NewBackupCreateTask 构造一个新的备份创建任务。
func NewBackupCreateTask(description string, isAutoBackup, force bool, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(BackupCreatePayload{
		Description:   description,
		IsAutoBackup:  isAutoBackup,
		Force:         force,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBackupCreate, payload), nil
}
