package database

import (
	"gorm.io/datatypes"
)

// KVEntry 是持久化键值存储的底层行。每个实体集合整体序列化为 JSON
// 存放在 Value 中，Key 即对外暴露的 storage key（含分区后缀）。
type KVEntry struct {
	Key   string         `gorm:"primaryKey;size:255"`
	Value datatypes.JSON `gorm:"type:jsonb"`
}

// TableName 固定表名，避免 GORM 复数化。
func (KVEntry) TableName() string {
	return "kv_entries"
}
