package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobvault/internal/database"
)

// Store 抽象底层持久化键值存储：单键读写原子，无跨键事务保证。
type Store interface {
	// Get 返回请求键中存在的条目，缺失的键不出现在结果里。
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, entries map[string]json.RawMessage) error
	Remove(ctx context.Context, keys ...string) error
	// BytesInUse 返回所有已存值的近似字节占用。
	BytesInUse(ctx context.Context) (int64, error)
}

// GormStore 把键值契约落到一张 kv_entries 表上。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 构造 GormStore。
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get 实现 Store。
func (s *GormStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var entries []database.KVEntry
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("get keys: %w", err)
	}

	result := make(map[string]json.RawMessage, len(entries))
	for _, entry := range entries {
		result[entry.Key] = json.RawMessage(entry.Value)
	}
	return result, nil
}

// Set 实现 Store，按主键 upsert。
func (s *GormStore) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]database.KVEntry, 0, len(entries))
	for key, value := range entries {
		rows = append(rows, database.KVEntry{Key: key, Value: []byte(value)})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("set keys: %w", err)
	}
	return nil
}

// Remove 实现 Store，删除不存在的键不算错误。
func (s *GormStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&database.KVEntry{}).Error; err != nil {
		return fmt.Errorf("remove keys: %w", err)
	}
	return nil
}

// BytesInUse 实现 Store。
func (s *GormStore) BytesInUse(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&database.KVEntry{}).
		Select("COALESCE(SUM(LENGTH(value)), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("bytes in use: %w", err)
	}
	return total, nil
}
