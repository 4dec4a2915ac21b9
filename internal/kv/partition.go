package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Partition 是一个数据集命名空间，两套语言数据共用 schema 但键完全隔离。
type Partition string

const (
	PartitionZH Partition = "zh"
	PartitionEN Partition = "en"

	// DefaultPartition 承接分区化之前的历史数据。
	DefaultPartition = PartitionZH
)

// Partitions 按固定顺序列出全部分区。
var Partitions = []Partition{PartitionZH, PartitionEN}

// Valid 报告分区标识是否已知。
func (p Partition) Valid() bool {
	return p == PartitionZH || p == PartitionEN
}

// ParsePartition 把外部输入转换为 Partition。
func ParsePartition(s string) (Partition, error) {
	p := Partition(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown partition %q", s)
	}
	return p, nil
}

// Partitioned 在底层 Store 之上加一层分区前缀：实际键为 baseKey-分区。
// 它不持有任何全局状态，分区在构造时显式传入。
type Partitioned struct {
	store     Store
	partition Partition
	logger    *slog.Logger
}

// NewPartitioned 构造分区适配器。
func NewPartitioned(store Store, partition Partition, logger *slog.Logger) *Partitioned {
	if logger == nil {
		logger = slog.Default()
	}
	return &Partitioned{store: store, partition: partition, logger: logger}
}

// Partition 返回适配器绑定的分区。
func (p *Partitioned) Partition() Partition {
	return p.partition
}

// Key 返回 baseKey 在当前分区下的实际存储键。
func (p *Partitioned) Key(baseKey string) string {
	return ScopedKey(baseKey, p.partition)
}

// ScopedKey 计算任意分区下的实际存储键。
func ScopedKey(baseKey string, partition Partition) string {
	return fmt.Sprintf("%s-%s", baseKey, partition)
}

// GetJSON 读取 baseKey 下的值并反序列化到 dest。键不存在时返回 (false, nil)
// 且不修改 dest，调用方由此落回安全的空默认值。
func (p *Partitioned) GetJSON(ctx context.Context, baseKey string, dest any) (bool, error) {
	key := p.Key(baseKey)
	values, err := p.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	raw, ok := values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON 序列化 value 并整体写入 baseKey。
func (p *Partitioned) SetJSON(ctx context.Context, baseKey string, value any) error {
	key := p.Key(baseKey)
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := p.store.Set(ctx, map[string]json.RawMessage{key: raw}); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove 删除若干 baseKey 在当前分区下的条目。
func (p *Partitioned) Remove(ctx context.Context, baseKeys ...string) error {
	keys := make([]string, 0, len(baseKeys))
	for _, base := range baseKeys {
		keys = append(keys, p.Key(base))
	}
	if err := p.store.Remove(ctx, keys...); err != nil {
		return fmt.Errorf("remove scoped keys: %w", err)
	}
	return nil
}

// MigrateLegacy 把分区化之前留在裸 baseKey 下的数据搬到默认分区（zh）。
// 幂等：zh 键已有数据或旧键为空时不做任何事。迁移失败只记日志不中断，
// 读写路径的错误仍然正常上抛。
func (p *Partitioned) MigrateLegacy(ctx context.Context, baseKeys ...string) {
	for _, base := range baseKeys {
		if err := p.migrateOne(ctx, base); err != nil {
			p.logger.Error("legacy data migration failed",
				slog.String("base_key", base),
				slog.Any("error", err),
			)
		}
	}
}

func (p *Partitioned) migrateOne(ctx context.Context, baseKey string) error {
	scopedZH := ScopedKey(baseKey, DefaultPartition)

	values, err := p.store.Get(ctx, baseKey, scopedZH)
	if err != nil {
		return fmt.Errorf("read legacy key: %w", err)
	}

	legacy, hasLegacy := values[baseKey]
	if !hasLegacy || len(legacy) == 0 {
		return nil
	}
	if _, migrated := values[scopedZH]; migrated {
		// 已迁移过，旧键只可能是残留，保持不动以免覆盖新数据。
		return nil
	}

	if err := p.store.Set(ctx, map[string]json.RawMessage{scopedZH: legacy}); err != nil {
		return fmt.Errorf("copy legacy data: %w", err)
	}
	if err := p.store.Remove(ctx, baseKey); err != nil {
		return fmt.Errorf("remove legacy key: %w", err)
	}

	p.logger.Info("migrated legacy data to default partition",
		slog.String("base_key", baseKey),
	)
	return nil
}
