package store

import (
	"context"
	"log/slog"

	"jobvault/internal/kv"
)

// Set 把同一分区的四个集合捆绑在一起，分区在构造时显式传入，
// 不存在进程级的"当前分区"状态。
type Set struct {
	Partition    kv.Partition
	Applications *ApplicationStore
	Versions     *CVStore
	Sections     *SectionStore
	Compositions *CompositionStore
	Linker       *Linker
}

// NewSet 基于底层键值存储构造一个分区的全部集合。各 store 的构造会
// 各自执行一次幂等的历史数据迁移。
func NewSet(ctx context.Context, backing kv.Store, partition kv.Partition, logger *slog.Logger) *Set {
	scoped := kv.NewPartitioned(backing, partition, logger)

	applications := NewApplicationStore(ctx, scoped, logger)
	versions := NewCVStore(ctx, scoped, logger)
	sections := NewSectionStore(ctx, scoped, logger)
	compositions := NewCompositionStore(ctx, scoped, sections, logger)

	return &Set{
		Partition:    partition,
		Applications: applications,
		Versions:     versions,
		Sections:     sections,
		Compositions: compositions,
		Linker:       NewLinker(applications, versions),
	}
}
