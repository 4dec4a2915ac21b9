package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jobvault/internal/kv"
)

// BaseKeyCompositions 是文档组合集合的未分区存储键。
const BaseKeyCompositions = "job-assistant-cv-compositions"

// CompositionStore 管理单个分区内的文档组合。
type CompositionStore struct {
	kv       *kv.Partitioned
	sections *SectionStore
	logger   *slog.Logger
}

// NewCompositionStore 构造 CompositionStore，构造时尝试一次历史数据迁移。
// 组合需要解析片段引用，因此持有同分区的 SectionStore。
func NewCompositionStore(ctx context.Context, scoped *kv.Partitioned, sections *SectionStore, logger *slog.Logger) *CompositionStore {
	if logger == nil {
		logger = slog.Default()
	}
	scoped.MigrateLegacy(ctx, BaseKeyCompositions)
	return &CompositionStore{kv: scoped, sections: sections, logger: logger}
}

// GetAll 返回当前分区的全部组合，读取失败时返回空列表并记日志。
func (s *CompositionStore) GetAll(ctx context.Context) []CVComposition {
	compositions := []CVComposition{}
	if _, err := s.kv.GetJSON(ctx, BaseKeyCompositions, &compositions); err != nil {
		s.logger.Error("load compositions failed", slog.Any("error", err))
		return []CVComposition{}
	}
	return compositions
}

// GetByID 按 id 查找，不存在返回 nil。
func (s *CompositionStore) GetByID(ctx context.Context, id string) *CVComposition {
	for _, composition := range s.GetAll(ctx) {
		if composition.ID == id {
			return &composition
		}
	}
	return nil
}

// Save 按 id upsert 一个组合。
func (s *CompositionStore) Save(ctx context.Context, composition CVComposition) error {
	compositions := s.GetAll(ctx)

	replaced := false
	for i := range compositions {
		if compositions[i].ID == composition.ID {
			composition.Updated = nowISO()
			compositions[i] = composition
			replaced = true
			break
		}
	}
	if !replaced {
		if composition.Created == "" {
			composition.Created = nowISO()
		}
		if composition.Updated == "" {
			composition.Updated = composition.Created
		}
		compositions = append(compositions, composition)
	}

	if err := s.kv.SetJSON(ctx, BaseKeyCompositions, compositions); err != nil {
		return fmt.Errorf("save composition: %w", err)
	}
	return nil
}

// Delete 按 id 删除，id 不存在时静默成功。
func (s *CompositionStore) Delete(ctx context.Context, id string) error {
	compositions := s.GetAll(ctx)
	filtered := compositions[:0]
	for _, composition := range compositions {
		if composition.ID != id {
			filtered = append(filtered, composition)
		}
	}
	if err := s.kv.SetJSON(ctx, BaseKeyCompositions, filtered); err != nil {
		return fmt.Errorf("delete composition: %w", err)
	}
	return nil
}

// GenerateLatex 把组合引用的片段按 sectionOrder 排序后，用空行拼接各自
// 的结构化标记内容。解析不到的片段引用直接跳过（弱引用允许悬空）。
// 组合不存在时报 ErrNotFound。
func (s *CompositionStore) GenerateLatex(ctx context.Context, compositionID string) (string, error) {
	composition := s.GetByID(ctx, compositionID)
	if composition == nil {
		return "", fmt.Errorf("composition %s: %w", compositionID, ErrNotFound)
	}

	resolved := make([]*ResumeSection, len(composition.SectionIDs))
	for i, id := range composition.SectionIDs {
		resolved[i] = s.sections.GetByID(ctx, id)
	}

	parts := []string{}
	for _, order := range composition.SectionOrder {
		if order < 0 || order >= len(resolved) {
			continue
		}
		if section := resolved[order]; section != nil {
			parts = append(parts, section.LatexContent)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
