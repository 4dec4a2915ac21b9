package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"jobvault/internal/kv"
)

// BaseKeySections 是简历片段集合的未分区存储键。
const BaseKeySections = "job-assistant-resume-sections"

// SectionStore 管理单个分区内的简历片段与片段模板。
type SectionStore struct {
	kv     *kv.Partitioned
	logger *slog.Logger
}

// NewSectionStore 构造 SectionStore，构造时尝试一次历史数据迁移。
func NewSectionStore(ctx context.Context, scoped *kv.Partitioned, logger *slog.Logger) *SectionStore {
	if logger == nil {
		logger = slog.Default()
	}
	scoped.MigrateLegacy(ctx, BaseKeySections)
	return &SectionStore{kv: scoped, logger: logger}
}

// GetAll 返回当前分区的全部片段，读取失败时返回空列表并记日志。
func (s *SectionStore) GetAll(ctx context.Context) []ResumeSection {
	sections := []ResumeSection{}
	if _, err := s.kv.GetJSON(ctx, BaseKeySections, &sections); err != nil {
		s.logger.Error("load sections failed", slog.Any("error", err))
		return []ResumeSection{}
	}
	return sections
}

// GetByID 按 id 查找，不存在返回 nil。
func (s *SectionStore) GetByID(ctx context.Context, id string) *ResumeSection {
	for _, section := range s.GetAll(ctx) {
		if section.ID == id {
			return &section
		}
	}
	return nil
}

// Save 按 id upsert 一个片段。
func (s *SectionStore) Save(ctx context.Context, section ResumeSection) error {
	sections := s.GetAll(ctx)

	replaced := false
	for i := range sections {
		if sections[i].ID == section.ID {
			section.Updated = nowISO()
			sections[i] = section
			replaced = true
			break
		}
	}
	if !replaced {
		if section.Created == "" {
			section.Created = nowISO()
		}
		if section.Updated == "" {
			section.Updated = section.Created
		}
		sections = append(sections, section)
	}

	if err := s.kv.SetJSON(ctx, BaseKeySections, sections); err != nil {
		return fmt.Errorf("save section: %w", err)
	}
	return nil
}

// Delete 按 id 删除，id 不存在时静默成功。
func (s *SectionStore) Delete(ctx context.Context, id string) error {
	sections := s.GetAll(ctx)
	filtered := sections[:0]
	for _, section := range sections {
		if section.ID != id {
			filtered = append(filtered, section)
		}
	}
	if err := s.kv.SetJSON(ctx, BaseKeySections, filtered); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

// GetSectionsByType 按分类过滤片段。
func (s *SectionStore) GetSectionsByType(ctx context.Context, sectionType SectionType) []ResumeSection {
	matched := []ResumeSection{}
	for _, section := range s.GetAll(ctx) {
		if section.Type == sectionType {
			matched = append(matched, section)
		}
	}
	return matched
}

// GetTemplates 返回全部模板片段。
func (s *SectionStore) GetTemplates(ctx context.Context) []ResumeSection {
	templates := []ResumeSection{}
	for _, section := range s.GetAll(ctx) {
		if section.IsTemplate {
			templates = append(templates, section)
		}
	}
	return templates
}

// CreateSectionFromTemplate 把模板克隆为一个可编辑的新片段：版本号重置
// 为 1，parentId 指向模板。overrides 中的非零字段覆盖模板内容。
// 模板不存在时报 ErrNotFound。
func (s *SectionStore) CreateSectionFromTemplate(ctx context.Context, templateID string, overrides ResumeSection) (*ResumeSection, error) {
	template := s.GetByID(ctx, templateID)
	if template == nil {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
	}

	section := ResumeSection{
		ID:            uuid.NewString(),
		Type:          template.Type,
		Title:         fmt.Sprintf("%s (Copy)", template.Title),
		Content:       template.Content,
		LatexContent:  template.LatexContent,
		Tags:          append([]string{}, template.Tags...),
		Created:       nowISO(),
		Updated:       nowISO(),
		VersionNumber: 1,
		ParentID:      templateID,
		IsTemplate:    false,
	}
	if overrides.Title != "" {
		section.Title = overrides.Title
	}
	if overrides.Content != "" {
		section.Content = overrides.Content
	}
	if overrides.LatexContent != "" {
		section.LatexContent = overrides.LatexContent
	}
	if len(overrides.Tags) > 0 {
		section.Tags = append([]string{}, overrides.Tags...)
	}

	if err := s.Save(ctx, section); err != nil {
		return nil, fmt.Errorf("save cloned section: %w", err)
	}
	return &section, nil
}

// GetNextVersionNumber 返回分区内下一个片段版本号。
func (s *SectionStore) GetNextVersionNumber(ctx context.Context) int {
	sections := s.GetAll(ctx)
	if len(sections) == 0 {
		return 1
	}
	max := sections[0].VersionNumber
	for _, section := range sections[1:] {
		if section.VersionNumber > max {
			max = section.VersionNumber
		}
	}
	return max + 1
}

// InitializeDefaultTemplates 植入固定的起始模板。幂等：分区内已有任意
// 模板时直接返回。
func (s *SectionStore) InitializeDefaultTemplates(ctx context.Context) error {
	if len(s.GetTemplates(ctx)) > 0 {
		return nil
	}

	for _, template := range defaultTemplates() {
		if err := s.Save(ctx, template); err != nil {
			return fmt.Errorf("seed template %s: %w", template.Title, err)
		}
	}
	return nil
}

func defaultTemplates() []ResumeSection {
	now := nowISO()
	return []ResumeSection{
		{
			ID:            uuid.NewString(),
			Type:          SectionEducation,
			Title:         "教育背景模板",
			Content:       "**大学名称**, 专业名称，*学位类型*\n起始时间 - 结束时间\n\n获得的奖学金或荣誉",
			LatexContent:  "\\datedsubsection{\\textbf{大学名称}, 专业名称，\\textit{学位类型}}{起始时间 - 结束时间}\n\n获得的奖学金或荣誉",
			Tags:          []string{"education", "template"},
			Created:       now,
			Updated:       now,
			VersionNumber: 1,
			IsTemplate:    true,
		},
		{
			ID:            uuid.NewString(),
			Type:          SectionExperience,
			Title:         "实习经历模板",
			Content:       "**公司名称** | 部门/团队, **职位**, 城市\n起始时间-结束时间\n\n• 主要成就描述：包括具体数据和影响\n• 另一项重要工作内容和结果\n• 技术优化或创新方面的贡献",
			LatexContent:  "\\datedsubsection{\\textbf{公司名称} | 部门/团队, \\textbf{职位}, 城市}{起始时间-结束时间}\n\\begin{itemize}\n  \\item 主要成就描述：包括具体数据和影响\n  \\item 另一项重要工作内容和结果\n  \\item 技术优化或创新方面的贡献\n\\end{itemize}",
			Tags:          []string{"experience", "internship", "template"},
			Created:       now,
			Updated:       now,
			VersionNumber: 1,
			IsTemplate:    true,
		},
		{
			ID:            uuid.NewString(),
			Type:          SectionResearch,
			Title:         "研究项目模板",
			Content:       "**研究阶段 (年份)**：具体研究内容和成果描述\n论文标题. **作者**, 其他作者, 年份.",
			LatexContent:  "\\item \\textbf{研究阶段 (年份)}：具体研究内容和成果描述\\\\\n论文标题. \\textbf{作者}, 其他作者, 年份.",
			Tags:          []string{"research", "academic", "template"},
			Created:       now,
			Updated:       now,
			VersionNumber: 1,
			IsTemplate:    true,
		},
	}
}
