package store

import (
	"context"
	"fmt"
	"log/slog"

	"jobvault/internal/kv"
)

// BaseKeyCVVersions 是文档版本集合的未分区存储键。
const BaseKeyCVVersions = "job-assistant-cv-versions"

// CVStore 管理单个分区内的简历/求职信版本。版本一经创建内容不再改写，
// 只有链接、标签等元信息会更新。
type CVStore struct {
	kv     *kv.Partitioned
	logger *slog.Logger
}

// NewCVStore 构造 CVStore，构造时尝试一次历史数据迁移。
func NewCVStore(ctx context.Context, scoped *kv.Partitioned, logger *slog.Logger) *CVStore {
	if logger == nil {
		logger = slog.Default()
	}
	scoped.MigrateLegacy(ctx, BaseKeyCVVersions)
	return &CVStore{kv: scoped, logger: logger}
}

// GetAll 返回当前分区的全部版本，读取失败时返回空列表并记日志。
func (s *CVStore) GetAll(ctx context.Context) []CVVersion {
	versions := []CVVersion{}
	if _, err := s.kv.GetJSON(ctx, BaseKeyCVVersions, &versions); err != nil {
		s.logger.Error("load cv versions failed", slog.Any("error", err))
		return []CVVersion{}
	}
	return versions
}

// GetByID 按 id 查找，不存在返回 nil。
func (s *CVStore) GetByID(ctx context.Context, id string) *CVVersion {
	for _, v := range s.GetAll(ctx) {
		if v.ID == id {
			return &v
		}
	}
	return nil
}

// Save 按 id upsert 一个版本。
func (s *CVStore) Save(ctx context.Context, version CVVersion) error {
	versions := s.GetAll(ctx)

	replaced := false
	for i := range versions {
		if versions[i].ID == version.ID {
			version.Updated = nowISO()
			versions[i] = version
			replaced = true
			break
		}
	}
	if !replaced {
		if version.Created == "" {
			version.Created = nowISO()
		}
		versions = append(versions, version)
	}

	if err := s.kv.SetJSON(ctx, BaseKeyCVVersions, versions); err != nil {
		return fmt.Errorf("save cv version: %w", err)
	}
	return nil
}

// UpdateCV 对已有版本做窄幅字段更新（标题、标签、备注），id 不存在时
// 报 ErrNotFound。这是存储层唯一的局部更新入口。
func (s *CVStore) UpdateCV(ctx context.Context, id string, update func(*CVVersion)) error {
	versions := s.GetAll(ctx)
	for i := range versions {
		if versions[i].ID == id {
			update(&versions[i])
			versions[i].Updated = nowISO()
			if err := s.kv.SetJSON(ctx, BaseKeyCVVersions, versions); err != nil {
				return fmt.Errorf("update cv version: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("cv version %s: %w", id, ErrNotFound)
}

// Delete 按 id 删除。已链接到求职记录的版本也允许删除，调用方应先向
// 用户确认；该记录上的引用会悬空，这是文档化接受的状态。
func (s *CVStore) Delete(ctx context.Context, id string) error {
	versions := s.GetAll(ctx)
	filtered := versions[:0]
	for _, v := range versions {
		if v.ID != id {
			filtered = append(filtered, v)
		}
	}
	if err := s.kv.SetJSON(ctx, BaseKeyCVVersions, filtered); err != nil {
		return fmt.Errorf("delete cv version: %w", err)
	}
	return nil
}

// GetNextVersionNumber 返回分区内下一个版本号：空集合为 1，否则取
// 现存最大值加一。中间版本被删除不会导致号码回填。
func (s *CVStore) GetNextVersionNumber(ctx context.Context) int {
	versions := s.GetAll(ctx)
	if len(versions) == 0 {
		return 1
	}
	max := versions[0].VersionNumber
	for _, v := range versions[1:] {
		if v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max + 1
}

// LinkToApplication 把一条求职记录 id 幂等地加入版本的链接列表。
// 版本不存在时报 ErrNotFound。
func (s *CVStore) LinkToApplication(ctx context.Context, versionID, applicationID string) error {
	version := s.GetByID(ctx, versionID)
	if version == nil {
		return fmt.Errorf("cv version %s: %w", versionID, ErrNotFound)
	}

	for _, linked := range version.LinkedApplications {
		if linked == applicationID {
			return nil
		}
	}

	version.LinkedApplications = append(version.LinkedApplications, applicationID)
	if err := s.Save(ctx, *version); err != nil {
		return fmt.Errorf("link application: %w", err)
	}
	return nil
}

// UnlinkFromApplication 幂等地移除链接，版本不存在时静默返回。
func (s *CVStore) UnlinkFromApplication(ctx context.Context, versionID, applicationID string) error {
	version := s.GetByID(ctx, versionID)
	if version == nil {
		return nil
	}

	filtered := version.LinkedApplications[:0]
	for _, linked := range version.LinkedApplications {
		if linked != applicationID {
			filtered = append(filtered, linked)
		}
	}
	version.LinkedApplications = filtered

	if err := s.Save(ctx, *version); err != nil {
		return fmt.Errorf("unlink application: %w", err)
	}
	return nil
}

// GetVersionsForApplication 返回链接到指定求职记录的全部版本。
func (s *CVStore) GetVersionsForApplication(ctx context.Context, applicationID string) []CVVersion {
	matched := []CVVersion{}
	for _, v := range s.GetAll(ctx) {
		for _, linked := range v.LinkedApplications {
			if linked == applicationID {
				matched = append(matched, v)
				break
			}
		}
	}
	return matched
}

// CreateHashForContent 计算内容摘要，用于身份与去重。
func (s *CVStore) CreateHashForContent(content string) string {
	return HashContent(content)
}
