package store

import (
	"context"
	"fmt"
	"log/slog"

	"jobvault/internal/kv"
)

// BaseKeyApplications 是求职记录集合的未分区存储键。
const BaseKeyApplications = "job-assistant-data"

// ApplicationStore 管理单个分区内的求职记录与随附设置。
// 每次变更都整体重写集合（读-改-写）；单用户规模下接受集合粒度的
// last-write-wins 竞争。
type ApplicationStore struct {
	kv     *kv.Partitioned
	logger *slog.Logger
}

// NewApplicationStore 构造 ApplicationStore，构造时尝试一次历史数据迁移。
func NewApplicationStore(ctx context.Context, scoped *kv.Partitioned, logger *slog.Logger) *ApplicationStore {
	if logger == nil {
		logger = slog.Default()
	}
	scoped.MigrateLegacy(ctx, BaseKeyApplications)
	return &ApplicationStore{kv: scoped, logger: logger}
}

// GetAll 返回当前分区的全部求职记录。读取失败时返回空列表并记日志，
// 不让读路径把错误抛给界面。
func (s *ApplicationStore) GetAll(ctx context.Context) []JobApplication {
	data, err := s.load(ctx)
	if err != nil {
		s.logger.Error("load applications failed", slog.Any("error", err))
		return []JobApplication{}
	}
	return data.Applications
}

// GetByID 按 id 查找，不存在返回 nil。
func (s *ApplicationStore) GetByID(ctx context.Context, id string) *JobApplication {
	for _, app := range s.GetAll(ctx) {
		if app.ID == id {
			return &app
		}
	}
	return nil
}

// Save 按 id upsert 一条记录：新插入补 createdAt，任何保存都刷新 updatedAt。
func (s *ApplicationStore) Save(ctx context.Context, app JobApplication) error {
	data, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("load applications: %w", err)
	}

	app.UpdatedAt = nowISO()

	replaced := false
	for i := range data.Applications {
		if data.Applications[i].ID == app.ID {
			data.Applications[i] = app
			replaced = true
			break
		}
	}
	if !replaced {
		if app.CreatedAt == "" {
			app.CreatedAt = nowISO()
		}
		data.Applications = append(data.Applications, app)
	}

	if err := s.kv.SetJSON(ctx, BaseKeyApplications, data); err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	return nil
}

// Delete 按 id 删除，id 不存在时静默成功。
func (s *ApplicationStore) Delete(ctx context.Context, id string) error {
	data, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("load applications: %w", err)
	}

	filtered := data.Applications[:0]
	for _, app := range data.Applications {
		if app.ID != id {
			filtered = append(filtered, app)
		}
	}
	data.Applications = filtered

	if err := s.kv.SetJSON(ctx, BaseKeyApplications, data); err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return nil
}

// UpdateStatus 更新某条记录的状态，id 不存在时返回 ErrNotFound。
func (s *ApplicationStore) UpdateStatus(ctx context.Context, id string, status ApplicationStatus) error {
	app := s.GetByID(ctx, id)
	if app == nil {
		return fmt.Errorf("application %s: %w", id, ErrNotFound)
	}

	app.Status = status
	if err := s.Save(ctx, *app); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// GetConfig 返回分区内持久化的设置，读取失败时落回零值。
func (s *ApplicationStore) GetConfig(ctx context.Context) Config {
	data, err := s.load(ctx)
	if err != nil {
		s.logger.Error("load config failed", slog.Any("error", err))
		return Config{}
	}
	return data.Config
}

// SaveConfig 合并写入设置，零值字段不覆盖已有内容。
func (s *ApplicationStore) SaveConfig(ctx context.Context, cfg Config) error {
	data, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.OpenAIAPIKey != "" {
		data.Config.OpenAIAPIKey = cfg.OpenAIAPIKey
	}

	if err := s.kv.SetJSON(ctx, BaseKeyApplications, data); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

func (s *ApplicationStore) load(ctx context.Context) (applicationData, error) {
	data := applicationData{Applications: []JobApplication{}}
	if _, err := s.kv.GetJSON(ctx, BaseKeyApplications, &data); err != nil {
		return applicationData{Applications: []JobApplication{}}, err
	}
	if data.Applications == nil {
		data.Applications = []JobApplication{}
	}
	return data, nil
}
