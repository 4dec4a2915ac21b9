package store

import (
	"context"
	"fmt"
)

// Linker 维护求职记录与文档版本之间的双向弱引用：记录侧的
// resumeVersionId/coverLetterVersionId 与版本侧的 linkedApplications。
// 一致性靠所有调用方都走这里的两侧写入约定，没有数据库级约束；
// 版本被删除后记录侧引用悬空是接受的状态。
type Linker struct {
	applications *ApplicationStore
	versions     *CVStore
}

// NewLinker 构造 Linker，两个 store 必须属于同一分区。
func NewLinker(applications *ApplicationStore, versions *CVStore) *Linker {
	return &Linker{applications: applications, versions: versions}
}

// LinkDocument 把版本挂到记录的简历或求职信槽位上：先解除旧版本的
// 反向链接，再写入新版本的反向链接和记录侧外键。记录或版本不存在时
// 报 ErrNotFound，且在版本校验失败时不修改记录。
func (l *Linker) LinkDocument(ctx context.Context, applicationID, versionID string, docType DocumentType) error {
	app := l.applications.GetByID(ctx, applicationID)
	if app == nil {
		return fmt.Errorf("application %s: %w", applicationID, ErrNotFound)
	}

	previous := l.slot(app, docType)
	if previous == versionID {
		// 幂等：重复链接同一版本只需补齐反向链接。
		return l.versions.LinkToApplication(ctx, versionID, applicationID)
	}

	if err := l.versions.LinkToApplication(ctx, versionID, applicationID); err != nil {
		return fmt.Errorf("link %s: %w", docType, err)
	}
	if previous != "" {
		if err := l.versions.UnlinkFromApplication(ctx, previous, applicationID); err != nil {
			return fmt.Errorf("unlink previous %s: %w", docType, err)
		}
	}

	l.setSlot(app, docType, versionID)
	if err := l.applications.Save(ctx, *app); err != nil {
		return fmt.Errorf("save application link: %w", err)
	}
	return nil
}

// UnlinkDocument 清空记录的对应槽位并解除版本侧的反向链接。
// 槽位本来为空时直接返回。
func (l *Linker) UnlinkDocument(ctx context.Context, applicationID string, docType DocumentType) error {
	app := l.applications.GetByID(ctx, applicationID)
	if app == nil {
		return fmt.Errorf("application %s: %w", applicationID, ErrNotFound)
	}

	previous := l.slot(app, docType)
	if previous == "" {
		return nil
	}

	if err := l.versions.UnlinkFromApplication(ctx, previous, applicationID); err != nil {
		return fmt.Errorf("unlink %s: %w", docType, err)
	}

	l.setSlot(app, docType, "")
	if err := l.applications.Save(ctx, *app); err != nil {
		return fmt.Errorf("save application unlink: %w", err)
	}
	return nil
}

// ApplicationsForDocument 返回把指定版本挂在对应槽位上的全部求职记录。
func (l *Linker) ApplicationsForDocument(ctx context.Context, versionID string, docType DocumentType) []JobApplication {
	linked := []JobApplication{}
	for _, app := range l.applications.GetAll(ctx) {
		if l.slot(&app, docType) == versionID {
			linked = append(linked, app)
		}
	}
	return linked
}

func (l *Linker) slot(app *JobApplication, docType DocumentType) string {
	if docType == DocumentCoverLetter {
		return app.CoverLetterVersionID
	}
	return app.ResumeVersionID
}

func (l *Linker) setSlot(app *JobApplication, docType DocumentType, versionID string) {
	if docType == DocumentCoverLetter {
		app.CoverLetterVersionID = versionID
		return
	}
	app.ResumeVersionID = versionID
}
