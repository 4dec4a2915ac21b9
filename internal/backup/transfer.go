package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobvault/internal/store"
)

// ExportedFile 是一份可移植的备份导出文件。
type ExportedFile struct {
	Name string
	Data []byte
}

// exportPayload 是单分区导出文件的结构：元信息加三个平铺集合。
// 这与旧格式的导入载荷同构，导出文件可以直接再导入。
type exportPayload struct {
	Metadata     Metadata               `json:"metadata"`
	Applications []store.JobApplication `json:"applications"`
	CVVersions   []store.CVVersion      `json:"cvVersions"`
	Sections     []store.ResumeSection  `json:"sections"`
}

// ExportBackupFiles 把备份序列化为可移植的 JSON 文件。双分区备份产出
// 两个文件（每个分区的使用方通常只需要自己的数据集），旧格式备份产出
// 一个文件。文件名带日期戳和分区标签。
func (e *Engine) ExportBackupFiles(ctx context.Context, backupID string) ([]ExportedFile, error) {
	backup, err := e.GetBackup(ctx, backupID)
	if err != nil {
		return nil, err
	}

	stamp := time.Now().UTC().Format("2006-01-02")

	if !backup.IsDualPartition() {
		raw, err := json.MarshalIndent(backup, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode legacy backup: %w", err)
		}
		return []ExportedFile{{
			Name: fmt.Sprintf("job-assistant-backup-%s.json", stamp),
			Data: raw,
		}}, nil
	}

	files := make([]ExportedFile, 0, 2)
	for _, partition := range []string{"zh", "en"} {
		snapshot := backup.Snapshot(partition)
		if snapshot == nil {
			snapshot = emptySnapshot()
		}
		payload := exportPayload{
			Metadata: Metadata{
				ExportDate:   backup.Metadata.ExportDate,
				Version:      FormatLegacy,
				Description:  fmt.Sprintf("%s (%s partition)", backup.Metadata.Description, partition),
				IsAutoBackup: backup.Metadata.IsAutoBackup,
			},
			Applications: snapshot.Applications,
			CVVersions:   snapshot.CVVersions,
			Sections:     snapshot.Sections,
		}
		raw, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s export: %w", partition, err)
		}
		files = append(files, ExportedFile{
			Name: fmt.Sprintf("job-assistant-backup-%s-%s.json", stamp, partition),
			Data: raw,
		})
	}
	return files, nil
}

// ImportBackup 解析外部文件载荷并作为新备份入库。接受双分区载荷
// （zh/en 各含全部三个集合）或旧的平铺载荷；旧载荷归一化为
// {zh: 载荷, en: 空} 并打上 1.0-legacy 标记，入库后所有备份形态统一。
// 两种结构都不匹配时报 ErrInvalidFormat，且不发生任何写入。
func (e *Engine) ImportBackup(ctx context.Context, raw []byte) (*Data, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("parse import payload: %w", ErrInvalidFormat)
	}

	var meta Metadata
	if rawMeta, ok := top["metadata"]; ok {
		// 元信息损坏不致命，导入时会重写。
		_ = json.Unmarshal(rawMeta, &meta)
	}

	backup := Data{
		ID: fmt.Sprintf("backup-%s", uuid.NewString()),
		Metadata: Metadata{
			ExportDate:   time.Now().UTC().Format(time.RFC3339),
			Description:  importDescription(meta.Description),
			IsAutoBackup: false,
		},
	}

	switch {
	case isDualPayload(top):
		var payload Data
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode dual payload: %w", ErrInvalidFormat)
		}
		backup.Metadata.Version = FormatDual
		backup.ZH = payload.ZH
		backup.EN = payload.EN

	case isLegacyPayload(top):
		var payload exportPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode legacy payload: %w", ErrInvalidFormat)
		}
		backup.Metadata.Version = FormatLegacyImport
		backup.ZH = &PartitionSnapshot{
			Applications: orEmptyApplications(payload.Applications),
			CVVersions:   orEmptyVersions(payload.CVVersions),
			Sections:     orEmptySections(payload.Sections),
		}
		backup.EN = emptySnapshot()

	default:
		return nil, fmt.Errorf("payload matches no known backup shape: %w", ErrInvalidFormat)
	}

	if err := e.appendBackup(ctx, backup); err != nil {
		return nil, fmt.Errorf("store imported backup: %w", err)
	}
	return &backup, nil
}

// isDualPayload 校验 zh/en 两个子包都存在且各含三个集合键。
func isDualPayload(top map[string]json.RawMessage) bool {
	for _, partition := range []string{"zh", "en"} {
		rawPart, ok := top[partition]
		if !ok {
			return false
		}
		var bag map[string]json.RawMessage
		if err := json.Unmarshal(rawPart, &bag); err != nil {
			return false
		}
		if !hasCollections(bag) {
			return false
		}
	}
	return true
}

// isLegacyPayload 校验顶层平铺着三个集合键。
func isLegacyPayload(top map[string]json.RawMessage) bool {
	return hasCollections(top)
}

func hasCollections(bag map[string]json.RawMessage) bool {
	for _, key := range []string{"applications", "cvVersions", "sections"} {
		if _, ok := bag[key]; !ok {
			return false
		}
	}
	return true
}

func importDescription(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		original = "backup file"
	}
	return fmt.Sprintf("Imported: %s", original)
}

func orEmptyApplications(apps []store.JobApplication) []store.JobApplication {
	if apps == nil {
		return []store.JobApplication{}
	}
	return apps
}

func orEmptyVersions(versions []store.CVVersion) []store.CVVersion {
	if versions == nil {
		return []store.CVVersion{}
	}
	return versions
}

func orEmptySections(sections []store.ResumeSection) []store.ResumeSection {
	if sections == nil {
		return []store.ResumeSection{}
	}
	return sections
}
