package backup

import (
	"errors"
	"strings"

	"jobvault/internal/store"
)

// 存储键与格式常量。备份列表存放在全局未分区键下。
const (
	StorageKey = "job-assistant-backups"

	// FormatDual 是当前的双分区格式。
	FormatDual = "2.0"
	// FormatLegacy 标记分区化之前的单分区格式。
	FormatLegacy = "1.0"
	// FormatLegacyImport 标记由旧格式文件导入后归一化的备份。
	FormatLegacyImport = "1.0-legacy"
)

// ErrBackupNotFound 表示按 id 查找的备份不存在。
var ErrBackupNotFound = errors.New("backup not found")

// ErrInvalidFormat 表示导入的载荷不符合任何已知备份结构，拒绝时
// 尚未发生任何写入。
var ErrInvalidFormat = errors.New("invalid backup format")

// PartitionSnapshot 是单个分区三个集合的完整快照。
type PartitionSnapshot struct {
	Applications []store.JobApplication `json:"applications"`
	CVVersions   []store.CVVersion      `json:"cvVersions"`
	Sections     []store.ResumeSection  `json:"sections"`
}

// Metadata 描述一次备份。Version 是格式判别字段："2.x" 为双分区格式，
// 其余为旧的单分区格式。
type Metadata struct {
	ExportDate   string `json:"exportDate"`
	Version      string `json:"version"`
	Description  string `json:"description"`
	IsAutoBackup bool   `json:"isAutoBackup,omitempty"`
}

// Data 是一条不可变的备份记录。双分区格式填充 ZH/EN，旧格式把三个
// 集合平铺在顶层；两种形态不会同时出现。
type Data struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`

	ZH *PartitionSnapshot `json:"zh,omitempty"`
	EN *PartitionSnapshot `json:"en,omitempty"`

	// 旧格式的平铺字段，仅用于读取历史数据。
	Applications []store.JobApplication `json:"applications,omitempty"`
	CVVersions   []store.CVVersion      `json:"cvVersions,omitempty"`
	Sections     []store.ResumeSection  `json:"sections,omitempty"`
}

// IsDualPartition 报告备份是否为双分区格式。以 metadata.version 为准，
// 结构嗅探（zh/en 同时存在）只作为历史数据的兜底。
func (d *Data) IsDualPartition() bool {
	if strings.HasPrefix(d.Metadata.Version, "2.") {
		return true
	}
	return d.ZH != nil && d.EN != nil
}

// Snapshot 返回指定分区的数据包，旧格式备份返回 nil。
func (d *Data) Snapshot(partition string) *PartitionSnapshot {
	switch partition {
	case "zh":
		return d.ZH
	case "en":
		return d.EN
	default:
		return nil
	}
}

func emptySnapshot() *PartitionSnapshot {
	return &PartitionSnapshot{
		Applications: []store.JobApplication{},
		CVVersions:   []store.CVVersion{},
		Sections:     []store.ResumeSection{},
	}
}
