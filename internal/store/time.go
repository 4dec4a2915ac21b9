package store

import "time"

// nowISO 返回 ISO-8601（RFC 3339）格式的当前 UTC 时间，
// 与导出文件中的时间戳格式保持一致。
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
