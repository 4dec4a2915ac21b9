package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashContent 计算文档文本的 SHA-256 十六进制摘要，用于内容身份与去重，
// 不承担任何安全职责。
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EntityDigest 计算实体的稳定摘要：先做一次 canonical JSON（经 map 往返
// 使键有序），再截取 SHA-256 的前 16 个十六进制字符。同一实体在不同
// 运行间得到相同摘要，备份变更检测依赖这一点。
func EntityDigest(entity any) (string, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("marshal entity: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("normalize entity: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("canonicalize entity: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}
