package store

import "errors"

// ErrNotFound 表示按 id 查找的实体不在集合中。调用方用 errors.Is 判断
// 后转换为面向用户的提示。
var ErrNotFound = errors.New("not found")
