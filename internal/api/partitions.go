package api

import (
	"github.com/gin-gonic/gin"

	"jobvault/internal/kv"
	"jobvault/internal/store"
)

// Sets 持有两个分区各自的集合。分区永远来自请求路径参数，
// 服务端没有"当前分区"这种进程级状态。
type Sets struct {
	ZH *store.Set
	EN *store.Set
}

// For 返回指定分区的集合，未知分区返回 nil。
func (s *Sets) For(partition kv.Partition) *store.Set {
	switch partition {
	case kv.PartitionZH:
		return s.ZH
	case kv.PartitionEN:
		return s.EN
	default:
		return nil
	}
}

// setFromPath 解析路径中的 :partition 参数并返回对应集合。
// 参数非法时已写出 400 响应，调用方直接 return 即可。
func (s *Sets) setFromPath(c *gin.Context) (*store.Set, bool) {
	partition, err := kv.ParsePartition(c.Param("partition"))
	if err != nil {
		BadRequest(c, err.Error())
		return nil, false
	}
	return s.For(partition), true
}
