package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"log/slog"

	"jobvault/internal/api/middleware"
	"jobvault/internal/backup"
	"jobvault/internal/kv"
	"jobvault/internal/metrics"
	"jobvault/internal/storage"
	"jobvault/internal/tasks"
)

const (
	// maxImportBytes 限制导入文件大小，略高于备份序列化上限。
	maxImportBytes = 8 << 20

	// 触发接口的限流窗口与次数。
	triggerRateKey    = "jobvault:ratelimit:backup_trigger"
	triggerRateWindow = time.Minute
	triggerRateLimit  = 6

	exportURLTTL = 15 * time.Minute
)

// BackupHandler 处理备份的创建、导入导出、恢复与删除。
type BackupHandler struct {
	engine      *backup.Engine
	backing     kv.Store
	storage     *storage.Client
	asynqClient *asynq.Client
	redisClient *redis.Client
	clamdAddr   string
	logger      *slog.Logger
}

// NewBackupHandler 构造 BackupHandler。storage 与 asynqClient 允许为
// nil，对应能力（导出、异步触发）会返回 503。
func NewBackupHandler(
	engine *backup.Engine,
	backing kv.Store,
	storageClient *storage.Client,
	asynqClient *asynq.Client,
	redisClient *redis.Client,
	clamdAddr string,
	logger *slog.Logger,
) *BackupHandler {
	return &BackupHandler{
		engine:      engine,
		backing:     backing,
		storage:     storageClient,
		asynqClient: asynqClient,
		redisClient: redisClient,
		clamdAddr:   clamdAddr,
		logger:      logger,
	}
}

type createBackupRequest struct {
	Description  string `json:"description"`
	IsAutoBackup bool   `json:"isAutoBackup"`
	Force        bool   `json:"force"`
}

// CreateBackup 同步创建一次全量备份。
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	var req createBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = createBackupRequest{}
	}

	id, err := h.engine.CreateFullPartitionBackup(c.Request.Context(), req.Description, req.IsAutoBackup)
	if err != nil {
		middleware.LoggerFromContext(c).Error("create backup failed", slog.Any("error", err))
		Internal(c, "failed to create backup")
		return
	}

	metrics.BackupCreated("api")
	h.updateStorageGauge(c)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// CreateSmartBackup 仅在数据有变化时创建备份，无变化时返回 200 与
// skipped=true。
func (h *BackupHandler) CreateSmartBackup(c *gin.Context) {
	var req createBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = createBackupRequest{}
	}

	id, skipped, err := h.engine.CreateSmartBackup(c.Request.Context(), req.Description, req.IsAutoBackup, req.Force)
	if err != nil {
		middleware.LoggerFromContext(c).Error("create smart backup failed", slog.Any("error", err))
		Internal(c, "failed to create backup")
		return
	}
	if skipped {
		metrics.BackupSkipped()
		c.JSON(http.StatusOK, gin.H{"skipped": true})
		return
	}

	metrics.BackupCreated("api")
	h.updateStorageGauge(c)
	c.JSON(http.StatusCreated, gin.H{"id": id, "skipped": false})
}

// TriggerBackup 把备份请求投递到任务队列，由 worker 异步执行。
// 结果通过 WebSocket 通知推送。
func (h *BackupHandler) TriggerBackup(c *gin.Context) {
	if h.asynqClient == nil {
		Error(c, http.StatusServiceUnavailable, "task queue is not configured")
		return
	}

	count, err := incrWithTTL(c.Request.Context(), h.redisClient, triggerRateKey, triggerRateWindow)
	if err != nil {
		middleware.LoggerFromContext(c).Warn("rate counter failed", slog.Any("error", err))
	} else if count > triggerRateLimit {
		TooManyRequests(c, "too many backup triggers, slow down")
		return
	}

	var req createBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = createBackupRequest{}
	}

	task, err := tasks.NewBackupCreateTask(req.Description, req.IsAutoBackup, req.Force, middleware.GetCorrelationID(c))
	if err != nil {
		middleware.LoggerFromContext(c).Error("build backup task failed", slog.Any("error", err))
		Internal(c, "failed to build backup task")
		return
	}

	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(1))
	if err != nil {
		middleware.LoggerFromContext(c).Error("enqueue backup task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue backup task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"taskId": info.ID})
}

// ListBackups 按新到旧返回全部备份记录。
func (h *BackupHandler) ListBackups(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.GetAllBackups(c.Request.Context()))
}

// GetBackup 按 id 返回备份记录。
func (h *BackupHandler) GetBackup(c *gin.Context) {
	data, err := h.engine.GetBackup(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			NotFound(c, "backup not found")
			return
		}
		middleware.LoggerFromContext(c).Error("get backup failed", slog.Any("error", err))
		Internal(c, "failed to get backup")
		return
	}
	c.JSON(http.StatusOK, data)
}

// DeleteBackup 删除备份记录，并尽力清理对象存储中的导出文件。
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.DeleteBackup(c.Request.Context(), id); err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			NotFound(c, "backup not found")
			return
		}
		middleware.LoggerFromContext(c).Error("delete backup failed", slog.Any("error", err))
		Internal(c, "failed to delete backup")
		return
	}

	if h.storage != nil {
		if err := h.storage.DeleteExports(c.Request.Context(), id); err != nil {
			middleware.LoggerFromContext(c).Warn("delete backup exports failed",
				slog.String("backup_id", id), slog.Any("error", err))
		}
	}

	h.updateStorageGauge(c)
	c.Status(http.StatusNoContent)
}

type restoreRequest struct {
	Partition string `json:"partition" binding:"required"`
}

// RestoreBackup 把备份恢复到指定分区。旧格式备份只在 zh 分区有数据，
// 恢复到 en 分区等同清空。
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	partition, err := kv.ParsePartition(req.Partition)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	err = h.engine.RestoreToPartition(c.Request.Context(), c.Param("id"), partition)
	if err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			NotFound(c, "backup not found")
			return
		}
		middleware.LoggerFromContext(c).Error("restore backup failed", slog.Any("error", err))
		Internal(c, "failed to restore backup")
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportBackup 接收备份文件、扫描病毒后导入为一条新备份记录。
// 旧格式文件会被归一化为 zh 分区数据。
func (h *BackupHandler) ImportBackup(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxImportBytes {
		BadRequest(c, "backup file too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	raw, err := io.ReadAll(io.LimitReader(reader, maxImportBytes+1))
	reader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}
	if len(raw) > maxImportBytes {
		BadRequest(c, "backup file too large")
		return
	}

	if ok := h.scanClean(c, raw); !ok {
		return
	}

	data, err := h.engine.ImportBackup(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, backup.ErrInvalidFormat) {
			Error(c, http.StatusUnprocessableEntity, "unrecognized backup format")
			return
		}
		middleware.LoggerFromContext(c).Error("import backup failed", slog.Any("error", err))
		Internal(c, "failed to import backup")
		return
	}

	metrics.BackupCreated("import")
	h.updateStorageGauge(c)
	c.JSON(http.StatusCreated, gin.H{"id": data.ID, "version": data.Metadata.Version})
}

// scanClean 用 clamd 扫描文件内容，有问题时已写出响应并返回 false。
// 未配置 clamd 地址时跳过扫描。
func (h *BackupHandler) scanClean(c *gin.Context, raw []byte) bool {
	if h.clamdAddr == "" {
		return true
	}

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(bytes.NewReader(raw), abortChan)
	if err != nil {
		middleware.LoggerFromContext(c).Error("scan file failed", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return false
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			BadRequest(c, "malicious file detected")
			return false
		}
	}
	return true
}

// ExportBackup 生成备份的导出文件，上传到对象存储并返回限时下载链接。
// 双分区备份产出两个文件，旧格式产出一个。
func (h *BackupHandler) ExportBackup(c *gin.Context) {
	if h.storage == nil {
		Error(c, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}

	id := c.Param("id")
	files, err := h.engine.ExportBackupFiles(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, backup.ErrBackupNotFound) {
			NotFound(c, "backup not found")
			return
		}
		middleware.LoggerFromContext(c).Error("export backup failed", slog.Any("error", err))
		Internal(c, "failed to export backup")
		return
	}

	type exportedLink struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	links := make([]exportedLink, 0, len(files))
	for _, f := range files {
		objectKey, err := h.storage.UploadExport(c.Request.Context(), id, f.Name, f.Data)
		if err != nil {
			middleware.LoggerFromContext(c).Error("upload export failed",
				slog.String("file", f.Name), slog.Any("error", err))
			Internal(c, "failed to upload export")
			return
		}
		url, err := h.storage.GeneratePresignedURL(c.Request.Context(), objectKey, exportURLTTL)
		if err != nil {
			middleware.LoggerFromContext(c).Error("presign export failed",
				slog.String("key", objectKey), slog.Any("error", err))
			Internal(c, "failed to presign export")
			return
		}
		links = append(links, exportedLink{Name: f.Name, URL: url})
	}

	c.JSON(http.StatusOK, gin.H{"files": links})
}

// ListExports 列出某备份已上传的导出文件。
func (h *BackupHandler) ListExports(c *gin.Context) {
	if h.storage == nil {
		Error(c, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}

	objects, err := h.storage.ListExports(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.LoggerFromContext(c).Error("list exports failed", slog.Any("error", err))
		Internal(c, "failed to list exports")
		return
	}

	type exportMeta struct {
		Key          string `json:"key"`
		Size         int64  `json:"size"`
		LastModified string `json:"lastModified"`
	}
	result := make([]exportMeta, 0, len(objects))
	for _, obj := range objects {
		result = append(result, exportMeta{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, result)
}

// StorageUsage 返回后端键值存储当前占用的字节数。
func (h *BackupHandler) StorageUsage(c *gin.Context) {
	bytesInUse, err := h.backing.BytesInUse(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Error("storage usage failed", slog.Any("error", err))
		Internal(c, "failed to read storage usage")
		return
	}
	metrics.SetStorageBytesInUse(bytesInUse)
	c.JSON(http.StatusOK, gin.H{"bytesInUse": bytesInUse})
}

func (h *BackupHandler) updateStorageGauge(c *gin.Context) {
	bytesInUse, err := h.backing.BytesInUse(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Warn("storage gauge update failed", slog.Any("error", err))
		return
	}
	metrics.SetStorageBytesInUse(bytesInUse)
}
