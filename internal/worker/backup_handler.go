package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"jobvault/internal/backup"
	"jobvault/internal/errcode"
	"jobvault/internal/kv"
	"jobvault/internal/metrics"
	"jobvault/internal/tasks"
)

// BackupTaskHandler 负责消费备份创建任务。
type BackupTaskHandler struct {
	engine      *backup.Engine
	backing     kv.Store
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBackupTaskHandler 创建任务处理器。
func NewBackupTaskHandler(engine *backup.Engine, backing kv.Store, redisClient *redis.Client, logger *slog.Logger) *BackupTaskHandler {
	return &BackupTaskHandler{
		engine:      engine,
		backing:     backing,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *BackupTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.BackupCreatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Bool("is_auto_backup", payload.IsAutoBackup),
	)
	log.Info("starting backup task")

	defer func() {
		if retErr == nil {
			return
		}
		metrics.BackupFailed()
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := BackupNotifyMessage{
			Status:        "error",
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishNotify(ctx, notify); err != nil {
			log.Error("publish backup error notification failed", slog.Any("error", err))
		}
	}()

	backupID, skipped, err := h.engine.CreateSmartBackup(ctx, payload.Description, payload.IsAutoBackup, payload.Force)
	if err != nil {
		log.Error("create backup failed", slog.Any("error", err))
		return err
	}

	notify := BackupNotifyMessage{
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if skipped {
		// 无变化不是错误，通知前端"无事发生"即可。
		metrics.BackupSkipped()
		notify.Status = "skipped"
		log.Info("backup skipped, no changes detected")
	} else {
		trigger := "manual"
		if payload.IsAutoBackup {
			trigger = "auto"
		}
		metrics.BackupCreated(trigger)
		notify.Status = "success"
		notify.BackupID = backupID
		log.Info("backup task completed", slog.String("backup_id", backupID))
	}

	if err := h.publishNotify(ctx, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	h.updateStorageGauge(ctx)
	return nil
}

func (h *BackupTaskHandler) publishNotify(ctx context.Context, notify BackupNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	if err := h.redisClient.Publish(ctx, NotifyChannel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", NotifyChannel, err)
	}
	return nil
}

func (h *BackupTaskHandler) updateStorageGauge(ctx context.Context) {
	used, err := h.backing.BytesInUse(ctx)
	if err != nil {
		h.logger.Warn("query storage usage failed", slog.Any("error", err))
		return
	}
	metrics.SetStorageBytesInUse(used)
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return true
	}
	return retryCount >= maxRetry
}
