package api

import (
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"log/slog"

	"jobvault/internal/api/middleware"
	"jobvault/internal/backup"
	"jobvault/internal/config"
	"jobvault/internal/extract"
	"jobvault/internal/kv"
	"jobvault/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。数据路由按
// /partitions/:partition 分区隔离，备份与抓取是全局能力。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	sets *Sets,
	engine *backup.Engine,
	backing kv.Store,
	asynqClient *asynq.Client,
	redisClient *redis.Client,
	storageClient *storage.Client,
	extractor *extract.Extractor,
	logger *slog.Logger,
) {
	applicationHandler := NewApplicationHandler(sets)
	cvHandler := NewCVHandler(sets)
	sectionHandler := NewSectionHandler(sets)
	compositionHandler := NewCompositionHandler(sets)
	backupHandler := NewBackupHandler(engine, backing, storageClient, asynqClient, redisClient, cfg.Clamd.Addr, logger)
	extractHandler := NewExtractHandler(extractor)
	wsHandler := NewWsHandler(redisClient, logger, cfg.API.AllowedOrigins)

	accessToken := middleware.AccessTokenMiddleware(cfg.API.AccessToken)
	internalSecret := middleware.InternalSecretMiddleware(cfg.API.InternalSecret)

	v1 := router.Group("/v1")
	v1.Use(middleware.CorrelationIDMiddleware(), middleware.SlogLoggerMiddleware(logger))
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		partitionGroup := v1.Group("/partitions/:partition")
		partitionGroup.Use(accessToken)
		{
			appGroup := partitionGroup.Group("/applications")
			{
				appGroup.GET("", applicationHandler.ListApplications)
				appGroup.POST("", applicationHandler.CreateApplication)
				appGroup.GET("/:id", applicationHandler.GetApplication)
				appGroup.PUT("/:id", applicationHandler.SaveApplication)
				appGroup.DELETE("/:id", applicationHandler.DeleteApplication)
				appGroup.PATCH("/:id/status", applicationHandler.UpdateStatus)
				appGroup.POST("/:id/documents", applicationHandler.LinkDocument)
				appGroup.DELETE("/:id/documents/:type", applicationHandler.UnlinkDocument)
				appGroup.GET("/:id/versions", cvHandler.VersionsForApplication)
			}

			partitionGroup.GET("/config", applicationHandler.GetConfig)
			partitionGroup.PUT("/config", applicationHandler.SaveConfig)

			versionGroup := partitionGroup.Group("/cv-versions")
			{
				versionGroup.GET("", cvHandler.ListVersions)
				versionGroup.POST("", cvHandler.CreateVersion)
				versionGroup.GET("/:id", cvHandler.GetVersion)
				versionGroup.PATCH("/:id", cvHandler.UpdateVersion)
				versionGroup.DELETE("/:id", cvHandler.DeleteVersion)
			}

			sectionGroup := partitionGroup.Group("/sections")
			{
				sectionGroup.GET("", sectionHandler.ListSections)
				sectionGroup.POST("", sectionHandler.CreateSection)
				sectionGroup.GET("/:id", sectionHandler.GetSection)
				sectionGroup.PUT("/:id", sectionHandler.SaveSection)
				sectionGroup.DELETE("/:id", sectionHandler.DeleteSection)
				sectionGroup.POST("/:id/clone", sectionHandler.CloneTemplate)
			}

			compositionGroup := partitionGroup.Group("/compositions")
			{
				compositionGroup.GET("", compositionHandler.ListCompositions)
				compositionGroup.POST("", compositionHandler.CreateComposition)
				compositionGroup.GET("/:id", compositionHandler.GetComposition)
				compositionGroup.PUT("/:id", compositionHandler.SaveComposition)
				compositionGroup.DELETE("/:id", compositionHandler.DeleteComposition)
				compositionGroup.GET("/:id/latex", compositionHandler.GenerateLatex)
			}
		}

		backupGroup := v1.Group("/backups")
		backupGroup.Use(accessToken)
		{
			backupGroup.GET("", backupHandler.ListBackups)
			backupGroup.POST("", backupHandler.CreateBackup)
			backupGroup.POST("/smart", backupHandler.CreateSmartBackup)
			backupGroup.POST("/import", backupHandler.ImportBackup)
			backupGroup.GET("/:id", backupHandler.GetBackup)
			backupGroup.DELETE("/:id", backupHandler.DeleteBackup)
			backupGroup.POST("/:id/restore", backupHandler.RestoreBackup)
			backupGroup.POST("/:id/export", backupHandler.ExportBackup)
			backupGroup.GET("/:id/exports", backupHandler.ListExports)
		}

		// 触发接口仅限内部调用方（定时器、扩展后台）。
		v1.POST("/internal/backups/trigger", internalSecret, backupHandler.TriggerBackup)

		v1.GET("/storage/usage", accessToken, backupHandler.StorageUsage)
		v1.POST("/extract", accessToken, extractHandler.ExtractPage)
	}
}
