package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"jobvault/internal/backup"
	"jobvault/internal/config"
	"jobvault/internal/database"
	"jobvault/internal/kv"
	"jobvault/internal/store"
)

// admin 是运维小工具：种子模板、手工备份、列出与导出备份记录。
// 数据库连接参数全部来自环境变量（与 api/worker 一致）。
func main() {
	var (
		seedTemplates = flag.Bool("seed-templates", false, "写入两个分区的默认片段模板（幂等）")
		createBackup  = flag.Bool("create-backup", false, "立即创建一次全量备份")
		description   = flag.String("description", "", "备份描述（配合 --create-backup）")
		listBackups   = flag.Bool("list-backups", false, "按新到旧列出全部备份")
		exportID      = flag.String("export", "", "把指定 id 的备份导出为 JSON 文件")
		outDir        = flag.String("out-dir", ".", "导出文件的目标目录（配合 --export）")
	)
	flag.Parse()

	if !*seedTemplates && !*createBackup && !*listBackups && strings.TrimSpace(*exportID) == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	ctx := context.Background()
	backing := kv.NewGormStore(db)
	zh := store.NewSet(ctx, backing, kv.PartitionZH, logger)
	en := store.NewSet(ctx, backing, kv.PartitionEN, logger)
	engine := backup.NewEngine(backing, zh, en, logger)

	if *seedTemplates {
		for _, set := range []*store.Set{zh, en} {
			if err := set.Sections.InitializeDefaultTemplates(ctx); err != nil {
				log.Fatalf("seed section templates: %v", err)
			}
		}
		fmt.Println("默认模板已写入 zh/en 两个分区")
	}

	if *createBackup {
		id, err := engine.CreateFullPartitionBackup(ctx, *description, false)
		if err != nil {
			log.Fatalf("create backup: %v", err)
		}
		fmt.Printf("已创建备份: %s\n", id)
	}

	if *listBackups {
		for _, b := range engine.GetAllBackups(ctx) {
			fmt.Printf("%s\t%s\tv%s\t%s\n", b.ID, b.Metadata.ExportDate, b.Metadata.Version, b.Metadata.Description)
		}
	}

	if id := strings.TrimSpace(*exportID); id != "" {
		files, err := engine.ExportBackupFiles(ctx, id)
		if err != nil {
			log.Fatalf("export backup: %v", err)
		}
		for _, f := range files {
			path := filepath.Join(*outDir, f.Name)
			if err := os.WriteFile(path, f.Data, 0o644); err != nil {
				log.Fatalf("write export file: %v", err)
			}
			fmt.Printf("已写出 %s (%d bytes)\n", path, len(f.Data))
		}
	}
}
