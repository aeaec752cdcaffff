package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"carbon-monitor/internal/cache"
	"carbon-monitor/internal/config"
	"carbon-monitor/internal/logger"
	"carbon-monitor/internal/rediscommon"
	"carbon-monitor/internal/report"
	"carbon-monitor/internal/repository"
)

// 运维工具：导出全部公司的合规报表（Excel）
func main() {
	output := flag.String("o", "compliance_report.xlsx", "output file path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, "console", "export-compliance-report")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	// 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()

	ctx := context.Background()
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		log.Fatal("Failed to ping redis", zap.Error(err))
	}

	companyRepo := repository.NewCompanyRepository(db, log)
	projectionSink := cache.NewProjectionSink(cfg, redisClient, log)

	exporter := report.NewExporter(companyRepo, projectionSink, log)
	data, err := exporter.Generate(ctx)
	if err != nil {
		log.Fatal("Failed to generate report", zap.Error(err))
	}

	if err := os.WriteFile(*output, data, 0644); err != nil {
		log.Fatal("Failed to write report file", zap.Error(err))
	}

	log.Info("Compliance report exported",
		zap.String("path", *output),
		zap.Int("bytes", len(data)),
	)
}
