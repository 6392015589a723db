// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/handler"
	"pai-policy-qa/internal/pipeline"
	"pai-policy-qa/internal/repository"
	"pai-policy-qa/internal/service"
	"pai-policy-qa/internal/vectorstore"
	"pai-policy-qa/pkg/database"
	"pai-policy-qa/pkg/embedding"
	"pai-policy-qa/pkg/kafka"
	"pai-policy-qa/pkg/llm"
	"pai-policy-qa/pkg/log"
	"pai-policy-qa/pkg/storage"
	"pai-policy-qa/pkg/tika"
)

func main() {
	// 1. 初始化配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	ctx := context.Background()

	// 3. 初始化向量化客户端，配置了 Redis 时加一层缓存
	embedder, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		log.Fatal("初始化向量化客户端失败", err)
	}
	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	if rdb != nil {
		defer rdb.Close()
		embedder = embedding.NewCachedClient(embedder, rdb, cfg.Redis.KeyPrefix, time.Duration(cfg.Redis.TTLHours)*time.Hour)
	}

	// 4. 初始化向量库与登记表
	store, err := vectorstore.New(ctx, cfg, embedder)
	if err != nil {
		log.Fatal("初始化向量库失败", err)
	}
	defer store.Close()

	repo, err := repository.NewDocumentRepository(cfg.Registry)
	if err != nil {
		log.Fatal("初始化文档登记表失败", err)
	}

	// 5. 可选的归档与事件发布
	archive, err := storage.NewArchive(ctx, cfg.MinIO)
	if err != nil {
		log.Fatal("MinIO 初始化失败", err)
	}
	publisher := kafka.NewPublisher(cfg.Kafka)
	defer publisher.Close()

	// 6. 初始化文件处理管道 (Processor)
	chunker, err := pipeline.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		log.Fatal("分块参数不合法", err)
	}
	extractor := pipeline.NewExtractor(tika.NewClient(cfg.Tika))
	processor := pipeline.NewProcessor(extractor, chunker, pipeline.NewQAParser(), store, repo, archive, publisher)

	// 7. 初始化 Service (依赖注入)
	documentService := service.NewDocumentService(processor, repo)
	queryService := service.NewQueryService(store, llm.NewClient(cfg.LLM), cfg.RAG)

	// 7.1 导入 seed 目录中尚未登记的文件
	seedCtx, cancelSeed := context.WithCancel(ctx)
	defer cancelSeed()
	go seedDocuments(seedCtx, cfg.Server.SeedDir, documentService)

	// 8. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(documentService, queryService, cfg.Server.MaxUploadMB)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")
	cancelSeed()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownGrace)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP 服务器关闭失败", err)
	}
	log.Info("服务已优雅关闭")
}

// seedDocuments 扫描目录并通过标准上传流程导入文件。同名文件已登记时跳过。
func seedDocuments(ctx context.Context, dir string, docService service.DocumentService) {
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("seedDocuments: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	records, err := docService.ListDocuments(ctx)
	if err != nil {
		log.Warnf("seedDocuments: 读取登记表失败: %v", err)
		return
	}
	registered := make(map[string]bool, len(records))
	for _, r := range records {
		registered[r.Filename] = true
	}

	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if registered[name] {
			log.Infof("seedDocuments: 已存在，跳过: %s", name)
			return nil
		}
		if pipeline.CheckExtension(name) != nil {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("seedDocuments: 读取文件失败: %s, err=%v", path, err)
			return nil
		}
		res, err := docService.Upload(ctx, data, name)
		if err != nil {
			log.Warnf("seedDocuments: 导入失败: %s, err=%v", path, err)
			return nil
		}
		log.Infof("seedDocuments: 导入完成: %s, type=%s, count=%d", name, res.Type, res.Count)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		log.Warnf("seedDocuments: 遍历目录发生错误: %v", walkErr)
	}
}
