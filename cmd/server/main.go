// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"hrquery-go/internal/config"
	"hrquery-go/internal/handler"
	"hrquery-go/internal/middleware"
	"hrquery-go/internal/pipeline"
	"hrquery-go/internal/repository"
	"hrquery-go/internal/service"
	"hrquery-go/pkg/cache"
	"hrquery-go/pkg/database"
	"hrquery-go/pkg/embedding"
	"hrquery-go/pkg/kafka"
	"hrquery-go/pkg/log"
	"hrquery-go/pkg/storage"
	"hrquery-go/pkg/tika"
	"hrquery-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施客户端
	// 业务数据库不在这里连接：数据源通过 connect 接口在运行时接入
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	jobRepo := repository.NewJobRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)

	schemaService := service.NewSchemaService(repository.OpenMySQLStore)
	extractor := service.NewExtractor(tikaClient)
	chunker := service.NewChunker(cfg.Engine.ChunkSize, cfg.Engine.ChunkOverlap)
	docService := service.NewDocumentService(extractor, chunker, embeddingClient, cfg.Engine.SearchTopK)

	resultCache := cache.New(cfg.Engine.CacheMaxSize, time.Duration(cfg.Engine.CacheTTLSeconds)*time.Second)
	queryService := service.NewQueryService(schemaService, docService, resultCache,
		time.Duration(cfg.Engine.CacheTTLSeconds)*time.Second, cfg.Engine.SearchTopK)

	// 6. 初始化文档处理管道 (Processor)
	processor := pipeline.NewDocumentProcessor(docService, jobRepo, cfg.MinIO.BucketName)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	authHandler := handler.NewAuthHandler(cfg.Auth.Accounts, jwtManager)
	schemaHandler := handler.NewSchemaHandler(schemaService)
	queryHandler := handler.NewQueryHandler(queryService)
	documentHandler := handler.NewDocumentHandler(jobRepo, docService, cfg.MinIO.BucketName)
	systemHandler := handler.NewSystemHandler(schemaService, docService, queryService, jobRepo)

	r.GET("/health", systemHandler.Health)

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组 (公开访问)
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		// 其余接口需要认证
		authed := apiV1.Group("/")
		authed.Use(middleware.AuthMiddleware(jwtManager))
		{
			// 数据源与 schema 路由组
			authed.POST("/connect", schemaHandler.Connect)
			authed.GET("/schema", schemaHandler.GetSchema)
			authed.GET("/schema/tables", schemaHandler.ListTables)
			authed.GET("/schema/relationships", schemaHandler.ListRelationships)
			authed.GET("/tables/:name", schemaHandler.GetTable)
			authed.GET("/tables/:name/sample", schemaHandler.SampleData)

			// 文档路由组
			documents := authed.Group("/documents")
			{
				documents.POST("/upload", documentHandler.Upload)
				documents.GET("/status/:job_id", documentHandler.Status)
				documents.GET("", documentHandler.List)
				documents.GET("/stats", documentHandler.Stats)
			}

			// 查询路由组
			authed.POST("/query", queryHandler.Query)
			authed.GET("/query/history", queryHandler.History)
			authed.GET("/query/suggestions", queryHandler.Suggestions)

			// 运维路由
			authed.GET("/metrics", systemHandler.Metrics)
			authed.DELETE("/cache", systemHandler.ClearCache)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 断开运行时接入的数据源
	if store := schemaService.Store(); store != nil {
		_ = store.Close()
	}
	log.Info("服务已退出")
}
