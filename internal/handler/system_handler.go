package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hrquery-go/internal/repository"
	"hrquery-go/internal/service"
)

// SystemHandler 负责健康检查、运行指标与缓存管理的 API 请求。
type SystemHandler struct {
	schemaService service.SchemaService
	docService    service.DocumentService
	queryService  service.QueryService
	jobRepo       repository.JobRepository
}

// NewSystemHandler 创建一个新的 SystemHandler 实例。
func NewSystemHandler(schemaService service.SchemaService, docService service.DocumentService,
	queryService service.QueryService, jobRepo repository.JobRepository) *SystemHandler {
	return &SystemHandler{
		schemaService: schemaService,
		docService:    docService,
		queryService:  queryService,
		jobRepo:       jobRepo,
	}
}

// Health 是不需要认证的存活探针。
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics 汇总引擎各部分的运行指标。
func (h *SystemHandler) Metrics(c *gin.Context) {
	connected := h.schemaService.Current() != nil
	tables := 0
	if schema := h.schemaService.Current(); schema != nil {
		tables = len(schema.Tables)
	}

	activeJobs, err := h.jobRepo.ActiveCount(c.Request.Context())
	if err != nil {
		activeJobs = -1
	}

	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"data": gin.H{
			"datasource_connected": connected,
			"tables_discovered":    tables,
			"cache":                h.queryService.CacheStats(),
			"documents":            h.docService.Stats(),
			"active_ingest_jobs":   activeJobs,
		},
	})
}

// ClearCache 清空查询结果缓存。
func (h *SystemHandler) ClearCache(c *gin.Context) {
	h.queryService.ClearCache()
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Cache cleared"})
}
