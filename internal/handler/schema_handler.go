package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hrquery-go/internal/service"
	"hrquery-go/pkg/log"
)

// SchemaHandler 负责数据源接入与 schema 查看的 API 请求。
type SchemaHandler struct {
	schemaService service.SchemaService
}

// NewSchemaHandler 创建一个新的 SchemaHandler 实例。
func NewSchemaHandler(schemaService service.SchemaService) *SchemaHandler {
	return &SchemaHandler{schemaService: schemaService}
}

// ConnectRequest 定义了接入数据源 API 的请求体结构。
type ConnectRequest struct {
	DSN string `json:"dsn" binding:"required"`
}

// Connect 接入数据源并触发一次完整的 schema 发现。
func (h *SchemaHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：dsn 不能为空"})
		return
	}

	schema, err := h.schemaService.Connect(c.Request.Context(), req.DSN)
	if err != nil {
		log.Errorf("Connect: schema discovery failed, error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Connected",
		"data": gin.H{
			"database_type": schema.DatabaseType,
			"tables":        len(schema.Tables),
			"relationships": len(schema.Relationships),
		},
	})
}

// GetSchema 返回完整的 schema 模型。
func (h *SchemaHandler) GetSchema(c *gin.Context) {
	schema := h.schemaService.Current()
	if schema == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚未接入数据源"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": schema})
}

// ListTables 返回已发现的表名与用途。
func (h *SchemaHandler) ListTables(c *gin.Context) {
	schema := h.schemaService.Current()
	if schema == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚未接入数据源"})
		return
	}
	tables := make([]gin.H, 0, len(schema.Tables))
	for _, table := range schema.Tables {
		entry := gin.H{
			"name":    table.Name,
			"purpose": table.Purpose,
			"columns": len(table.Columns),
		}
		if table.RowCount != nil {
			entry["row_count"] = *table.RowCount
		}
		tables = append(tables, entry)
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": tables})
}

// GetTable 返回单张表的完整元数据。
func (h *SchemaHandler) GetTable(c *gin.Context) {
	schema := h.schemaService.Current()
	if schema == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚未接入数据源"})
		return
	}
	table := schema.TableByName(c.Param("name"))
	if table == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "未知的表"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": table})
}

// ListRelationships 返回显式与推断出的表间关系。
func (h *SchemaHandler) ListRelationships(c *gin.Context) {
	schema := h.schemaService.Current()
	if schema == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚未接入数据源"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": schema.Relationships})
}

// SampleData 返回一张表的样本行。
func (h *SchemaHandler) SampleData(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	rows, err := h.schemaService.SampleData(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": rows})
}
