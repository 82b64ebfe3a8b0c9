package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hrquery-go/internal/service"
)

// QueryHandler 负责自然语言查询相关的 API 请求。
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// QueryRequest 定义了自然语言查询 API 的请求体结构。
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Query 处理一条自然语言查询。
// 引擎内部的失败以结构化错误字段返回，HTTP 层面仍然是 200。
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：query 不能为空"})
		return
	}

	result := h.queryService.Process(c.Request.Context(), req.Query)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": result})
}

// History 返回最近的查询历史，最新的在前。
func (h *QueryHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"data": h.queryService.History(limit),
	})
}

// Suggestions 返回基于部分输入的查询补全，partial 为空时返回起手示例。
func (h *QueryHandler) Suggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"data": h.queryService.Suggestions(c.Query("partial")),
	})
}
