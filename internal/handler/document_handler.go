package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hrquery-go/internal/model"
	"hrquery-go/internal/repository"
	"hrquery-go/internal/service"
	"hrquery-go/pkg/kafka"
	"hrquery-go/pkg/log"
	"hrquery-go/pkg/storage"
	"hrquery-go/pkg/tasks"
)

// DocumentHandler 负责文档上传与状态查询的 API 请求。
// 上传走异步流水线：字节落 MinIO，任务进 Kafka，状态记在 Redis。
type DocumentHandler struct {
	jobRepo    repository.JobRepository
	docService service.DocumentService
	bucket     string
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(jobRepo repository.JobRepository, docService service.DocumentService, bucket string) *DocumentHandler {
	return &DocumentHandler{jobRepo: jobRepo, docService: docService, bucket: bucket}
}

// Upload 接收一批文件，登记导入任务后逐个投递到处理队列。
// 接口立即返回 job_id，处理进度通过 Status 接口轮询。
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 multipart 请求"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求中没有文件"})
		return
	}

	ctx := c.Request.Context()
	job := &model.IngestionJob{
		JobID:      uuid.New().String(),
		Status:     model.JobProcessing,
		TotalFiles: len(files),
		StartTime:  time.Now(),
		Files:      []model.IngestItemResult{},
	}
	if err := h.jobRepo.Create(ctx, job); err != nil {
		log.Errorf("Upload: Failed to create ingestion job, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "导入任务创建失败"})
		return
	}

	for _, fileHeader := range files {
		src, err := fileHeader.Open()
		if err != nil {
			h.recordUploadFailure(c, job.JobID, fileHeader.Filename, err)
			continue
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			h.recordUploadFailure(c, job.JobID, fileHeader.Filename, err)
			continue
		}

		objectName := fmt.Sprintf("uploads/%s/%s", job.JobID, fileHeader.Filename)
		if err := storage.PutBytes(ctx, h.bucket, objectName, data); err != nil {
			h.recordUploadFailure(c, job.JobID, fileHeader.Filename, err)
			continue
		}

		task := tasks.DocumentProcessingTask{
			JobID:      job.JobID,
			ObjectName: objectName,
			FileName:   fileHeader.Filename,
			SizeBytes:  int64(len(data)),
		}
		if err := kafka.ProduceDocumentTask(ctx, task); err != nil {
			h.recordUploadFailure(c, job.JobID, fileHeader.Filename, err)
			continue
		}
	}

	log.Infof("Upload: Job %s accepted with %d files", job.JobID, len(files))
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "Upload accepted",
		"data": gin.H{
			"job_id":      job.JobID,
			"total_files": len(files),
		},
	})
}

// recordUploadFailure 在入队之前就失败的文件直接记为任务内的失败项。
func (h *DocumentHandler) recordUploadFailure(c *gin.Context, jobID, filename string, cause error) {
	log.Errorf("Upload: File '%s' failed before queueing, error: %v", filename, cause)
	result := model.IngestItemResult{
		Filename: filename,
		Status:   "failed",
		Error:    cause.Error(),
	}
	if err := h.jobRepo.RecordFileResult(c.Request.Context(), jobID, result); err != nil {
		log.Errorf("Upload: Failed to record failure for '%s', error: %v", filename, err)
	}
}

// Status 返回一次导入任务的处理进度。
func (h *DocumentHandler) Status(c *gin.Context) {
	job, err := h.jobRepo.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if err == repository.ErrJobNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或已过期"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": job})
}

// List 返回已入库文档的元信息。
func (h *DocumentHandler) List(c *gin.Context) {
	docs := h.docService.Documents()
	out := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		out = append(out, gin.H{
			"id":           doc.ID,
			"filename":     doc.Filename,
			"type":         doc.Type,
			"chunk_count":  doc.ChunkCount,
			"size_bytes":   doc.SizeBytes,
			"processed_at": doc.ProcessedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": out})
}

// Stats 返回文档库的统计信息。
func (h *DocumentHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": h.docService.Stats()})
}
