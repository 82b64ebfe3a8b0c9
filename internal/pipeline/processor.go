// Package pipeline 实现文档导入任务的异步消费端。
package pipeline

import (
	"context"

	"hrquery-go/internal/model"
	"hrquery-go/internal/repository"
	"hrquery-go/internal/service"
	"hrquery-go/pkg/log"
	"hrquery-go/pkg/storage"
	"hrquery-go/pkg/tasks"
)

// DocumentProcessor 消费上传任务：取回字节、走文档流水线、回写任务进度。
// 单个文件的失败记入任务结果后返回 nil，让消费组正常提交位点。
type DocumentProcessor struct {
	docService service.DocumentService
	jobRepo    repository.JobRepository
	bucket     string
}

// NewDocumentProcessor 创建文档任务处理器。
func NewDocumentProcessor(docService service.DocumentService, jobRepo repository.JobRepository, bucket string) *DocumentProcessor {
	return &DocumentProcessor{docService: docService, jobRepo: jobRepo, bucket: bucket}
}

// Process 处理一条文档导入任务。
func (p *DocumentProcessor) Process(ctx context.Context, task tasks.DocumentProcessingTask) error {
	log.Infof("[Pipeline] 开始处理任务: job=%s file=%s", task.JobID, task.FileName)

	data, err := storage.GetBytes(ctx, p.bucket, task.ObjectName)
	if err != nil {
		log.Errorf("[Pipeline] 读取对象失败: %s: %v", task.ObjectName, err)
		p.record(ctx, task, model.IngestItemResult{
			Filename: task.FileName,
			Status:   "failed",
			Error:    err.Error(),
		})
		return nil
	}

	doc, err := p.docService.ProcessDocument(ctx, model.RawFile{
		Filename: task.FileName,
		Data:     data,
	})
	if err != nil {
		log.Errorf("[Pipeline] 文档处理失败: %s: %v", task.FileName, err)
		p.record(ctx, task, model.IngestItemResult{
			Filename: task.FileName,
			Status:   "failed",
			Error:    err.Error(),
		})
		return nil
	}

	p.record(ctx, task, model.IngestItemResult{
		Filename: task.FileName,
		Status:   "success",
		Chunks:   doc.ChunkCount,
		Type:     doc.Type,
	})

	// 原始字节已经消化完毕，临时对象不再需要
	if err := storage.RemoveObject(ctx, p.bucket, task.ObjectName); err != nil {
		log.Warnf("[Pipeline] 清理临时对象失败: %s: %v", task.ObjectName, err)
	}

	log.Infof("[Pipeline] 任务完成: job=%s file=%s chunks=%d", task.JobID, task.FileName, doc.ChunkCount)
	return nil
}

func (p *DocumentProcessor) record(ctx context.Context, task tasks.DocumentProcessingTask, result model.IngestItemResult) {
	if err := p.jobRepo.RecordFileResult(ctx, task.JobID, result); err != nil {
		log.Errorf("[Pipeline] 记录任务进度失败: job=%s file=%s: %v", task.JobID, task.FileName, err)
	}
}
