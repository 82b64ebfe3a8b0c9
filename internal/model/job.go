package model

import "time"

// JobStatus 是文档导入任务的状态。
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IngestionJob 对应 Redis 中记录的一次批量文档导入任务。
// 单个文件的失败只累加 FailedFiles，不会让整个任务进入 failed 状态。
type IngestionJob struct {
	JobID          string             `json:"job_id"`
	Status         JobStatus          `json:"status"`
	TotalFiles     int                `json:"total_files"`
	ProcessedFiles int                `json:"processed_files"`
	FailedFiles    int                `json:"failed_files"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        *time.Time         `json:"end_time,omitempty"`
	Files          []IngestItemResult `json:"files"`
}

// Done 返回任务是否已处理完全部文件。
func (j *IngestionJob) Done() bool {
	return j.ProcessedFiles+j.FailedFiles >= j.TotalFiles
}
