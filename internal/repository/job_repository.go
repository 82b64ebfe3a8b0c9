package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"hrquery-go/internal/model"
)

// ErrJobNotFound 表示指定的导入任务不存在或已过期。
var ErrJobNotFound = errors.New("ingestion job not found")

const jobTTL = 24 * time.Hour

// JobRepository 定义了文档导入任务登记表的操作接口。
type JobRepository interface {
	Create(ctx context.Context, job *model.IngestionJob) error
	Get(ctx context.Context, jobID string) (*model.IngestionJob, error)
	RecordFileResult(ctx context.Context, jobID string, result model.IngestItemResult) error
	ActiveCount(ctx context.Context) (int, error)
}

type redisJobRepository struct {
	redisClient *redis.Client
}

// NewJobRepository 创建一个基于 Redis 的 JobRepository 实例。
func NewJobRepository(redisClient *redis.Client) JobRepository {
	return &redisJobRepository{redisClient: redisClient}
}

func jobKey(jobID string) string {
	return fmt.Sprintf("ingest:job:%s", jobID)
}

// Create 登记一个新的导入任务。
func (r *redisJobRepository) Create(ctx context.Context, job *model.IngestionJob) error {
	return r.save(ctx, job)
}

// Get 读取一个导入任务的当前状态。
func (r *redisJobRepository) Get(ctx context.Context, jobID string) (*model.IngestionJob, error) {
	jsonData, err := r.redisClient.Get(ctx, jobKey(jobID)).Result()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingestion job: %w", err)
	}
	var job model.IngestionJob
	if err := json.Unmarshal([]byte(jsonData), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingestion job: %w", err)
	}
	return &job, nil
}

// RecordFileResult 记录单个文件的处理结果并更新任务计数。
// 全部文件处理完后，任务状态置为 completed。
func (r *redisJobRepository) RecordFileResult(ctx context.Context, jobID string, result model.IngestItemResult) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Files = append(job.Files, result)
	if result.Status == "success" {
		job.ProcessedFiles++
	} else {
		job.FailedFiles++
	}
	if job.Done() {
		job.Status = model.JobCompleted
		now := time.Now()
		job.EndTime = &now
	}
	return r.save(ctx, job)
}

// ActiveCount 返回当前仍在处理中的任务数。
func (r *redisJobRepository) ActiveCount(ctx context.Context) (int, error) {
	keys, err := r.redisClient.Keys(ctx, "ingest:job:*").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan ingestion job keys: %w", err)
	}
	count := 0
	for _, k := range keys {
		jsonData, getErr := r.redisClient.Get(ctx, k).Result()
		if getErr != nil {
			continue
		}
		var job model.IngestionJob
		if json.Unmarshal([]byte(jsonData), &job) != nil {
			continue
		}
		if job.Status == model.JobProcessing {
			count++
		}
	}
	return count, nil
}

func (r *redisJobRepository) save(ctx context.Context, job *model.IngestionJob) error {
	jsonData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion job: %w", err)
	}
	if err := r.redisClient.Set(ctx, jobKey(job.JobID), jsonData, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to save ingestion job: %w", err)
	}
	return nil
}
