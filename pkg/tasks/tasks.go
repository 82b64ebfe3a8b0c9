// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentProcessingTask represents a single uploaded file waiting to be processed.
// The raw bytes live in MinIO under ObjectName; JobID groups files of one upload batch.
type DocumentProcessingTask struct {
	JobID      string `json:"job_id"`
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name"`
	SizeBytes  int64  `json:"size_bytes"`
}
