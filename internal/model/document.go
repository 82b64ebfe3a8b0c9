package model

import "time"

// FileType 是按扩展名识别出的文档类型。
type FileType string

const (
	FilePDF     FileType = "pdf"
	FileDocx    FileType = "docx"
	FileTxt     FileType = "txt"
	FileCSV     FileType = "csv"
	FileExcel   FileType = "excel"
	FileUnknown FileType = "unknown"
)

// ContentKind 是分块打上的内容类别标签。
// 简历分块会细化为 resume_<section> 形式。
type ContentKind string

const (
	KindCSVSection ContentKind = "csv_section"
	KindResume     ContentKind = "resume"
	KindContract   ContentKind = "contract_clause"
	KindParagraph  ContentKind = "paragraph_section"
	KindGeneric    ContentKind = "generic"
)

// Chunk 是文档分块的产物，也是向量化与检索的基本单位。
type Chunk struct {
	Text      string      `json:"text"`
	Position  int         `json:"chunk_id"`
	Kind      ContentKind `json:"type"`
	CharCount int         `json:"char_count"`
	WordCount int         `json:"word_count"`
	Embedding []float32   `json:"-"`
}

// Document 是一次导入产生的文档，连同其有序的分块序列。
// 文档集合只追加、进程生命周期内常驻，不提供删除。
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Type        FileType  `json:"type"`
	Content     string    `json:"-"`
	Chunks      []Chunk   `json:"chunks,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	SizeBytes   int64     `json:"size_bytes"`
	ProcessedAt time.Time `json:"processed_at"`
}

// SearchHit 是一次相似度检索的单条命中。
type SearchHit struct {
	DocID      string      `json:"doc_id"`
	Filename   string      `json:"filename"`
	ChunkText  string      `json:"chunk_text"`
	ChunkKind  ContentKind `json:"chunk_type"`
	Similarity float64     `json:"similarity_score"`
	DocType    FileType    `json:"doc_type"`
}

// DocumentStats 汇总已导入文档的统计信息。
type DocumentStats struct {
	TotalDocuments   int              `json:"total_documents"`
	TotalChunks      int              `json:"total_chunks"`
	DocumentTypes    map[FileType]int `json:"document_types"`
	EmbeddingsCached int              `json:"embeddings_cached"`
	AvgChunksPerDoc  float64          `json:"avg_chunks_per_doc"`
}

// RawFile 是导入边界上的一项输入：原始字节加文件名。
type RawFile struct {
	Filename string
	Data     []byte
}

// IngestItemResult 是批量导入中单个文件的处理结果。
type IngestItemResult struct {
	Filename string   `json:"filename"`
	Status   string   `json:"status"` // success / failed
	Chunks   int      `json:"chunks,omitempty"`
	Type     FileType `json:"type,omitempty"`
	Error    string   `json:"error,omitempty"`
}
