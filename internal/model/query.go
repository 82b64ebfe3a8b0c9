package model

// QueryType 是查询分类的结果类型。
type QueryType string

const (
	QuerySQL      QueryType = "sql"
	QueryDocument QueryType = "document"
	QueryHybrid   QueryType = "hybrid"
	QueryGeneral  QueryType = "general"
)

// Complexity 是面向性能指标的查询复杂度标签。
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// QueryClassification 是对单条查询的瞬态分类结果，每次查询重新计算。
type QueryClassification struct {
	Type        QueryType `json:"type"`
	Confidence  float64   `json:"confidence"`
	SQLScore    int       `json:"sql_score"`
	DocScore    int       `json:"document_score"`
	HybridScore int       `json:"hybrid_score"`
}

// ValidationResult 是对原始查询文本的安全校验结果。
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

// HybridResults 成对携带混合查询两条分支的结果。
// 两个分支互不合并，各自的错误也按分支上报，不使整体失败。
type HybridResults struct {
	SQLRows  []map[string]interface{} `json:"sql_results"`
	SQLError string                   `json:"sql_error,omitempty"`
	DocHits  []SearchHit              `json:"document_results"`
	DocError string                   `json:"document_error,omitempty"`
}

// QueryResult 是查询引擎对一条查询的完整响应。
type QueryResult struct {
	Classification QueryClassification      `json:"classification"`
	QueryType      QueryType                `json:"query_type"`
	Rows           []map[string]interface{} `json:"results,omitempty"`
	Hits           []SearchHit              `json:"hits,omitempty"`
	Hybrid         *HybridResults           `json:"hybrid,omitempty"`
	SQLQuery       string                   `json:"sql_query,omitempty"`
	TablesUsed     []string                 `json:"tables_used,omitempty"`
	Sources        []string                 `json:"sources"`
	Complexity     Complexity               `json:"complexity"`
	ProcessingMS   int64                    `json:"processing_time_ms"`
	CacheHit       bool                     `json:"cache_hit"`
	Error          string                   `json:"error,omitempty"`
}
