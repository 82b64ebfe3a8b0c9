package service

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"

	"hrquery-go/internal/model"
	"hrquery-go/pkg/cache"
	"hrquery-go/pkg/log"
)

// QueryService 是查询引擎的编排层，负责校验、缓存、分类与路由。
type QueryService interface {
	// Process 处理一条自然语言查询，永远返回结构化结果而不是 panic。
	Process(ctx context.Context, query string) *model.QueryResult
	// Suggestions 基于部分输入和当前 schema 生成查询补全。
	Suggestions(partial string) []string
	// History 返回最近的查询历史，最新的在前。
	History(limit int) []cache.HistoryRecord
	// CacheStats 返回结果缓存的统计信息。
	CacheStats() cache.Stats
	// ClearCache 清空结果缓存。
	ClearCache()
}

type queryService struct {
	schema SchemaService
	docs   DocumentService
	cache  *cache.QueryCache
	ttl    time.Duration
	topK   int
}

// NewQueryService 创建查询引擎实例。
func NewQueryService(schema SchemaService, docs DocumentService, resultCache *cache.QueryCache, ttl time.Duration, topK int) QueryService {
	if topK <= 0 {
		topK = 5
	}
	return &queryService{
		schema: schema,
		docs:   docs,
		cache:  resultCache,
		ttl:    ttl,
		topK:   topK,
	}
}

// Process 是一条查询的完整生命周期：
// 校验 -> 缓存查找 -> 分类 -> 路由执行 -> 复杂度评估 -> 缓存与历史记录。
// 校验失败的查询在任何执行之前被拒绝。
func (s *queryService) Process(ctx context.Context, query string) *model.QueryResult {
	start := time.Now()

	validation := ValidateQuery(query)
	if !validation.IsValid {
		log.Warnf("[QueryService] 查询被安全校验拒绝: %v", validation.Errors)
		return &model.QueryResult{
			QueryType:    model.QueryGeneral,
			Sources:      []string{},
			Complexity:   model.ComplexityLow,
			Error:        strings.Join(validation.Errors, "; "),
			ProcessingMS: time.Since(start).Milliseconds(),
		}
	}

	key := cacheKey(query)
	if cached, ok := s.cache.Get(key); ok {
		if result, ok := cached.(*model.QueryResult); ok {
			hit := *result
			hit.CacheHit = true
			hit.ProcessingMS = time.Since(start).Milliseconds()
			s.recordHistory(query, &hit)
			return &hit
		}
	}

	classification := ClassifyQuery(query)
	log.Infof("[QueryService] 查询分类: type=%s confidence=%.2f", classification.Type, classification.Confidence)

	var result *model.QueryResult
	switch classification.Type {
	case model.QuerySQL:
		result = s.executeSQL(ctx, query)
	case model.QueryDocument:
		result = s.executeDocument(ctx, query)
	case model.QueryHybrid:
		result = s.executeHybrid(ctx, query)
	default:
		result = s.executeGeneral(ctx, query)
	}

	result.Classification = classification
	result.QueryType = classification.Type
	result.Complexity = scoreComplexity(query, result.SQLQuery, classification.Type)
	result.ProcessingMS = time.Since(start).Milliseconds()
	if result.Sources == nil {
		result.Sources = []string{}
	}

	if result.Error == "" {
		s.cache.Set(key, result, s.ttl)
	}
	s.recordHistory(query, result)
	return result
}

// executeSQL 是结构化查询分支：映射 -> 合成 -> 优化 -> 执行。
func (s *queryService) executeSQL(ctx context.Context, query string) *model.QueryResult {
	schema := s.schema.Current()
	store := s.schema.Store()
	if schema == nil || store == nil {
		return &model.QueryResult{Error: "尚未接入数据源, 请先调用 connect"}
	}

	mapping := s.schema.MapNaturalLanguageToSchema(query, schema)
	sqlQuery, err := GenerateSQL(query, mapping, schema)
	if err != nil {
		return &model.QueryResult{Error: err.Error()}
	}
	sqlQuery = OptimizeSQL(sqlQuery)

	rows, err := store.Query(ctx, sqlQuery)
	if err != nil {
		log.Errorf("[QueryService] SQL 执行失败: %v", err)
		return &model.QueryResult{SQLQuery: sqlQuery, Error: err.Error()}
	}
	return &model.QueryResult{
		Rows:       rows,
		SQLQuery:   sqlQuery,
		TablesUsed: mapping.SuggestedTables,
		Sources:    []string{"database"},
	}
}

// executeDocument 是文档检索分支。
func (s *queryService) executeDocument(ctx context.Context, query string) *model.QueryResult {
	hits, err := s.docs.Search(ctx, query, s.topK)
	if err != nil {
		log.Errorf("[QueryService] 文档检索失败: %v", err)
		return &model.QueryResult{Error: err.Error()}
	}
	return &model.QueryResult{Hits: hits, Sources: []string{"documents"}}
}

// executeHybrid 并发运行两条分支，结果成对返回。
// 任一分支失败只记录在该分支上，不使整个查询失败。
func (s *queryService) executeHybrid(ctx context.Context, query string) *model.QueryResult {
	hybrid := &model.HybridResults{}
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		sqlResult := s.executeSQL(ctx, query)
		if sqlResult.Error != "" {
			hybrid.SQLError = sqlResult.Error
			return
		}
		hybrid.SQLRows = sqlResult.Rows
	}()
	go func() {
		defer wg.Done()
		docResult := s.executeDocument(ctx, query)
		if docResult.Error != "" {
			hybrid.DocError = docResult.Error
			return
		}
		hybrid.DocHits = docResult.Hits
	}()
	wg.Wait()

	sources := []string{}
	if hybrid.SQLError == "" {
		sources = append(sources, "database")
	}
	if hybrid.DocError == "" {
		sources = append(sources, "documents")
	}
	result := &model.QueryResult{Hybrid: hybrid, Sources: sources}
	if hybrid.SQLError != "" && hybrid.DocError != "" {
		result.Error = fmt.Sprintf("两条分支均失败: sql: %s; documents: %s", hybrid.SQLError, hybrid.DocError)
	}
	return result
}

// executeGeneral 是兜底分支：先试结构化查询，失败或查不到行时回退到
// 文档检索，仍无结果时返回结构化的错误响应。
func (s *queryService) executeGeneral(ctx context.Context, query string) *model.QueryResult {
	sqlResult := s.executeSQL(ctx, query)
	if sqlResult.Error == "" && len(sqlResult.Rows) > 0 {
		return sqlResult
	}

	docResult := s.executeDocument(ctx, query)
	if docResult.Error == "" && len(docResult.Hits) > 0 {
		return docResult
	}

	return &model.QueryResult{
		Sources: []string{},
		Error:   "无法处理该查询, 请尝试换一种问法或先接入数据源",
	}
}

// scoreComplexity 粗粒度评估一条查询的复杂度，供性能指标分桶。
func scoreComplexity(query, sqlQuery string, queryType model.QueryType) model.Complexity {
	score := 0
	upper := strings.ToUpper(sqlQuery)
	for _, heavy := range []string{"JOIN", "GROUP BY", "HAVING"} {
		if strings.Contains(upper, heavy) {
			score += 2
		}
	}
	for _, agg := range []string{"COUNT(", "AVG(", "SUM("} {
		if strings.Contains(upper, agg) {
			score++
		}
	}
	if len(strings.Fields(query)) > 10 {
		score++
	}
	if queryType == model.QueryHybrid {
		score += 2
	}

	switch {
	case score >= 4:
		return model.ComplexityHigh
	case score >= 2:
		return model.ComplexityMedium
	default:
		return model.ComplexityLow
	}
}

func (s *queryService) recordHistory(query string, result *model.QueryResult) {
	s.cache.AddHistory(cache.HistoryRecord{
		Query:     query,
		Timestamp: time.Now(),
		LatencyMS: result.ProcessingMS,
		CacheHit:  result.CacheHit,
		QueryType: string(result.QueryType),
	})
}

// Suggestions 基于部分输入生成查询补全：空输入返回起手示例；
// 输入命中表名时派生语境化的续写；再叠加基于已发现列的补全。
// 最多返回 5 条。
func (s *queryService) Suggestions(partial string) []string {
	suggestions := []string{}
	partialLower := strings.ToLower(strings.TrimSpace(partial))
	schema := s.schema.Current()

	if partialLower == "" {
		suggestions = append(suggestions,
			"How many employees do we have?",
			"Average salary by department",
			"List all employees",
			"Show me employees with Python skills",
			"Top 5 highest paid employees",
		)
	} else if schema != nil && mentionsTableName(partialLower, schema) {
		suggestions = append(suggestions,
			fmt.Sprintf("%s in Engineering department", partial),
			fmt.Sprintf("%s hired this year", partial),
			fmt.Sprintf("%s with salary > 100000", partial),
		)
	}

	if schema != nil && partialLower != "" {
		for _, table := range schema.Tables {
			if strings.Contains(partialLower, "count") {
				suggestions = append(suggestions, fmt.Sprintf("Count of %s", table.Name))
			}
			if strings.Contains(partialLower, "salary") || strings.Contains(partialLower, "pay") {
				if col := firstCompensationColumn(table); col != "" {
					suggestions = append(suggestions,
						fmt.Sprintf("Average %s by department", col),
						fmt.Sprintf("Employees with %s > 100000", col),
					)
				}
			}
		}
	}

	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions
}

func mentionsTableName(partialLower string, schema *model.SchemaModel) bool {
	for _, table := range schema.Tables {
		if strings.Contains(partialLower, strings.ToLower(table.Name)) {
			return true
		}
	}
	return false
}

func firstCompensationColumn(table model.Table) string {
	for _, col := range table.Columns {
		lower := strings.ToLower(col.Name)
		for _, term := range []string{"salary", "pay", "compensation"} {
			if strings.Contains(lower, term) {
				return col.Name
			}
		}
	}
	return ""
}

func (s *queryService) History(limit int) []cache.HistoryRecord {
	return s.cache.RecentHistory(limit)
}

func (s *queryService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func (s *queryService) ClearCache() {
	s.cache.Clear()
}

// cacheKey 对归一化后的查询文本取摘要作为缓存键。
func cacheKey(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return fmt.Sprintf("%x", md5.Sum([]byte(normalized)))
}
