package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"hrquery-go/internal/model"
	"hrquery-go/internal/repository"
	"hrquery-go/pkg/log"
)

// referenceSuffix 是关系推断识别的引用列后缀。
const referenceSuffix = "_id"

// columnSimilarityThreshold 是跨表列名词法相似度的认定阈值。
const columnSimilarityThreshold = 0.8

// inferredConfidence 是名称包含规则推断出的关系的置信度。
const inferredConfidence = 0.8

// fallbackTableLimit 是语义映射兜底返回的表数量上限。
const fallbackTableLimit = 3

// SchemaService 接口定义了 schema 发现与语义映射的操作。
type SchemaService interface {
	// Connect 接入数据源并完成一次完整的 schema 发现。
	// 旧的 SchemaModel 被整体替换，正在读取旧模型的查询不受影响。
	Connect(ctx context.Context, dsn string) (*model.SchemaModel, error)
	// Current 返回当前的 SchemaModel，未接入时为 nil。
	Current() *model.SchemaModel
	// Store 返回当前数据源的仓库，未接入时为 nil。
	Store() repository.StoreRepository
	// MapNaturalLanguageToSchema 把一条自然语言查询映射到 schema 元素。
	MapNaturalLanguageToSchema(query string, schema *model.SchemaModel) *model.SchemaMapping
	// SampleData 返回一张表的样本行。
	SampleData(ctx context.Context, table string, limit int) ([]map[string]interface{}, error)
}

type schemaService struct {
	mu      sync.RWMutex
	opener  repository.StoreOpener
	store   repository.StoreRepository
	current *model.SchemaModel
}

// NewSchemaService 创建一个新的 SchemaService 实例。
func NewSchemaService(opener repository.StoreOpener) SchemaService {
	return &schemaService{opener: opener}
}

// Connect 执行完整的 schema 发现流程并原子地替换当前模型。
func (s *schemaService) Connect(ctx context.Context, dsn string) (*model.SchemaModel, error) {
	log.Info("[SchemaService] 开始接入数据源")

	store, err := s.opener(dsn)
	if err != nil {
		log.Errorf("[SchemaService] 数据源连接失败: %v", err)
		return nil, &model.ConnectionError{Err: err}
	}

	schema, err := s.analyze(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// 新模型构建完成后整体换入，绝不原地修改旧模型
	s.mu.Lock()
	old := s.store
	s.store = store
	s.current = schema
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	log.Infof("[SchemaService] schema 发现完成: %d 张表, %d 条关系",
		len(schema.Tables), len(schema.Relationships))
	return schema, nil
}

func (s *schemaService) Current() *model.SchemaModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *schemaService) Store() repository.StoreRepository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// analyze 对数据源做逐表自省并构建完整的 SchemaModel。
func (s *schemaService) analyze(ctx context.Context, store repository.StoreRepository) (*model.SchemaModel, error) {
	tableNames, err := store.Tables(ctx)
	if err != nil {
		return nil, &model.ConnectionError{Err: err}
	}

	tables := make([]model.Table, 0, len(tableNames))
	for _, name := range tableNames {
		table, err := s.analyzeTable(ctx, store, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	relationships := discoverRelationships(tables)
	relationships = append(relationships, inferRelationships(tables, relationships)...)

	schema := &model.SchemaModel{
		Tables:        tables,
		Relationships: relationships,
		Mapping:       buildSemanticMapping(tables),
		DatabaseType:  store.DatabaseType(),
	}
	return schema, nil
}

// analyzeTable 提取单张表的列、主键、外键与行数。
func (s *schemaService) analyzeTable(ctx context.Context, store repository.StoreRepository, name string) (model.Table, error) {
	columns, err := store.Columns(ctx, name)
	if err != nil {
		return model.Table{}, fmt.Errorf("分析表 '%s' 失败: %w", name, err)
	}
	primaryKeys, err := store.PrimaryKeys(ctx, name)
	if err != nil {
		return model.Table{}, fmt.Errorf("分析表 '%s' 失败: %w", name, err)
	}
	foreignKeys, err := store.ForeignKeys(ctx, name)
	if err != nil {
		return model.Table{}, fmt.Errorf("分析表 '%s' 失败: %w", name, err)
	}

	table := model.Table{
		Name:        name,
		Columns:     columns,
		PrimaryKeys: primaryKeys,
		ForeignKeys: foreignKeys,
		Purpose:     classifyTablePurpose(name, columns),
	}

	// 行数探测失败被容忍：字段留空，不影响其余发现流程
	if count, err := store.CountRows(ctx, name); err != nil {
		log.Warnf("[SchemaService] 表 '%s' 行数探测失败, 已忽略: %v", name, err)
	} else {
		table.RowCount = &count
	}
	return table, nil
}

// classifyTablePurpose 按固定优先级判定一张表承载的实体类型，首个命中即定论。
func classifyTablePurpose(name string, columns []model.Column) model.TablePurpose {
	nameLower := strings.ToLower(name)

	for _, pattern := range employeeTablePatterns {
		if strings.Contains(nameLower, pattern) {
			return model.PurposeEmployee
		}
	}
	for _, pattern := range departmentTablePatterns {
		if strings.Contains(nameLower, pattern) {
			return model.PurposeDepartment
		}
	}
	for _, col := range columns {
		colLower := strings.ToLower(col.Name)
		for _, hint := range compensationColumnHints {
			if strings.Contains(colLower, hint) {
				return model.PurposeCompensation
			}
		}
	}
	for _, pattern := range documentTablePatterns {
		if strings.Contains(nameLower, pattern) {
			return model.PurposeDocument
		}
	}
	return model.PurposeOther
}

// discoverRelationships 从外键元数据收集显式关系，置信度恒为 1.0。
func discoverRelationships(tables []model.Table) []model.Relationship {
	var relationships []model.Relationship
	for _, table := range tables {
		for _, fk := range table.ForeignKeys {
			relationships = append(relationships, model.Relationship{
				FromTable:   table.Name,
				FromColumns: fk.Columns,
				ToTable:     fk.ReferredTable,
				ToColumns:   fk.ReferredColumns,
				Kind:        model.RelationExplicit,
				Confidence:  1.0,
			})
		}
	}
	return relationships
}

// inferRelationships 按命名启发式推断隐式关系。
// 已有显式关系覆盖的 (from 表, from 列) 不再推断；同一对列只推断一次。
func inferRelationships(tables []model.Table, explicit []model.Relationship) []model.Relationship {
	covered := make(map[string]bool)
	for _, rel := range explicit {
		covered[relKey(rel.FromTable, rel.FromColumns)] = true
	}

	var inferred []model.Relationship
	add := func(rel model.Relationship) {
		key := relKey(rel.FromTable, rel.FromColumns)
		if covered[key] {
			return
		}
		covered[key] = true
		inferred = append(inferred, rel)
	}

	for _, table := range tables {
		for _, col := range table.Columns {
			colLower := strings.ToLower(col.Name)
			if !strings.HasSuffix(colLower, referenceSuffix) {
				continue
			}
			base := strings.TrimSuffix(colLower, referenceSuffix)

			// 规则一：去掉引用后缀的列名与另一张表的表名互相包含
			for _, other := range tables {
				otherLower := strings.ToLower(other.Name)
				if strings.Contains(otherLower, base) || strings.Contains(base, otherLower) {
					add(model.Relationship{
						FromTable:   table.Name,
						FromColumns: []string{col.Name},
						ToTable:     other.Name,
						ToColumns:   other.PrimaryKeys,
						Kind:        model.RelationInferred,
						Confidence:  inferredConfidence,
					})
				}
			}

			// 规则二：跨表的两个引用列名词法高度相似
			for _, other := range tables {
				if other.Name == table.Name {
					continue
				}
				for _, otherCol := range other.Columns {
					otherColLower := strings.ToLower(otherCol.Name)
					if !strings.HasSuffix(otherColLower, referenceSuffix) {
						continue
					}
					ratio := similarityRatio(colLower, otherColLower)
					if ratio < columnSimilarityThreshold {
						continue
					}
					confidence := ratio
					if confidence >= 1.0 {
						confidence = 0.95
					}
					add(model.Relationship{
						FromTable:   table.Name,
						FromColumns: []string{col.Name},
						ToTable:     other.Name,
						ToColumns:   []string{otherCol.Name},
						Kind:        model.RelationInferred,
						Confidence:  confidence,
					})
				}
			}
		}
	}
	return inferred
}

func relKey(table string, columns []string) string {
	return table + "|" + strings.Join(columns, ",")
}

// similarityRatio 返回两个字符串的词法相似度，基于编辑距离，范围 [0,1]。
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// buildSemanticMapping 为每个表和列登记词表中的全部同义词条。
// 多个列命中同一词条时后处理者覆盖前者，这是参考行为中已知的歧义，保留不改。
func buildSemanticMapping(tables []model.Table) model.SemanticMapping {
	mapping := model.SemanticMapping{
		Tables:  make(map[string]string),
		Columns: make(map[string]string),
	}

	for _, table := range tables {
		nameLower := strings.ToLower(table.Name)
		mapping.Tables[nameLower] = table.Name
		mapping.Tables[string(table.Purpose)] = table.Name

		for _, entity := range entityOrder {
			patterns := entityPatterns[entity]
			if string(table.Purpose) == entity || containsAnyPattern(nameLower, patterns) {
				for _, term := range patterns {
					mapping.Tables[term] = table.Name
				}
			}
		}

		for _, col := range table.Columns {
			colLower := strings.ToLower(col.Name)
			path := table.Name + "." + col.Name
			mapping.Columns[colLower] = path
			for _, entity := range entityOrder {
				patterns := entityPatterns[entity]
				if containsAnyPattern(colLower, patterns) {
					for _, term := range patterns {
						mapping.Columns[term] = path
					}
				}
			}
		}
	}
	return mapping
}

// entityOrder 固定实体词表的遍历顺序，保证映射结果可复现。
var entityOrder = []string{"employee", "department", "salary", "position", "manager", "date"}

// aggregationOrder 固定聚合关键字的遍历顺序。
var aggregationOrder = []string{"count", "average", "sum", "max", "min"}

func containsAnyPattern(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func anyColumnMatches(columns []model.Column, patterns []string) bool {
	for _, col := range columns {
		if containsAnyPattern(strings.ToLower(col.Name), patterns) {
			return true
		}
	}
	return false
}

// MapNaturalLanguageToSchema 把查询文本映射到 schema 元素。
// 匹配按 schema 内的表序遍历而不是遍历映射表，保证相同输入产出相同结果。
func (s *schemaService) MapNaturalLanguageToSchema(query string, schema *model.SchemaModel) *model.SchemaMapping {
	mapping := &model.SchemaMapping{
		SuggestedTables:  []string{},
		SuggestedColumns: []model.ColumnRef{},
		Aggregations:     []string{},
		Filters:          []model.ComparisonFilter{},
	}
	if schema == nil {
		return mapping
	}
	queryLower := strings.ToLower(query)

	suggested := make(map[string]bool)
	addTable := func(name string) {
		if !suggested[name] {
			suggested[name] = true
			mapping.SuggestedTables = append(mapping.SuggestedTables, name)
		}
	}

	// 表引用：表名、用途或实体同义词出现在查询里
	for _, table := range schema.Tables {
		nameLower := strings.ToLower(table.Name)
		if strings.Contains(queryLower, nameLower) ||
			(table.Purpose != model.PurposeOther && strings.Contains(queryLower, string(table.Purpose))) {
			addTable(table.Name)
		}
		for _, entity := range entityOrder {
			patterns := entityPatterns[entity]
			if !containsAnyPattern(queryLower, patterns) {
				continue
			}
			// 实体词条通过表名、用途或者该表持有的列都可以命中一张表
			if string(table.Purpose) == entity || containsAnyPattern(nameLower, patterns) ||
				anyColumnMatches(table.Columns, patterns) {
				addTable(table.Name)
			}
		}
	}

	// 列引用：只在候选表内找；尚无候选表时放宽到全部表
	for _, table := range schema.Tables {
		if len(mapping.SuggestedTables) > 0 && !suggested[table.Name] {
			continue
		}
		for _, col := range table.Columns {
			colLower := strings.ToLower(col.Name)
			if strings.Contains(queryLower, colLower) {
				mapping.SuggestedColumns = append(mapping.SuggestedColumns,
					model.ColumnRef{Table: table.Name, Column: col.Name, Type: col.Type})
				continue
			}
			for _, entity := range entityOrder {
				patterns := entityPatterns[entity]
				if containsAnyPattern(queryLower, patterns) && containsAnyPattern(colLower, patterns) {
					mapping.SuggestedColumns = append(mapping.SuggestedColumns,
						model.ColumnRef{Table: table.Name, Column: col.Name, Type: col.Type})
					break
				}
			}
		}
	}

	// 聚合操作
	for _, agg := range aggregationOrder {
		if containsAnyPattern(queryLower, aggregationKeywords[agg]) {
			mapping.Aggregations = append(mapping.Aggregations, agg)
		}
	}

	// 数值比较条件
	for _, cp := range comparisonPatterns {
		if m := cp.Pattern.FindStringSubmatch(queryLower); m != nil {
			mapping.Filters = append(mapping.Filters,
				model.ComparisonFilter{Operator: cp.Operator, Value: m[1]})
		}
	}

	// 兜底：employee 表优先，其次按行数降序，截断到固定上限
	if len(mapping.SuggestedTables) == 0 {
		mapping.SuggestedTables = fallbackTables(schema)
	}
	return mapping
}

// fallbackTables 在没有任何词条命中时给出候选表。
func fallbackTables(schema *model.SchemaModel) []string {
	var employees []string
	for _, table := range schema.Tables {
		if table.Purpose == model.PurposeEmployee {
			employees = append(employees, table.Name)
		}
	}
	if len(employees) > 0 {
		if len(employees) > fallbackTableLimit {
			employees = employees[:fallbackTableLimit]
		}
		return employees
	}

	sorted := make([]model.Table, len(schema.Tables))
	copy(sorted, schema.Tables)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rowCountOrZero(sorted[i]) > rowCountOrZero(sorted[j])
	})
	names := make([]string, 0, fallbackTableLimit)
	for _, table := range sorted {
		names = append(names, table.Name)
		if len(names) >= fallbackTableLimit {
			break
		}
	}
	return names
}

func rowCountOrZero(t model.Table) int64 {
	if t.RowCount == nil {
		return 0
	}
	return *t.RowCount
}

// SampleData 返回一张表的样本行，用于理解上下文。
func (s *schemaService) SampleData(ctx context.Context, table string, limit int) ([]map[string]interface{}, error) {
	s.mu.RLock()
	store, schema := s.store, s.current
	s.mu.RUnlock()

	if store == nil || schema == nil {
		return nil, fmt.Errorf("尚未接入数据源")
	}
	// 只允许查询已发现的表，防止把任意标识符拼进 SQL
	if schema.TableByName(table) == nil {
		return nil, fmt.Errorf("未知的表: %s", table)
	}
	if limit <= 0 {
		limit = 5
	}
	return store.Query(ctx, fmt.Sprintf("SELECT * FROM `%s` LIMIT %d", table, limit))
}
