package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"hrquery-go/internal/model"
)

// defaultSelectLimit 是列表类查询的固定行数上限。
const defaultSelectLimit = 50

// optimizeLimit 是优化阶段为未设上限的 SELECT 追加的行数上限。
const optimizeLimit = 100

// defaultTopN 是排名类查询未显式给出数量时的默认值。
const defaultTopN = 5

var topNPattern = regexp.MustCompile(`top\s+(\d+)`)

// maxQueryLength 超过该长度的查询文本会得到一条警告。
const maxQueryLength = 1000

var broadSelectPattern = regexp.MustCompile(`SELECT\s+\*.*LIMIT\s+[5-9]\d{2,}`)

// GenerateSQL 按固定优先级的策略把映射结果合成为一条 SELECT 语句。
// 只使用第一张候选表；没有候选表时返回错误。
func GenerateSQL(query string, mapping *model.SchemaMapping, schema *model.SchemaModel) (string, error) {
	if mapping == nil || len(mapping.SuggestedTables) == 0 {
		return "", fmt.Errorf("查询未映射到任何表")
	}
	mainTable := mapping.SuggestedTables[0]
	var table *model.Table
	if schema != nil {
		table = schema.TableByName(mainTable)
	}
	queryLower := strings.ToLower(query)

	switch {
	case containsAnyPattern(queryLower, aggregationKeywords["count"]):
		return generateCountSQL(queryLower, mainTable, table), nil
	case containsAnyPattern(queryLower, aggregationKeywords["average"]):
		return generateAverageSQL(queryLower, mainTable, table), nil
	case containsAnyPattern(queryLower, []string{"list", "show", "find", "all "}):
		return generateListSQL(queryLower, mainTable, table, mapping), nil
	case strings.Contains(queryLower, "top") || strings.Contains(queryLower, "highest"):
		return generateTopSQL(queryLower, mainTable, table), nil
	default:
		return fmt.Sprintf("SELECT * FROM `%s` LIMIT %d", mainTable, defaultSelectLimit), nil
	}
}

// generateCountSQL 合成 COUNT 查询，命中已知部门名时追加部门过滤。
func generateCountSQL(queryLower, mainTable string, table *model.Table) string {
	sql := fmt.Sprintf("SELECT COUNT(*) AS count FROM `%s`", mainTable)
	for _, dept := range knownDepartments {
		if !strings.Contains(queryLower, dept) {
			continue
		}
		if col := resolveColumn(table, deptColumnPatterns); col != "" {
			sql += fmt.Sprintf(" WHERE LOWER(`%s`) = '%s'", col, dept)
		}
		break
	}
	return sql
}

// generateAverageSQL 合成工资均值查询，提到部门时按部门分组。
func generateAverageSQL(queryLower, mainTable string, table *model.Table) string {
	salaryCol := resolveColumn(table, salaryColumnPatterns)
	if salaryCol == "" {
		return fmt.Sprintf("SELECT * FROM `%s` LIMIT %d", mainTable, defaultSelectLimit)
	}
	deptCol := resolveColumn(table, deptColumnPatterns)
	if deptCol != "" && containsAnyPattern(queryLower, departmentTablePatterns) {
		return fmt.Sprintf("SELECT `%s`, AVG(`%s`) AS average_salary FROM `%s` GROUP BY `%s`",
			deptCol, salaryCol, mainTable, deptCol)
	}
	return fmt.Sprintf("SELECT AVG(`%s`) AS average_salary FROM `%s`", salaryCol, mainTable)
}

// generateListSQL 合成列表查询，带已解析的数值比较条件。
func generateListSQL(queryLower, mainTable string, table *model.Table, mapping *model.SchemaMapping) string {
	columns := "*"
	var names []string
	for _, ref := range mapping.SuggestedColumns {
		if ref.Table == mainTable {
			names = append(names, fmt.Sprintf("`%s`", ref.Column))
		}
	}
	if len(names) > 0 {
		columns = strings.Join(names, ", ")
	}

	sql := fmt.Sprintf("SELECT %s FROM `%s`", columns, mainTable)
	if where := buildFilterClause(queryLower, table, mapping.Filters); where != "" {
		sql += " WHERE " + where
	}
	return sql + fmt.Sprintf(" LIMIT %d", defaultSelectLimit)
}

// generateTopSQL 合成排名查询，按工资列降序取前 N 条。
func generateTopSQL(queryLower, mainTable string, table *model.Table) string {
	n := defaultTopN
	if m := topNPattern.FindStringSubmatch(queryLower); m != nil {
		if parsed, err := strconv.Atoi(m[1]); err == nil && parsed > 0 {
			n = parsed
		}
	}
	salaryCol := resolveColumn(table, salaryColumnPatterns)
	if salaryCol == "" {
		return fmt.Sprintf("SELECT * FROM `%s` LIMIT %d", mainTable, n)
	}
	return fmt.Sprintf("SELECT * FROM `%s` ORDER BY `%s` DESC LIMIT %d", mainTable, salaryCol, n)
}

// buildFilterClause 把数值比较条件拼成 WHERE 子句。
// 数值必须先通过整数解析才允许进入语句，不合法的条件被整个丢弃。
func buildFilterClause(queryLower string, table *model.Table, filters []model.ComparisonFilter) string {
	if len(filters) == 0 {
		return ""
	}
	column := ""
	if containsAnyPattern(queryLower, salaryColumnPatterns) {
		column = resolveColumn(table, salaryColumnPatterns)
	}
	if column == "" {
		return ""
	}

	operators := map[string]string{"gt": ">", "lt": "<", "eq": "="}
	var parts []string
	for _, filter := range filters {
		value, err := strconv.Atoi(filter.Value)
		if err != nil {
			continue
		}
		op, ok := operators[filter.Operator]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("`%s` %s %d", column, op, value))
	}
	return strings.Join(parts, " AND ")
}

// resolveColumn 在表内找第一个名字包含任一模式的列。
func resolveColumn(table *model.Table, patterns []string) string {
	if table == nil {
		return ""
	}
	for _, col := range table.Columns {
		colLower := strings.ToLower(col.Name)
		for _, pattern := range patterns {
			if strings.Contains(colLower, pattern) {
				return col.Name
			}
		}
	}
	return ""
}

// ValidateQuery 对原始查询文本做安全校验。校验在任何执行之前进行，
// 针对的是用户输入的自由文本，与合成出的 SQL 无关。
func ValidateQuery(query string) model.ValidationResult {
	result := model.ValidationResult{IsValid: true, Warnings: []string{}, Errors: []string{}}
	upper := strings.ToUpper(query)

	for _, keyword := range dangerousKeywords {
		if strings.Contains(upper, keyword) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Dangerous operation detected: %s", keyword))
		}
	}
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(upper) {
			result.Errors = append(result.Errors, "Potential SQL injection pattern detected")
			break
		}
	}
	if len(query) > maxQueryLength {
		result.Warnings = append(result.Warnings, "Query is very long and may be slow")
	}
	if broadSelectPattern.MatchString(upper) {
		result.Warnings = append(result.Warnings, "Broad select with large limit may be slow")
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// OptimizeSQL 为没有行数上限的非聚合 SELECT 追加保守的 LIMIT。
func OptimizeSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return trimmed
	}
	if strings.Contains(upper, "LIMIT") || strings.Contains(upper, "GROUP BY") {
		return trimmed
	}
	for _, agg := range []string{"COUNT(", "AVG(", "SUM(", "MAX(", "MIN("} {
		if strings.Contains(upper, agg) {
			return trimmed
		}
	}
	return trimmed + fmt.Sprintf(" LIMIT %d", optimizeLimit)
}
