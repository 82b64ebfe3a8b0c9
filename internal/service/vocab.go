// Package service 实现了查询引擎的核心业务逻辑。
package service

import "regexp"

// 本文件集中存放驱动启发式逻辑的词表。
// 词表是声明式数据，可独立测试和扩展，控制流不感知具体词条。

// entityPatterns 是领域实体的同义词词表，schema 语义映射的基础。
var entityPatterns = map[string][]string{
	"employee":   {"employee", "emp", "staff", "personnel", "worker"},
	"department": {"department", "dept", "division", "team"},
	"salary":     {"salary", "compensation", "pay", "wage"},
	"position":   {"position", "role", "title", "job"},
	"manager":    {"manager", "supervisor", "lead", "boss"},
	"date":       {"date", "time", "when", "day"},
}

// 表用途分类的名称词表，按固定优先级逐一匹配，首个命中即定论。
var (
	employeeTablePatterns   = []string{"employee", "emp", "staff", "personnel", "worker"}
	departmentTablePatterns = []string{"department", "dept", "division", "team"}
	compensationColumnHints = []string{"salary", "compensation", "pay", "wage"}
	documentTablePatterns   = []string{"document", "file"}
)

// 查询分类的三组互不重叠的关键字词表。
var (
	sqlIndicators = []string{
		"count", "average", "sum", "total", "max", "min",
		"salary", "department", "employee", "staff",
		"hired", "join date", "position", "role",
	}
	documentIndicators = []string{
		"resume", "cv", "skills", "experience",
		"python", "java", "programming", "developer",
		"review", "performance", "contract", "document",
	}
	hybridIndicators = []string{
		"with skills", "developers in", "engineers who",
		"employees with experience", "staff members with",
	}
)

// aggregationKeywords 把聚合操作映射到触发它的短语。
var aggregationKeywords = map[string][]string{
	"count":   {"count", "how many", "number of", "total"},
	"average": {"average", "avg", "mean"},
	"sum":     {"sum", "total", "combined"},
	"max":     {"maximum", "max", "highest", "most"},
	"min":     {"minimum", "min", "lowest", "least"},
}

// comparisonPatterns 从自由文本中提取数值比较条件。
var comparisonPatterns = []struct {
	Pattern  *regexp.Regexp
	Operator string
}{
	{regexp.MustCompile(`over (\d+)`), "gt"},
	{regexp.MustCompile(`above (\d+)`), "gt"},
	{regexp.MustCompile(`more than (\d+)`), "gt"},
	{regexp.MustCompile(`under (\d+)`), "lt"},
	{regexp.MustCompile(`below (\d+)`), "lt"},
	{regexp.MustCompile(`less than (\d+)`), "lt"},
	{regexp.MustCompile(`equals? (\d+)`), "eq"},
}

// 内容性质判定的指示词词表，计数达到阈值才认定类别。
var (
	resumeIndicators = []string{
		"experience", "education", "skills", "objective",
		"summary", "employment", "qualifications", "projects",
	}
	contractIndicators = []string{
		"agreement", "contract", "terms", "conditions",
		"whereas", "party", "clause", "section", "article",
	}
)

// contentKindThreshold 是指示词计数的认定阈值。
const contentKindThreshold = 3

// SQL 合成的列名解析词表。
var (
	salaryColumnPatterns = []string{"salary", "pay", "compensation"}
	deptColumnPatterns   = []string{"dept", "division"}
	nameColumnPatterns   = []string{"name"}
	dateColumnPatterns   = []string{"hire", "join", "start", "created"}
	knownDepartments     = []string{"engineering", "sales", "marketing", "hr"}
)

// 查询校验的黑名单。校验针对原始自由文本，独立于 SQL 合成。
var (
	dangerousKeywords = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE"}

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[';]--`),
		regexp.MustCompile(`UNION\s+SELECT`),
		regexp.MustCompile(`OR\s+1\s*=\s*1`),
		regexp.MustCompile(`AND\s+1\s*=\s*1`),
	}
)
