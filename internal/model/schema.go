package model

// TablePurpose 标记一张表承载的业务实体类型。
type TablePurpose string

const (
	PurposeEmployee     TablePurpose = "employee"
	PurposeDepartment   TablePurpose = "department"
	PurposeCompensation TablePurpose = "compensation"
	PurposeDocument     TablePurpose = "document"
	PurposeOther        TablePurpose = "other"
)

// RelationshipKind 区分外键元数据给出的关系与按命名启发式推断的关系。
type RelationshipKind string

const (
	RelationExplicit RelationshipKind = "explicit"
	RelationInferred RelationshipKind = "inferred"
)

// Column 描述一张表的单个列。
type Column struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default"`
}

// ForeignKey 描述一条外键约束。
type ForeignKey struct {
	Columns         []string `json:"columns"`
	ReferredTable   string   `json:"referred_table"`
	ReferredColumns []string `json:"referred_columns"`
}

// Table 是 schema 发现对一张表的完整描述。
// RowCount 为 nil 表示行数探测失败，该失败被容忍，不影响其余发现流程。
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
	RowCount    *int64       `json:"row_count"`
	Purpose     TablePurpose `json:"purpose"`
}

// Relationship 描述两张表之间的一条关系。
// 显式关系 Confidence 恒为 1.0；推断关系的 Confidence 严格小于 1.0。
type Relationship struct {
	FromTable   string           `json:"from_table"`
	FromColumns []string         `json:"from_columns"`
	ToTable     string           `json:"to_table"`
	ToColumns   []string         `json:"to_columns"`
	Kind        RelationshipKind `json:"type"`
	Confidence  float64          `json:"confidence"`
}

// SemanticMapping 将领域词汇映射到具体的 schema 元素。
// Columns 的值为 "table.column" 路径。多个列命中同一词条时后处理者覆盖前者，
// 这是参考行为中已知的歧义，保留而不私自修正。
type SemanticMapping struct {
	Tables  map[string]string `json:"tables"`
	Columns map[string]string `json:"columns"`
}

// SchemaModel 是一次 schema 发现的完整产物。
// 连接成功时整体构建，此后只读；重新连接时被整体替换，绝不原地修改。
type SchemaModel struct {
	Tables        []Table         `json:"tables"`
	Relationships []Relationship  `json:"relationships"`
	Mapping       SemanticMapping `json:"semantic_mapping"`
	DatabaseType  string          `json:"database_type"`
}

// TableByName 按名称查找表，不存在时返回 nil。
func (m *SchemaModel) TableByName(name string) *Table {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i]
		}
	}
	return nil
}

// ColumnRef 指向某张表的某个列。
type ColumnRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Type   string `json:"type"`
}

// ComparisonFilter 是从自由文本中提取的一个数值比较条件。
// Value 在生成 SQL 前必须通过严格的数字校验。
type ComparisonFilter struct {
	Operator string `json:"operator"` // gt / lt / eq
	Value    string `json:"value"`
}

// SchemaMapping 是把一条自然语言查询映射到 schema 后的结果。
type SchemaMapping struct {
	SuggestedTables  []string           `json:"suggested_tables"`
	SuggestedColumns []ColumnRef        `json:"suggested_columns"`
	Aggregations     []string           `json:"aggregations"`
	Filters          []ComparisonFilter `json:"filters"`
}
