package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrquery-go/internal/model"
	"hrquery-go/internal/repository"
)

// fakeStore 是内存中的 StoreRepository 实现，供发现流程的测试使用。
type fakeStore struct {
	tables      []string
	columns     map[string][]model.Column
	primaryKeys map[string][]string
	foreignKeys map[string][]model.ForeignKey
	rowCounts   map[string]int64
	countErrors map[string]bool

	executedSQL []string
	queryRows   []map[string]interface{}
	queryErr    error
	closed      bool
}

func (f *fakeStore) DatabaseType() string { return "mysql" }

func (f *fakeStore) Tables(ctx context.Context) ([]string, error) { return f.tables, nil }

func (f *fakeStore) Columns(ctx context.Context, table string) ([]model.Column, error) {
	return f.columns[table], nil
}

func (f *fakeStore) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	return f.primaryKeys[table], nil
}

func (f *fakeStore) ForeignKeys(ctx context.Context, table string) ([]model.ForeignKey, error) {
	return f.foreignKeys[table], nil
}

func (f *fakeStore) CountRows(ctx context.Context, table string) (int64, error) {
	if f.countErrors[table] {
		return 0, fmt.Errorf("count failed")
	}
	return f.rowCounts[table], nil
}

func (f *fakeStore) Query(ctx context.Context, query string) ([]map[string]interface{}, error) {
	f.executedSQL = append(f.executedSQL, query)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryRows, nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

func newFakeHRStore() *fakeStore {
	cols := func(names ...string) []model.Column {
		out := make([]model.Column, 0, len(names))
		for _, n := range names {
			out = append(out, model.Column{Name: n, Type: "varchar"})
		}
		return out
	}
	return &fakeStore{
		tables: []string{"employees", "departments", "payroll", "documents", "audit_log"},
		columns: map[string][]model.Column{
			"employees":   cols("id", "name", "department", "salary", "dept_id", "hire_date"),
			"departments": cols("id", "name"),
			"payroll":     cols("id", "employee_id", "pay_amount"),
			"documents":   cols("id", "title"),
			"audit_log":   cols("id", "action"),
		},
		primaryKeys: map[string][]string{
			"employees":   {"id"},
			"departments": {"id"},
			"payroll":     {"id"},
			"documents":   {"id"},
			"audit_log":   {"id"},
		},
		foreignKeys: map[string][]model.ForeignKey{
			"employees": {{
				Columns:         []string{"dept_id"},
				ReferredTable:   "departments",
				ReferredColumns: []string{"id"},
			}},
		},
		rowCounts:   map[string]int64{"employees": 100, "payroll": 400, "documents": 12, "audit_log": 9000},
		countErrors: map[string]bool{"departments": true},
	}
}

func connectFake(t *testing.T, store *fakeStore) SchemaService {
	t.Helper()
	svc := NewSchemaService(func(dsn string) (repository.StoreRepository, error) {
		return store, nil
	})
	_, err := svc.Connect(context.Background(), "fake-dsn")
	require.NoError(t, err)
	return svc
}

func TestConnectClassifiesTablePurposes(t *testing.T) {
	svc := connectFake(t, newFakeHRStore())
	schema := svc.Current()
	require.NotNil(t, schema)

	want := map[string]model.TablePurpose{
		"employees":   model.PurposeEmployee,
		"departments": model.PurposeDepartment,
		"payroll":     model.PurposeCompensation,
		"documents":   model.PurposeDocument,
		"audit_log":   model.PurposeOther,
	}
	for name, purpose := range want {
		table := schema.TableByName(name)
		require.NotNil(t, table, "table %s missing", name)
		assert.Equal(t, purpose, table.Purpose, "table %s", name)
	}
}

func TestConnectToleratesRowCountFailure(t *testing.T) {
	svc := connectFake(t, newFakeHRStore())
	schema := svc.Current()

	assert.Nil(t, schema.TableByName("departments").RowCount)
	require.NotNil(t, schema.TableByName("employees").RowCount)
	assert.Equal(t, int64(100), *schema.TableByName("employees").RowCount)
}

func TestRelationshipDiscovery(t *testing.T) {
	svc := connectFake(t, newFakeHRStore())
	schema := svc.Current()

	var explicit, inferred []model.Relationship
	for _, rel := range schema.Relationships {
		switch rel.Kind {
		case model.RelationExplicit:
			explicit = append(explicit, rel)
		case model.RelationInferred:
			inferred = append(inferred, rel)
		}
	}

	require.Len(t, explicit, 1)
	assert.Equal(t, "employees", explicit[0].FromTable)
	assert.Equal(t, "departments", explicit[0].ToTable)
	assert.Equal(t, 1.0, explicit[0].Confidence)

	// payroll.employee_id 按命名推断指向 employees 的主键
	require.NotEmpty(t, inferred)
	found := false
	for _, rel := range inferred {
		if rel.FromTable == "payroll" && rel.ToTable == "employees" {
			found = true
			assert.Equal(t, []string{"employee_id"}, rel.FromColumns)
			assert.Equal(t, []string{"id"}, rel.ToColumns)
			assert.Less(t, rel.Confidence, 1.0)
		}
		// dept_id 已有显式外键，不允许再出现推断版本
		assert.False(t, rel.FromTable == "employees" && rel.FromColumns[0] == "dept_id",
			"explicit foreign key must suppress inference")
	}
	assert.True(t, found)
}

func TestRelationshipsHaveNoDuplicates(t *testing.T) {
	svc := connectFake(t, newFakeHRStore())

	seen := make(map[string]bool)
	for _, rel := range svc.Current().Relationships {
		key := fmt.Sprintf("%s|%v|%s", rel.FromTable, rel.FromColumns, rel.Kind)
		assert.False(t, seen[key], "duplicate relationship: %s", key)
		seen[key] = true
	}
}

func TestInferRelationshipsByColumnSimilarity(t *testing.T) {
	tables := []model.Table{
		{Name: "employees", Columns: []model.Column{{Name: "project_id"}}, PrimaryKeys: []string{"id"}},
		{Name: "assignments", Columns: []model.Column{{Name: "project_id"}}, PrimaryKeys: []string{"id"}},
	}

	inferred := inferRelationships(tables, nil)
	require.NotEmpty(t, inferred)
	rel := inferred[0]
	assert.Equal(t, model.RelationInferred, rel.Kind)
	assert.GreaterOrEqual(t, rel.Confidence, columnSimilarityThreshold)
	assert.Less(t, rel.Confidence, 1.0)
}

func TestSemanticMappingRegistersSynonyms(t *testing.T) {
	svc := connectFake(t, newFakeHRStore())
	mapping := svc.Current().Mapping

	// salary/pay/compensation 全部指向同一类物理列
	assert.Equal(t, "employees", mapping.Tables["staff"])
	assert.Equal(t, "employees", mapping.Tables["employee"])
	assert.Contains(t, mapping.Columns["salary"], ".")
	assert.NotEmpty(t, mapping.Columns["pay"])
	assert.NotEmpty(t, mapping.Columns["compensation"])
}

func TestMapQueryExtractsAggregationsAndFilters(t *testing.T) {
	svc := connectFake(t, newFakeHRStore())
	schema := svc.Current()

	mapping := svc.MapNaturalLanguageToSchema("How many employees earn over 50000?", schema)
	assert.Contains(t, mapping.SuggestedTables, "employees")
	assert.Contains(t, mapping.Aggregations, "count")
	require.Len(t, mapping.Filters, 1)
	assert.Equal(t, "gt", mapping.Filters[0].Operator)
	assert.Equal(t, "50000", mapping.Filters[0].Value)
}

func TestMapQueryFallsBackToEmployeeTables(t *testing.T) {
	svc := connectFake(t, newFakeHRStore())
	schema := svc.Current()

	mapping := svc.MapNaturalLanguageToSchema("xyzzy quux", schema)
	assert.Equal(t, []string{"employees"}, mapping.SuggestedTables)
}

func TestMapQueryFallbackOrdersByRowCount(t *testing.T) {
	rows := func(n int64) *int64 { return &n }
	schema := &model.SchemaModel{Tables: []model.Table{
		{Name: "alpha", Purpose: model.PurposeOther, RowCount: rows(10)},
		{Name: "beta", Purpose: model.PurposeOther, RowCount: rows(500)},
		{Name: "gamma", Purpose: model.PurposeOther, RowCount: rows(50)},
		{Name: "delta", Purpose: model.PurposeOther},
	}}

	svc := NewSchemaService(nil)
	mapping := svc.MapNaturalLanguageToSchema("xyzzy", schema)
	assert.Equal(t, []string{"beta", "gamma", "alpha"}, mapping.SuggestedTables)
}

func TestMapQueryIsDeterministic(t *testing.T) {
	svc := connectFake(t, newFakeHRStore())
	schema := svc.Current()

	query := "average salary by department for staff"
	first := svc.MapNaturalLanguageToSchema(query, schema)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, svc.MapNaturalLanguageToSchema(query, schema))
	}
}

func TestSampleDataRejectsUnknownTable(t *testing.T) {
	store := newFakeHRStore()
	svc := connectFake(t, store)

	_, err := svc.SampleData(context.Background(), "no_such_table", 5)
	assert.Error(t, err)
	assert.Empty(t, store.executedSQL)
}

func TestSampleDataQueriesKnownTable(t *testing.T) {
	store := newFakeHRStore()
	store.queryRows = []map[string]interface{}{{"id": 1}}
	svc := connectFake(t, store)

	rows, err := svc.SampleData(context.Background(), "employees", 3)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	require.Len(t, store.executedSQL, 1)
	assert.Equal(t, "SELECT * FROM `employees` LIMIT 3", store.executedSQL[0])
}

func TestReconnectReplacesModelAndClosesOldStore(t *testing.T) {
	first := newFakeHRStore()
	second := &fakeStore{
		tables:      []string{"people"},
		columns:     map[string][]model.Column{"people": {{Name: "id"}}},
		primaryKeys: map[string][]string{"people": {"id"}},
		foreignKeys: map[string][]model.ForeignKey{},
		rowCounts:   map[string]int64{"people": 1},
	}

	stores := []*fakeStore{first, second}
	i := 0
	svc := NewSchemaService(func(dsn string) (repository.StoreRepository, error) {
		s := stores[i]
		i++
		return s, nil
	})

	_, err := svc.Connect(context.Background(), "dsn-1")
	require.NoError(t, err)
	_, err = svc.Connect(context.Background(), "dsn-2")
	require.NoError(t, err)

	assert.True(t, first.closed, "旧的数据源连接应当被关闭")
	assert.False(t, second.closed)
	require.Len(t, svc.Current().Tables, 1)
	assert.Equal(t, "people", svc.Current().Tables[0].Name)
}
