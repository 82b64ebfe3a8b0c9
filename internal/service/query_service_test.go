package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrquery-go/internal/model"
	"hrquery-go/pkg/cache"
)

func newTestQueryService(t *testing.T, store *fakeStore, withDocs bool) (QueryService, SchemaService, DocumentService) {
	t.Helper()
	var schemaSvc SchemaService
	if store != nil {
		schemaSvc = connectFake(t, store)
	} else {
		schemaSvc = NewSchemaService(nil)
	}

	docSvc := newTestDocService(&fakeEmbedder{})
	if withDocs {
		_, err := docSvc.ProcessDocument(context.Background(), model.RawFile{
			Filename: "resume.txt",
			Data:     []byte("python developer with five years of experience"),
		})
		require.NoError(t, err)
	}

	resultCache := cache.New(100, time.Minute)
	return NewQueryService(schemaSvc, docSvc, resultCache, time.Minute, 5), schemaSvc, docSvc
}

func TestProcessRejectsDangerousQueryBeforeExecution(t *testing.T) {
	store := newFakeHRStore()
	svc, _, _ := newTestQueryService(t, store, false)
	executedBefore := len(store.executedSQL)

	result := svc.Process(context.Background(), "DROP TABLE employees")
	assert.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, "DROP")
	assert.Len(t, store.executedSQL, executedBefore, "被拒绝的查询不允许触达数据源")
}

func TestProcessSQLPath(t *testing.T) {
	store := newFakeHRStore()
	store.queryRows = []map[string]interface{}{{"count": int64(42)}}
	svc, _, _ := newTestQueryService(t, store, false)

	result := svc.Process(context.Background(), "How many employees do we have?")
	require.Empty(t, result.Error)
	assert.Equal(t, model.QuerySQL, result.QueryType)
	assert.Contains(t, result.SQLQuery, "COUNT(*)")
	assert.Equal(t, []string{"database"}, result.Sources)
	require.Len(t, result.Rows, 1)
	assert.False(t, result.CacheHit)
}

func TestProcessServesSecondCallFromCache(t *testing.T) {
	store := newFakeHRStore()
	store.queryRows = []map[string]interface{}{{"count": int64(42)}}
	svc, _, _ := newTestQueryService(t, store, false)

	first := svc.Process(context.Background(), "How many employees do we have?")
	require.Empty(t, first.Error)
	executed := len(store.executedSQL)

	second := svc.Process(context.Background(), "how many EMPLOYEES do we have?")
	assert.True(t, second.CacheHit, "归一化后相同的查询应当命中缓存")
	assert.Len(t, store.executedSQL, executed, "缓存命中不允许再次触达数据源")
}

func TestProcessDocumentPath(t *testing.T) {
	svc, _, _ := newTestQueryService(t, nil, true)

	result := svc.Process(context.Background(), "Find resumes with Python skills")
	require.Empty(t, result.Error)
	assert.Equal(t, model.QueryDocument, result.QueryType)
	assert.Equal(t, []string{"documents"}, result.Sources)
	assert.NotEmpty(t, result.Hits)
}

func TestProcessHybridKeepsBranchErrorsSeparate(t *testing.T) {
	// 没有接入数据源：SQL 分支失败，文档分支照常工作
	svc, _, _ := newTestQueryService(t, nil, true)

	result := svc.Process(context.Background(), "Developers with experience in the Engineering department")
	assert.Equal(t, model.QueryHybrid, result.QueryType)
	require.NotNil(t, result.Hybrid)
	assert.NotEmpty(t, result.Hybrid.SQLError)
	assert.Empty(t, result.Hybrid.DocError)
	assert.NotEmpty(t, result.Hybrid.DocHits)
	assert.Equal(t, []string{"documents"}, result.Sources)
	assert.Empty(t, result.Error, "单个分支失败不使整体失败")
}

func TestProcessHybridBothBranches(t *testing.T) {
	store := newFakeHRStore()
	store.queryRows = []map[string]interface{}{{"id": int64(1)}}
	svc, _, _ := newTestQueryService(t, store, true)

	result := svc.Process(context.Background(), "Developers with experience in the Engineering department")
	require.NotNil(t, result.Hybrid)
	assert.Empty(t, result.Hybrid.SQLError)
	assert.Empty(t, result.Hybrid.DocError)
	assert.ElementsMatch(t, []string{"database", "documents"}, result.Sources)
}

func TestProcessGeneralFallsBackToDocuments(t *testing.T) {
	svc, _, _ := newTestQueryService(t, nil, true)

	// 无信号查询：SQL 分支因未接入数据源失败，回退到文档检索
	result := svc.Process(context.Background(), "anything about golang")
	assert.Equal(t, model.QueryGeneral, result.QueryType)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.Hits)
}

func TestProcessGeneralPrefersDocumentsWhenSQLHasNoRows(t *testing.T) {
	// 数据源已接入但查不到行：兜底分支继续回退到文档检索
	store := newFakeHRStore()
	svc, _, _ := newTestQueryService(t, store, true)

	result := svc.Process(context.Background(), "tell me about our workers")
	assert.Equal(t, model.QueryGeneral, result.QueryType)
	require.Empty(t, result.Error)
	assert.Empty(t, result.Rows)
	assert.NotEmpty(t, result.Hits)
	assert.Equal(t, []string{"documents"}, result.Sources)
}

func TestProcessGeneralWithNothingAvailable(t *testing.T) {
	svc, _, _ := newTestQueryService(t, nil, false)

	result := svc.Process(context.Background(), "hello there")
	assert.Equal(t, model.QueryGeneral, result.QueryType)
	assert.NotEmpty(t, result.Error, "没有任何可用分支时返回结构化错误")
	assert.NotNil(t, result.Sources)
}

func TestProcessRecordsHistory(t *testing.T) {
	store := newFakeHRStore()
	svc, _, _ := newTestQueryService(t, store, false)

	svc.Process(context.Background(), "How many employees do we have?")
	history := svc.History(10)
	require.NotEmpty(t, history)
	assert.Equal(t, "How many employees do we have?", history[0].Query)
}

func TestComplexityScoring(t *testing.T) {
	assert.Equal(t, model.ComplexityLow,
		scoreComplexity("list employees", "SELECT * FROM employees LIMIT 50", model.QuerySQL))
	assert.Equal(t, model.ComplexityMedium,
		scoreComplexity("average salary", "SELECT department, AVG(salary) FROM employees GROUP BY department", model.QuerySQL))
	assert.Equal(t, model.ComplexityHigh,
		scoreComplexity("a long query with many words about employees and departments joined together",
			"SELECT * FROM a JOIN b GROUP BY x", model.QueryHybrid))
}

func TestClearCache(t *testing.T) {
	store := newFakeHRStore()
	store.queryRows = []map[string]interface{}{{"count": int64(1)}}
	svc, _, _ := newTestQueryService(t, store, false)

	svc.Process(context.Background(), "How many employees do we have?")
	require.Greater(t, svc.CacheStats().Size, 0)

	svc.ClearCache()
	assert.Equal(t, 0, svc.CacheStats().Size)
}

func TestSuggestionsEmptyPartialReturnsStarters(t *testing.T) {
	svc, _, _ := newTestQueryService(t, nil, false)

	suggestions := svc.Suggestions("")
	require.Len(t, suggestions, 5)
	assert.Contains(t, suggestions, "How many employees do we have?")
	assert.Contains(t, suggestions, "Top 5 highest paid employees")
}

func TestSuggestionsCompletePartialMentioningTable(t *testing.T) {
	store := newFakeHRStore()
	svc, _, _ := newTestQueryService(t, store, false)

	suggestions := svc.Suggestions("show employees")
	assert.Contains(t, suggestions, "show employees in Engineering department")
	assert.Contains(t, suggestions, "show employees hired this year")
	assert.Contains(t, suggestions, "show employees with salary > 100000")
}

func TestSuggestionsDeriveFromCompensationColumns(t *testing.T) {
	store := newFakeHRStore()
	svc, _, _ := newTestQueryService(t, store, false)

	suggestions := svc.Suggestions("average salary")
	assert.Contains(t, suggestions, "Average salary by department")
	assert.Contains(t, suggestions, "Employees with salary > 100000")
	assert.LessOrEqual(t, len(suggestions), 5)
}

func TestSuggestionsCappedAtFive(t *testing.T) {
	store := newFakeHRStore()
	svc, _, _ := newTestQueryService(t, store, false)

	assert.Len(t, svc.Suggestions("count"), 5)
}
