package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrquery-go/internal/model"
)

// fakeEmbedder 用关键字命中构造确定性的向量，避免测试依赖外部服务。
type fakeEmbedder struct {
	failAll bool
	calls   int
}

var embedderKeywords = []string{"python", "golang", "contract", "salary"}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.failAll {
		return nil, fmt.Errorf("embedding backend unavailable")
	}
	f.calls++
	vec := make([]float32, len(embedderKeywords)+1)
	lower := strings.ToLower(text)
	for i, kw := range embedderKeywords {
		if strings.Contains(lower, kw) {
			vec[i] = 1
		}
	}
	vec[len(embedderKeywords)] = 0.1
	return vec, nil
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failAll {
		return nil, fmt.Errorf("embedding backend unavailable")
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := f.CreateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func newTestDocService(embedder *fakeEmbedder) DocumentService {
	return NewDocumentService(NewExtractor(nil), NewChunker(512, 50), embedder, 5)
}

func TestSearchEmptyIndexReturnsEmptySlice(t *testing.T) {
	svc := newTestDocService(&fakeEmbedder{})
	hits, err := svc.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestProcessDocumentRegistersChunks(t *testing.T) {
	svc := newTestDocService(&fakeEmbedder{})
	doc, err := svc.ProcessDocument(context.Background(), model.RawFile{
		Filename: "note.txt",
		Data:     []byte("a short note about python services"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, model.FileTxt, doc.Type)
	require.Equal(t, 1, doc.ChunkCount)
	assert.NotEmpty(t, doc.Chunks[0].Embedding)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	svc := newTestDocService(&fakeEmbedder{})
	ctx := context.Background()

	_, err := svc.ProcessDocument(ctx, model.RawFile{
		Filename: "python_dev.txt",
		Data:     []byte("engineer who writes python every day"),
	})
	require.NoError(t, err)
	_, err = svc.ProcessDocument(ctx, model.RawFile{
		Filename: "legal.txt",
		Data:     []byte("a contract about office furniture"),
	})
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "looking for python experience", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "python_dev.txt", hits[0].Filename)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestSearchHonorsTopK(t *testing.T) {
	svc := newTestDocService(&fakeEmbedder{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.ProcessDocument(ctx, model.RawFile{
			Filename: fmt.Sprintf("doc%d.txt", i),
			Data:     []byte(fmt.Sprintf("salary note number %d", i)),
		})
		require.NoError(t, err)
	}

	hits, err := svc.Search(ctx, "salary", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestEmbeddingFailureToleratedOnIngest(t *testing.T) {
	embedder := &fakeEmbedder{failAll: true}
	svc := newTestDocService(embedder)
	ctx := context.Background()

	doc, err := svc.ProcessDocument(ctx, model.RawFile{
		Filename: "note.txt",
		Data:     []byte("content that cannot be embedded"),
	})
	require.NoError(t, err, "向量化失败不应阻止文档入库")
	assert.Equal(t, 1, svc.Stats().TotalDocuments)
	assert.Empty(t, doc.Chunks[0].Embedding)
}

func TestIdenticalTextEmbeddedOnceAcrossDocuments(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestDocService(embedder)
	ctx := context.Background()
	content := []byte("shared onboarding checklist for golang teams")

	_, err := svc.ProcessDocument(ctx, model.RawFile{Filename: "a.txt", Data: content})
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	_, err = svc.ProcessDocument(ctx, model.RawFile{Filename: "b.txt", Data: content})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, embedder.calls, "相同文本跨文档只允许计算一次向量")

	hits, err := svc.Search(ctx, "golang", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 2, "两份文档的片段共享同一条向量, 都应可检索")
}

func TestUnindexedChunksRetriedOnNextIngest(t *testing.T) {
	embedder := &fakeEmbedder{failAll: true}
	svc := newTestDocService(embedder)
	ctx := context.Background()

	_, err := svc.ProcessDocument(ctx, model.RawFile{
		Filename: "python_dev.txt",
		Data:     []byte("engineer who writes python every day"),
	})
	require.NoError(t, err)

	// 后端恢复后, 下一次入库把之前失败的文本一并补进索引
	embedder.failAll = false
	_, err = svc.ProcessDocument(ctx, model.RawFile{
		Filename: "furniture.txt",
		Data:     []byte("a note about office chairs"),
	})
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "looking for python experience", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "python_dev.txt", hits[0].Filename)
}

func TestSearchEmptyIndexSkipsQueryEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{failAll: true}
	svc := newTestDocService(embedder)

	hits, err := svc.Search(context.Background(), "anything", 5)
	require.NoError(t, err, "空索引直接返回空结果, 不触达向量化后端")
	assert.Empty(t, hits)
}

func TestProcessDocumentsIsolatesFailures(t *testing.T) {
	svc := newTestDocService(&fakeEmbedder{})
	results := svc.ProcessDocuments(context.Background(), []model.RawFile{
		{Filename: "good.txt", Data: []byte("a perfectly fine note")},
		{Filename: "broken.pdf", Data: []byte("not a real pdf payload")},
		{Filename: "also_good.txt", Data: []byte("another fine note")},
	})

	require.Len(t, results, 3)
	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, "failed", results[1].Status)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, "success", results[2].Status)
	assert.Equal(t, 2, svc.Stats().TotalDocuments)
}

func TestStats(t *testing.T) {
	svc := newTestDocService(&fakeEmbedder{})
	ctx := context.Background()

	_, err := svc.ProcessDocument(ctx, model.RawFile{
		Filename: "a.txt", Data: []byte("first note"),
	})
	require.NoError(t, err)
	_, err = svc.ProcessDocument(ctx, model.RawFile{
		Filename: "b.csv", Data: []byte("id,name\n1,alice\n"),
	})
	require.NoError(t, err)

	stats := svc.Stats()
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 1, stats.DocumentTypes[model.FileTxt])
	assert.Equal(t, 1, stats.DocumentTypes[model.FileCSV])
	assert.Greater(t, stats.TotalChunks, 0)
	assert.Greater(t, stats.AvgChunksPerDoc, 0.0)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
}
