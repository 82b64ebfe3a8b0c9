package service

import (
	"context"
	"crypto/md5"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"hrquery-go/internal/model"
	"hrquery-go/pkg/embedding"
	"hrquery-go/pkg/log"
)

// DocumentService 接口定义了文档入库与语义检索的操作。
type DocumentService interface {
	// ProcessDocument 完成单个文件的提取、切分、向量化与登记。
	ProcessDocument(ctx context.Context, raw model.RawFile) (*model.Document, error)
	// ProcessDocuments 批量处理，单个文件失败不影响其余文件。
	ProcessDocuments(ctx context.Context, raws []model.RawFile) []model.IngestItemResult
	// Search 对已入库的片段做余弦相似度检索。
	Search(ctx context.Context, query string, topK int) ([]model.SearchHit, error)
	// Stats 返回文档库的统计信息。
	Stats() model.DocumentStats
	// Documents 返回已入库文档的快照，按入库顺序排列。
	Documents() []*model.Document
}

type documentService struct {
	mu   sync.RWMutex
	docs []*model.Document
	byID map[string]*model.Document
	// index 是全库共享的文本到向量映射，相同文本跨文档只向量化一次
	index map[string][]float32

	extractor *Extractor
	chunker   *Chunker
	embedder  embedding.Client
	topK      int
}

// NewDocumentService 创建 DocumentService 实例。
func NewDocumentService(extractor *Extractor, chunker *Chunker, embedder embedding.Client, topK int) DocumentService {
	if topK <= 0 {
		topK = 5
	}
	return &documentService{
		byID:      make(map[string]*model.Document),
		index:     make(map[string][]float32),
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		topK:      topK,
	}
}

// ProcessDocument 执行完整的入库流水线。
// 文档只有在全部片段就绪之后才登记进库，检索永远看不到半成品。
func (s *documentService) ProcessDocument(ctx context.Context, raw model.RawFile) (*model.Document, error) {
	log.Infof("[DocumentService] 开始处理文档: %s (%d bytes)", raw.Filename, len(raw.Data))

	content, fileType, err := s.extractor.Extract(ctx, raw)
	if err != nil {
		return nil, err
	}

	kind := ClassifyContent(content, fileType)
	chunks := s.chunker.Chunk(content, kind)
	if len(chunks) == 0 {
		return nil, &model.ExtractionError{
			Filename: raw.Filename,
			Err:      fmt.Errorf("切分结果为空"),
		}
	}

	doc := &model.Document{
		ID:          documentID(raw.Filename),
		Filename:    raw.Filename,
		Type:        fileType,
		Content:     content,
		Chunks:      chunks,
		ChunkCount:  len(chunks),
		SizeBytes:   int64(len(raw.Data)),
		ProcessedAt: time.Now(),
	}

	s.mu.Lock()
	s.docs = append(s.docs, doc)
	s.byID[doc.ID] = doc
	s.mu.Unlock()

	s.embedPending(ctx)

	log.Infof("[DocumentService] 文档处理完成: %s, %d 个片段", raw.Filename, len(chunks))
	return doc, nil
}

// ProcessDocuments 逐个处理，失败的文件记录错误后继续。
func (s *documentService) ProcessDocuments(ctx context.Context, raws []model.RawFile) []model.IngestItemResult {
	results := make([]model.IngestItemResult, 0, len(raws))
	for _, raw := range raws {
		doc, err := s.ProcessDocument(ctx, raw)
		if err != nil {
			log.Errorf("[DocumentService] 文档处理失败: %s: %v", raw.Filename, err)
			results = append(results, model.IngestItemResult{
				Filename: raw.Filename,
				Status:   "failed",
				Error:    err.Error(),
			})
			continue
		}
		results = append(results, model.IngestItemResult{
			Filename: raw.Filename,
			Status:   "success",
			Chunks:   doc.ChunkCount,
			Type:     doc.Type,
		})
	}
	return results
}

// embedPending 汇集全库所有尚未进入共享索引的片段文本并批量向量化。
// 相同文本跨文档只计算一次；之前批次失败遗留的文本会在下一次入库时重试。
// 向量化整体失败被容忍：未索引的片段暂不参与检索，入库照常完成。
func (s *documentService) embedPending(ctx context.Context) {
	if s.embedder == nil {
		return
	}

	s.mu.RLock()
	var pending []string
	seen := make(map[string]bool)
	for _, doc := range s.docs {
		for _, chunk := range doc.Chunks {
			if seen[chunk.Text] {
				continue
			}
			seen[chunk.Text] = true
			if _, ok := s.index[chunk.Text]; !ok {
				pending = append(pending, chunk.Text)
			}
		}
	}
	s.mu.RUnlock()

	if len(pending) == 0 {
		return
	}

	vectors, err := s.embedder.CreateEmbeddings(ctx, pending)
	if err != nil {
		log.Warnf("[DocumentService] 批量向量化失败, 未索引片段暂不参与检索: %v", err)
		return
	}

	s.mu.Lock()
	for i, text := range pending {
		s.index[text] = vectors[i]
	}
	for _, doc := range s.docs {
		for i := range doc.Chunks {
			if len(doc.Chunks[i].Embedding) == 0 {
				doc.Chunks[i].Embedding = s.index[doc.Chunks[i].Text]
			}
		}
	}
	s.mu.Unlock()
	log.Infof("[DocumentService] 新增 %d 条向量", len(vectors))
}

// Search 对全部已索引的片段做余弦相似度检索，结果按相似度降序，
// 相同得分保持入库顺序。索引为空时直接返回空切片，查询文本不做向量化。
func (s *documentService) Search(ctx context.Context, query string, topK int) ([]model.SearchHit, error) {
	if topK <= 0 {
		topK = s.topK
	}
	hits := []model.SearchHit{}
	if s.embedder == nil {
		return hits, nil
	}

	s.mu.RLock()
	empty := len(s.index) == 0
	s.mu.RUnlock()
	if empty {
		return hits, nil
	}

	queryVec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	s.mu.RLock()
	for _, doc := range s.docs {
		for _, chunk := range doc.Chunks {
			vec, ok := s.index[chunk.Text]
			if !ok {
				continue
			}
			hits = append(hits, model.SearchHit{
				DocID:      doc.ID,
				Filename:   doc.Filename,
				ChunkText:  chunk.Text,
				ChunkKind:  chunk.Kind,
				Similarity: cosineSimilarity(queryVec, vec),
				DocType:    doc.Type,
			})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// cosineSimilarity 计算余弦相似度，任一向量为零向量时返回 0。
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (s *documentService) Stats() model.DocumentStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.DocumentStats{
		TotalDocuments: len(s.docs),
		DocumentTypes:  make(map[model.FileType]int),
	}
	stats.EmbeddingsCached = len(s.index)
	for _, doc := range s.docs {
		stats.TotalChunks += doc.ChunkCount
		stats.DocumentTypes[doc.Type]++
	}
	if stats.TotalDocuments > 0 {
		stats.AvgChunksPerDoc = float64(stats.TotalChunks) / float64(stats.TotalDocuments)
	}
	return stats
}

func (s *documentService) Documents() []*model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// documentID 生成稳定前缀加时间戳的文档标识。
func documentID(filename string) string {
	sum := md5.Sum([]byte(filename))
	return fmt.Sprintf("%x_%d", sum[:4], time.Now().UnixNano())
}
