package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"hrquery-go/internal/model"
)

// contractClauseMinChars 是合同条款在标记处允许切分的最小长度。
const contractClauseMinChars = 100

// resumeSectionPattern 识别简历的段落标题行。
var resumeSectionPattern = regexp.MustCompile(
	`(?i)^\s*(summary|objective|experience|employment|education|skills|projects|certifications|qualifications|references)\s*:?\s*$`)

// contractClauseMarkers 识别合同条款的起始标记。
var contractClauseMarkers = []*regexp.Regexp{
	regexp.MustCompile(`^\d+\.\s+`),
	regexp.MustCompile(`^\([a-z]\)\s+`),
	regexp.MustCompile(`(?i)^article\s+\d+`),
	regexp.MustCompile(`(?i)^section\s+\d+`),
}

// ClassifyContent 判定内容的性质以选择切分策略。
// CSV 固定走表格策略；其余按指示词计数，达到阈值才认定类别。
func ClassifyContent(content string, fileType model.FileType) model.ContentKind {
	if fileType == model.FileCSV {
		return model.KindCSVSection
	}
	contentLower := strings.ToLower(content)

	if countIndicators(contentLower, resumeIndicators) >= contentKindThreshold {
		return model.KindResume
	}
	if countIndicators(contentLower, contractIndicators) >= contentKindThreshold {
		return model.KindContract
	}
	return model.KindGeneric
}

// Chunker 按内容性质把文本切分为带标签的片段。
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker 创建切分器，非法参数回落到默认值。
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 50
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk 按内容性质选择切分策略。同样的输入永远产出同样的片段序列。
func (c *Chunker) Chunk(content string, kind model.ContentKind) []model.Chunk {
	switch kind {
	case model.KindCSVSection:
		return c.chunkCSV(content)
	case model.KindResume:
		return c.chunkResume(content)
	case model.KindContract:
		return c.chunkContract(content)
	default:
		return c.chunkParagraphs(content)
	}
}

// chunkCSV 按行累积到预算上限，保持行的完整性。
func (c *Chunker) chunkCSV(content string) []model.Chunk {
	var chunks []model.Chunk
	var buffer strings.Builder

	for _, line := range strings.Split(content, "\n") {
		if buffer.Len() > 0 && buffer.Len()+len(line)+1 > c.chunkSize {
			chunks = appendChunk(chunks, buffer.String(), model.KindCSVSection)
			buffer.Reset()
		}
		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
	}
	return appendChunk(chunks, buffer.String(), model.KindCSVSection)
}

// chunkResume 在段落标题处切分，片段带上所属段落标签；
// 单段超过两倍预算时强制切断。
func (c *Chunker) chunkResume(content string) []model.Chunk {
	var chunks []model.Chunk
	var buffer strings.Builder
	section := "general"

	for _, line := range strings.Split(content, "\n") {
		if m := resumeSectionPattern.FindStringSubmatch(line); m != nil {
			chunks = appendChunk(chunks, buffer.String(), resumeKind(section))
			buffer.Reset()
			section = strings.ToLower(m[1])
		}
		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)

		if buffer.Len() > 2*c.chunkSize {
			chunks = appendChunk(chunks, buffer.String(), resumeKind(section))
			buffer.Reset()
		}
	}
	return appendChunk(chunks, buffer.String(), resumeKind(section))
}

func resumeKind(section string) model.ContentKind {
	return model.ContentKind("resume_" + section)
}

// chunkContract 在条款标记处切分，过短的片段继续累积；
// 超过 1.5 倍预算时强制切断。
func (c *Chunker) chunkContract(content string) []model.Chunk {
	var chunks []model.Chunk
	var buffer strings.Builder

	for _, line := range strings.Split(content, "\n") {
		if buffer.Len() >= contractClauseMinChars && isClauseMarker(line) {
			chunks = appendChunk(chunks, buffer.String(), model.KindContract)
			buffer.Reset()
		}
		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)

		if buffer.Len() > c.chunkSize+c.chunkSize/2 {
			chunks = appendChunk(chunks, buffer.String(), model.KindContract)
			buffer.Reset()
		}
	}
	return appendChunk(chunks, buffer.String(), model.KindContract)
}

func isClauseMarker(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, marker := range contractClauseMarkers {
		if marker.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// chunkParagraphs 按空行分段累积到预算上限，片段之间携带尾部重叠。
func (c *Chunker) chunkParagraphs(content string) []model.Chunk {
	var chunks []model.Chunk
	buffer := ""

	for _, paragraph := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		if buffer != "" && len(buffer)+len(paragraph)+2 > c.chunkSize {
			chunks = appendChunk(chunks, buffer, model.KindParagraph)
			buffer = tailOverlap(buffer, c.overlap)
		}
		if buffer != "" {
			buffer += "\n\n"
		}
		buffer += paragraph
	}
	return appendChunk(chunks, buffer, model.KindParagraph)
}

// tailOverlap 取文本末尾的重叠片段，切点对齐到 rune 边界。
func tailOverlap(text string, overlap int) string {
	if overlap <= 0 || len(text) <= overlap {
		return text
	}
	cut := len(text) - overlap
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return text[cut:]
}

func appendChunk(chunks []model.Chunk, text string, kind model.ContentKind) []model.Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return chunks
	}
	return append(chunks, model.Chunk{
		Text:      trimmed,
		Position:  len(chunks),
		Kind:      kind,
		CharCount: utf8.RuneCountInString(trimmed),
		WordCount: len(strings.Fields(trimmed)),
	})
}
