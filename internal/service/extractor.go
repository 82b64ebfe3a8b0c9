package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"hrquery-go/internal/model"
	"hrquery-go/pkg/log"
	"hrquery-go/pkg/tika"
)

// csvSampleRows 是 CSV 摘要中携带的样本行数。
const csvSampleRows = 5

// Extractor 负责从各类文件格式中提取纯文本。
type Extractor struct {
	tika *tika.Client
}

// NewExtractor 创建文本提取器。tika 为 nil 时只使用本地解析路径。
func NewExtractor(tikaClient *tika.Client) *Extractor {
	return &Extractor{tika: tikaClient}
}

// DetectFileType 根据扩展名判定文件类型，大小写不敏感。
func DetectFileType(filename string) model.FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return model.FilePDF
	case ".docx", ".doc":
		return model.FileDocx
	case ".txt", ".md":
		return model.FileTxt
	case ".csv":
		return model.FileCSV
	case ".xlsx", ".xls":
		return model.FileExcel
	default:
		return model.FileUnknown
	}
}

// Extract 提取文件的纯文本内容。
func (e *Extractor) Extract(ctx context.Context, raw model.RawFile) (string, model.FileType, error) {
	fileType := DetectFileType(raw.Filename)

	var content string
	var err error
	switch fileType {
	case model.FilePDF:
		content, err = e.extractPDF(ctx, raw)
	case model.FileDocx, model.FileExcel:
		content, err = e.extractWithTika(ctx, raw)
	case model.FileTxt:
		content, err = decodeText(raw)
	case model.FileCSV:
		content, err = summarizeCSV(raw)
	default:
		// 未识别的扩展名按纯文本处理
		content, err = decodeText(raw)
	}
	if err != nil {
		return "", fileType, err
	}
	if strings.TrimSpace(content) == "" {
		return "", fileType, &model.ExtractionError{
			Filename: raw.Filename,
			Err:      fmt.Errorf("提取结果为空"),
		}
	}
	return content, fileType, nil
}

// extractPDF 逐页提取 PDF 文本，本地解析失败时回退到 Tika。
func (e *Extractor) extractPDF(ctx context.Context, raw model.RawFile) (string, error) {
	content, err := extractPDFNative(raw.Data)
	if err == nil && strings.TrimSpace(content) != "" {
		return content, nil
	}
	log.Warnf("[Extractor] PDF 本地解析失败, 尝试备用方案: %s: %v", raw.Filename, err)
	return e.extractWithTika(ctx, raw)
}

func extractPDFNative(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 PDF 失败: %w", err)
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// 单页失败不终止整份文档的提取
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func (e *Extractor) extractWithTika(ctx context.Context, raw model.RawFile) (string, error) {
	if e.tika == nil {
		return "", &model.ExtractionError{
			Filename: raw.Filename,
			Err:      fmt.Errorf("文本提取服务不可用"),
		}
	}
	content, err := e.tika.ExtractText(ctx, bytes.NewReader(raw.Data), raw.Filename)
	if err != nil {
		return "", &model.ExtractionError{Filename: raw.Filename, Err: err}
	}
	return content, nil
}

// textEncodings 是纯文本解码的候选编码阶梯，按序尝试。
var textEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// decodeText 按候选编码阶梯解码纯文本，全部失败时返回 DecodeError。
func decodeText(raw model.RawFile) (string, error) {
	if utf8.Valid(raw.Data) {
		return string(raw.Data), nil
	}
	var tried []string
	for _, candidate := range textEncodings {
		tried = append(tried, candidate.name)
		if candidate.name == "utf-8" {
			continue
		}
		decoded, err := candidate.enc.NewDecoder().Bytes(raw.Data)
		if err != nil {
			continue
		}
		return string(decoded), nil
	}
	return "", &model.DecodeError{Filename: raw.Filename, Encodings: tried}
}

// summarizeCSV 把 CSV 解析为结构化摘要文本：规模、列名和样本行。
func summarizeCSV(raw model.RawFile) (string, error) {
	content, err := decodeText(raw)
	if err != nil {
		return "", err
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return "", &model.ExtractionError{Filename: raw.Filename, Err: err}
	}
	if len(records) == 0 {
		return "", &model.ExtractionError{
			Filename: raw.Filename,
			Err:      fmt.Errorf("CSV 文件为空"),
		}
	}

	header := records[0]
	dataRows := records[1:]

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("CSV file with %d rows and %d columns.\n", len(dataRows), len(header)))
	builder.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(header, ", ")))
	builder.WriteString("Sample data:\n")
	for i, row := range dataRows {
		if i >= csvSampleRows {
			break
		}
		builder.WriteString(strings.Join(row, ", "))
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
