package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/pkg/log"
	"pai-policy-qa/pkg/tika"
)

var supportedExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".docx": true,
}

// CheckExtension 校验上传文件的扩展名，只接受 .txt / .pdf / .docx。
func CheckExtension(filename string) error {
	if !supportedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return errs.Validation("Unsupported file type. Please upload .txt, .pdf, or .docx")
	}
	return nil
}

// Extractor 从上传的原始字节中提取纯文本。
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

type fileExtractor struct {
	tikaClient *tika.Client
}

// NewExtractor 创建文本提取器。tikaClient 不为 nil 时 pdf/docx 交给 Tika 服务器解析，
// 否则使用内置解析器。
func NewExtractor(tikaClient *tika.Client) Extractor {
	return &fileExtractor{tikaClient: tikaClient}
}

func (e *fileExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if err := CheckExtension(filename); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))

	// 纯文本按 utf-8 解码，非法字节直接丢弃
	if ext == ".txt" {
		return strings.ToValidUTF8(string(data), ""), nil
	}

	if e.tikaClient != nil {
		log.Infof("[Extractor] 使用 Tika 提取文本, FileName: %s", filename)
		text, err := e.tikaClient.ExtractText(ctx, bytes.NewReader(data), filename)
		if err != nil {
			return "", errs.Wrap(errs.KindIO, err, fmt.Sprintf("Failed to read %s file", strings.ToUpper(ext[1:])))
		}
		return strings.TrimSpace(text), nil
	}

	switch ext {
	case ".pdf":
		text, err := extractPDF(ctx, data)
		if err != nil {
			return "", errs.Wrap(errs.KindIO, err, "Failed to read PDF file")
		}
		return text, nil
	default:
		text, err := extractDOCX(data)
		if err != nil {
			return "", errs.Wrap(errs.KindIO, err, "Failed to read DOCX file")
		}
		return text, nil
	}
}

// extractPDF 逐页提取文本，页与页之间以换行分隔。
// /Contents 不是内容流（或内容流数组）的页按空页处理：解释器只在 io.EOF 时停止，其余读错误会让它空转。
func extractPDF(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("PDF 结构损坏: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageStr, err := pageText(page)
		if err != nil {
			return "", fmt.Errorf("解析 PDF 第 %d 页失败: %w", i, err)
		}
		pages = append(pages, pageStr)
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

func pageText(page pdf.Page) (string, error) {
	contents := page.V.Key("Contents")
	switch contents.Kind() {
	case pdf.Stream:
		return page.GetPlainText(nil)
	case pdf.Array:
		for i := 0; i < contents.Len(); i++ {
			if contents.Index(i).Kind() != pdf.Stream {
				log.Warnf("[Extractor] PDF 内容流数组第 %d 项不是流, 跳过该页", i)
				return "", nil
			}
		}
		return joinContentText(page.Content().Text), nil
	default:
		return "", nil
	}
}

// joinContentText 按字形顺序拼接文本，基线变化处换行。
func joinContentText(glyphs []pdf.Text) string {
	var b strings.Builder
	for i, g := range glyphs {
		if i > 0 && g.Y != glyphs[i-1].Y {
			b.WriteByte('\n')
		}
		b.WriteString(g.S)
	}
	return b.String()
}

// extractDOCX 读取 word/document.xml，按段落拼接 <w:t> 中的文本。
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			if body, err = f.Open(); err != nil {
				return "", err
			}
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("找不到 word/document.xml")
	}
	defer body.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	dec := xml.NewDecoder(body)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}
