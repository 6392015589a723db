package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pai-policy-qa/internal/errs"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildPDF 按顺序写出 1..n 号对象并生成准确的 xref 表。
func buildPDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func pdfStream(content string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
}

const pdfFont = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

// extractWithin 在限定时间内完成提取，否则判定为卡死。
func extractWithin(t *testing.T, data []byte, filename string) (string, error) {
	t.Helper()
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := NewExtractor(nil).Extract(context.Background(), data, filename)
		done <- result{text, err}
	}()
	select {
	case r := <-done:
		return r.text, r.err
	case <-time.After(5 * time.Second):
		t.Fatalf("extracting %s did not finish", filename)
		return "", nil
	}
}

func TestCheckExtension(t *testing.T) {
	assert.NoError(t, CheckExtension("Policy.TXT"))
	assert.NoError(t, CheckExtension("a.pdf"))
	assert.NoError(t, CheckExtension("a.docx"))

	err := CheckExtension("slides.pptx")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, "Unsupported file type. Please upload .txt, .pdf, or .docx", err.Error())
}

func TestExtract_TextDropsInvalidUTF8(t *testing.T) {
	text, err := NewExtractor(nil).Extract(context.Background(), []byte("leave\xff policy"), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "leave policy", text)
}

func TestExtract_DOCXParagraphs(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Q: What is </w:t></w:r><w:r><w:t>Foo?</w:t></w:r></w:p>
    <w:p><w:r><w:t>A: Bar</w:t></w:r></w:p>
  </w:body>
</w:document>`
	text, err := NewExtractor(nil).Extract(context.Background(), buildDOCX(t, doc), "faq.docx")
	require.NoError(t, err)
	assert.Equal(t, "Q: What is Foo?\nA: Bar", text)
}

func TestExtract_UnreadableFilesAreIOErrors(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), []byte("not a zip"), "broken.docx")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrIO)
	assert.Contains(t, err.Error(), "Failed to read DOCX file")

	_, err = NewExtractor(nil).Extract(context.Background(), []byte("not a pdf"), "broken.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrIO)
	assert.Contains(t, err.Error(), "Failed to read PDF file")
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), []byte("x"), "a.md")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestExtract_PDFPagesJoinedByNewline(t *testing.T) {
	data := buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 5 0 R] /Count 2 /Resources << /Font << /F1 7 0 R >> >> >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>",
		pdfStream("BT /F1 12 Tf 72 700 Td (Q: What is Foo?) Tj ET"),
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 6 0 R >>",
		pdfStream("BT /F1 12 Tf 72 700 Td (A: Bar) Tj ET"),
		pdfFont,
	)

	text, err := extractWithin(t, data, "faq.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Q: What is Foo?\nA: Bar", text)
}

func TestExtract_PDFContentsArray(t *testing.T) {
	data := buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /Resources << /Font << /F1 6 0 R >> >> >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents [4 0 R 5 0 R] >>",
		pdfStream("BT /F1 12 Tf 72 700 Td (Remote work) Tj ET"),
		pdfStream("BT /F1 12 Tf 72 680 Td (needs approval) Tj ET"),
		pdfFont,
	)

	text, err := extractWithin(t, data, "policy.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Remote work\nneeds approval", text)
}

func TestExtract_PDFMissingContentObjectDoesNotHang(t *testing.T) {
	// /Contents 指向不存在的 9 号对象
	data := buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 9 0 R >>",
	)

	text, err := extractWithin(t, data, "x.pdf")
	require.NoError(t, err)
	assert.Empty(t, text)

	// 数组中缺失的内容流同样按空页处理
	data = buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents [9 0 R] >>",
	)
	text, err = extractWithin(t, data, "y.pdf")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtract_PDFStopsOnCancelledContext(t *testing.T) {
	data := buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /Resources << /Font << /F1 5 0 R >> >> >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>",
		pdfStream("BT /F1 12 Tf 72 700 Td (Leave) Tj ET"),
		pdfFont,
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(nil).Extract(ctx, data, "leave.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrIO)
	assert.ErrorIs(t, err, context.Canceled)
}
