package pipeline

import (
	"strings"
	"unicode"

	"pai-policy-qa/internal/errs"
	"pai-policy-qa/internal/model"
)

// 分块边界向前回退寻找空白字符的最大距离（按字符计）。
const boundaryLookback = 60

// Chunker 将长文本切分为有重叠、长度有上限的片段。
type Chunker struct {
	maxLen  int
	overlap int
}

// NewChunker 校验参数并创建 Chunker。要求 maxLen > 0 且 0 <= overlap < maxLen。
func NewChunker(maxLen, overlap int) (*Chunker, error) {
	if maxLen <= 0 {
		return nil, errs.Configuration("chunk max_len must be positive, got %d", maxLen)
	}
	if overlap < 0 || overlap >= maxLen {
		return nil, errs.Configuration("overlap must be smaller than max_len (overlap=%d, max_len=%d)", overlap, maxLen)
	}
	return &Chunker{maxLen: maxLen, overlap: overlap}, nil
}

// Split 从左到右滑动窗口切分文本。窗口未到文本末尾时，若最后 60 个字符内有空白，
// 边界回退到该空白处。结果按顺序返回，去除首尾空白，丢弃空片段。
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + c.maxLen
		if end > n {
			end = n
		}
		if end < n {
			if idx := lastSpace(runes[start:end]); idx > 0 && end-(start+idx) <= boundaryLookback {
				end = start + idx
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// Chunks 切分文本并附上来源文件名和序号。
func (c *Chunker) Chunks(text, filename string) []model.Chunk {
	parts := c.Split(text)
	chunks := make([]model.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, model.Chunk{Text: p, SourceFilename: filename, Index: i})
	}
	return chunks
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}
