package pipeline

import (
	"regexp"
	"strings"

	"pai-policy-qa/internal/model"
)

// QADocumentMinPairs 是判定为问答文档所需的最少问答对数量。
const QADocumentMinPairs = 3

var (
	// 行首的问题标记：Q: / Q- / Question: / Question-，大小写不敏感。
	questionMarker = regexp.MustCompile(`(?im)^[ \t]*Q(?:uestion)?[:\-][ \t]*`)
	// 问题之后、位于新行行首的答案标记。
	answerMarker = regexp.MustCompile(`(?i)\n[ \t]*A(?:nswer)?[:\-][ \t]*`)
)

// QAParser 从文本中解析问答对，可替换为更严格的实现。
type QAParser interface {
	Parse(text, source string) []model.QAPair
}

type markerParser struct{}

// NewQAParser 返回基于行首 Q/A 标记的默认解析器。
func NewQAParser() QAParser {
	return markerParser{}
}

// Parse 按问题标记把文本切成若干段，每段内第一个新行上的答案标记之前为问题，之后为答案。
// 答案一直延续到下一个问题标记或文本结尾。任一侧为空的问答对被丢弃。
func (markerParser) Parse(text, source string) []model.QAPair {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	locs := questionMarker.FindAllStringIndex(text, -1)
	var pairs []model.QAPair
	for i, loc := range locs {
		segEnd := len(text)
		if i+1 < len(locs) {
			segEnd = locs[i+1][0]
		}
		segment := text[loc[1]:segEnd]

		a := answerMarker.FindStringIndex(segment)
		if a == nil {
			continue
		}
		question := strings.TrimSpace(segment[:a[0]])
		answer := strings.TrimSpace(segment[a[1]:])
		if question == "" || answer == "" {
			continue
		}
		pairs = append(pairs, model.QAPair{
			Question:       question,
			Answer:         answer,
			PairIndex:      len(pairs),
			SourceFilename: source,
		})
	}
	return pairs
}

// IsQADocument 判断文本是否为问答文档（至少解析出 3 个问答对）。
func IsQADocument(parser QAParser, text string) bool {
	return len(parser.Parse(text, "")) >= QADocumentMinPairs
}
