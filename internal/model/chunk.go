package model

// Chunk 是文档切分后的一个片段，Index 从 0 开始连续编号。
type Chunk struct {
	Text           string
	SourceFilename string
	Index          int
}

// QAPair 是从问答文档中解析出的一组问答。只有 Question 会被向量化，Answer 随元数据保存。
type QAPair struct {
	Question       string
	Answer         string
	PairIndex      int
	SourceFilename string
}
