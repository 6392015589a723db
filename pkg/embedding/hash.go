package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultHashDimensions = 384

// hashClient 是本地的特征哈希向量化：按词计数后映射到固定维度并做 L2 归一化。
// 词面相同的文本相似度为 1，适合离线运行和测试。
type hashClient struct {
	dims int
}

// NewHashClient 创建本地特征哈希客户端，dims <= 0 时使用 384 维。
func NewHashClient(dims int) Client {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &hashClient{dims: dims}
}

func (c *hashClient) Name() string {
	return fmt.Sprintf("hash:%d", c.dims)
}

func (c *hashClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	return c.embed(text), nil
}

func (c *hashClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = c.embed(t)
	}
	return out, nil
}

func (c *hashClient) embed(text string) []float32 {
	vec := make([]float64, c.dims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := 1.0
		if sum&0x80000000 != 0 {
			sign = -1.0
		}
		vec[int(sum%uint32(c.dims))] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, c.dims)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
