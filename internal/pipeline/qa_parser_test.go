package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_TwoPairs(t *testing.T) {
	pairs := NewQAParser().Parse("Q: What is Foo?\nA: Bar\nQ: What is Baz?\nA: Qux", "faq.txt")
	require.Len(t, pairs, 2)
	assert.Equal(t, "What is Foo?", pairs[0].Question)
	assert.Equal(t, "Bar", pairs[0].Answer)
	assert.Equal(t, "What is Baz?", pairs[1].Question)
	assert.Equal(t, "Qux", pairs[1].Answer)
	assert.Equal(t, 1, pairs[1].PairIndex)
	assert.Equal(t, "faq.txt", pairs[1].SourceFilename)
}

func TestParse_LongFormMarkersAndMultilineAnswers(t *testing.T) {
	text := "Intro line that is ignored.\r\n" +
		"question- How many leave days?\r\n" +
		"Answer: Twenty days per year.\r\n" +
		"Carry-over is capped at five.\r\n" +
		"\r\n" +
		"Question: Who approves leave?\n" +
		"answer- Your line manager.\n"
	pairs := NewQAParser().Parse(text, "")
	require.Len(t, pairs, 2)
	assert.Equal(t, "How many leave days?", pairs[0].Question)
	assert.Equal(t, "Twenty days per year.\nCarry-over is capped at five.", pairs[0].Answer)
	assert.Equal(t, "Who approves leave?", pairs[1].Question)
	assert.Equal(t, "Your line manager.", pairs[1].Answer)
}

func TestParse_DropsPairsWithEmptySide(t *testing.T) {
	text := "Q:\nA: orphan answer\n" +
		"Q: No answer here\n" +
		"Q: Empty answer?\nA:   \n" +
		"Q: Valid?\nA: Yes"
	pairs := NewQAParser().Parse(text, "")
	require.Len(t, pairs, 1)
	assert.Equal(t, "Valid?", pairs[0].Question)
	assert.Equal(t, "Yes", pairs[0].Answer)
	assert.Equal(t, 0, pairs[0].PairIndex)
}

func TestParse_NoMarkers(t *testing.T) {
	assert.Empty(t, NewQAParser().Parse("Quarterly reports are due. Annual leave is 20 days.", ""))
	assert.Empty(t, NewQAParser().Parse("", ""))
}

func TestIsQADocument_Threshold(t *testing.T) {
	p := NewQAParser()
	two := "Q: a?\nA: 1\nQ: b?\nA: 2"
	three := two + "\nQ: c?\nA: 3"
	assert.False(t, IsQADocument(p, two))
	assert.True(t, IsQADocument(p, three))
}
