package app

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_ShortPageIsOneChunk(t *testing.T) {
	c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)

	chunks, err := c.Split([]PageText{{Page: 1, Text: "A short page about apples."}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Index: 0, Total: 1, Page: 1, Text: "A short page about apples."}, chunks[0])
}

func TestChunker_LongPageCoversEveryWord(t *testing.T) {
	c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)

	words := make([]string, 700)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	chunks, err := c.Split([]PageText{{Page: 3, Text: strings.Join(words, " ")}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	joined := ""
	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), DefaultChunkSize)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, len(chunks), ch.Total)
		assert.Equal(t, 3, ch.Page)
		joined += " " + ch.Text + " "
	}
	for _, w := range words {
		assert.Contains(t, joined, " "+w+" ")
	}
}

func TestChunker_NumbersAcrossPagesAndSkipsBlank(t *testing.T) {
	c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)

	chunks, err := c.Split([]PageText{
		{Page: 1, Text: "first page"},
		{Page: 2, Text: "   \n "},
		{Page: 3, Text: "third page"},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 3, chunks[1].Page)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, 2, chunks[0].Total)
}

func TestChunker_NoText(t *testing.T) {
	chunks, err := NewChunker(0, -1).Split(nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
