package app

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// PageText is the extracted text of one source page.
type PageText struct {
	Page int
	Text string
}

// Chunk is one slice of a document. Index is the ordinal across the whole
// document and Total the document's chunk count.
type Chunk struct {
	Index int
	Total int
	Page  int
	Text  string
}

type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}
}

// Split chunks every page separately so each chunk keeps its page number,
// then numbers the chunks across the document.
func (c *Chunker) Split(pages []PageText) ([]Chunk, error) {
	var chunks []Chunk
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts, err := c.splitter.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d failed: %w", p.Page, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, Chunk{Page: p.Page, Text: part})
		}
	}
	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks, nil
}
