package service

import (
	"strings"

	"github.com/set-night/imagebroker/internal/domain"
)

// Chunk is one incremental piece of a streamed backend response.
type Chunk struct {
	Text         string
	Images       []domain.ImageData
	FinishReason string
	BlockReason  string
	Grounding    *Grounding
}

// Aggregate folds chunks into a single result. Text fragments are
// concatenated in arrival order; only the last image survives.
type Aggregate struct {
	text         strings.Builder
	Image        *domain.ImageData
	FinishReason string
	BlockReason  string
	Grounding    *Grounding
	Chunks       int
}

func (a *Aggregate) Add(c Chunk) {
	a.Chunks++
	a.text.WriteString(c.Text)
	if n := len(c.Images); n > 0 {
		img := c.Images[n-1]
		a.Image = &img
	}
	if c.FinishReason != "" {
		a.FinishReason = c.FinishReason
	}
	if c.BlockReason != "" {
		a.BlockReason = c.BlockReason
	}
	if c.Grounding != nil {
		a.Grounding = a.Grounding.merge(c.Grounding)
	}
}

func (a *Aggregate) Text() string {
	return a.text.String()
}

// FoldChunks reduces an ordered chunk sequence.
func FoldChunks(chunks []Chunk) *Aggregate {
	agg := &Aggregate{}
	for _, c := range chunks {
		agg.Add(c)
	}
	return agg
}
