package chunker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Semantic splits text at local minima of inter-sentence embedding
// similarity. A boundary is placed between two adjacent sentences when their
// cosine similarity falls below a dynamically computed threshold
// (mean - StdDevs standard deviations across the segment).
//
// The strategy requires a live embedding provider; provider failures
// propagate to the caller.
type Semantic struct {
	embedder vectorstore.Embedder

	// StdDevs controls threshold sensitivity. Larger values produce fewer,
	// larger chunks. Default 1.0.
	StdDevs float64
}

// NewSemantic creates a Semantic splitter backed by the given embedder.
func NewSemantic(embedder vectorstore.Embedder) (*Semantic, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &Semantic{embedder: embedder, StdDevs: 1.0}, nil
}

// Split chunks every segment independently so page metadata stays exact.
func (s *Semantic) Split(ctx context.Context, segments []document.PageSegment) ([]vectorstore.Document, error) {
	var chunks []vectorstore.Document
	for _, seg := range segments {
		pieces, err := s.splitText(ctx, seg.Text)
		if err != nil {
			return nil, err
		}
		for _, piece := range pieces {
			chunks = append(chunks, newChunk(piece, seg))
		}
	}
	return chunks, nil
}

// splitText embeds each sentence and groups consecutive sentences until the
// similarity to the next sentence drops below the threshold.
func (s *Semantic) splitText(ctx context.Context, text string) ([]string, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(sentences) < 3 {
		// Too few units to estimate a similarity distribution.
		return []string{strings.Join(sentences, " ")}, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding sentences: %w", err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d sentences", len(vectors), len(sentences))
	}

	sims := make([]float64, len(sentences)-1)
	for i := range sims {
		sims[i] = cosineSimilarity(vectors[i], vectors[i+1])
	}

	threshold := breakpointThreshold(sims, s.StdDevs)

	var pieces []string
	var current []string
	for i, sentence := range sentences {
		current = append(current, sentence)
		if i < len(sims) && sims[i] < threshold {
			pieces = append(pieces, strings.Join(current, " "))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}
	return pieces, nil
}

// breakpointThreshold returns mean - stdDevs*stddev over the similarities.
func breakpointThreshold(sims []float64, stdDevs float64) float64 {
	var sum float64
	for _, s := range sims {
		sum += s
	}
	mean := sum / float64(len(sims))

	var variance float64
	for _, s := range sims {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(sims))

	return mean - stdDevs*math.Sqrt(variance)
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// splitSentences splits text on sentence-ending punctuation followed by
// whitespace. Newlines also terminate a sentence so lists and headings
// become their own units.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		switch {
		case r == '\n':
			flush()
		case r == '.' || r == '!' || r == '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return sentences
}
