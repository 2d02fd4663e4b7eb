package chunker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/document"
)

// fakeEmbedder returns canned vectors keyed by input text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			return nil, errors.New("no vector for " + text)
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func TestNewSemanticRequiresEmbedder(t *testing.T) {
	_, err := NewSemantic(nil)
	require.Error(t, err)
}

func TestSemanticSplitBreaksAtSimilarityDrop(t *testing.T) {
	// Two sentences about cats, two about engines. The similarity between
	// sentence 2 and 3 is zero, well below the threshold, so the split lands
	// exactly there.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"Cats purr.":    {1, 0},
		"Cats meow.":    {1, 0},
		"Engines roar.": {0, 1},
		"Engines idle.": {0, 1},
	}}

	s, err := NewSemantic(embedder)
	require.NoError(t, err)

	chunks, err := s.Split(context.Background(), []document.PageSegment{
		{Text: "Cats purr. Cats meow. Engines roar. Engines idle.", Page: 1, Source: "doc.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Cats purr. Cats meow.", chunks[0].Content)
	assert.Equal(t, "Engines roar. Engines idle.", chunks[1].Content)
}

func TestSemanticSplitFewSentences(t *testing.T) {
	// Fewer than three sentences cannot support a similarity distribution,
	// so the segment stays whole without touching the embedder.
	embedder := &fakeEmbedder{err: errors.New("must not be called")}

	s, err := NewSemantic(embedder)
	require.NoError(t, err)

	chunks, err := s.Split(context.Background(), []document.PageSegment{
		{Text: "One sentence. Another sentence.", Page: 1, Source: "doc.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "One sentence. Another sentence.", chunks[0].Content)
}

func TestSemanticSplitEmbedderFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("endpoint down")}

	s, err := NewSemantic(embedder)
	require.NoError(t, err)

	_, err = s.Split(context.Background(), []document.PageSegment{
		{Text: "First one. Second one. Third one. Fourth one.", Page: 1, Source: "doc.pdf"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding sentences")
}

func TestSemanticSplitEmptySegment(t *testing.T) {
	s, err := NewSemantic(&fakeEmbedder{})
	require.NoError(t, err)

	chunks, err := s.Split(context.Background(), []document.PageSegment{{Text: "   ", Page: 1}})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "periods",
			text: "First. Second. Third.",
			want: []string{"First.", "Second.", "Third."},
		},
		{
			name: "mixed terminators",
			text: "Really? Yes! Good.",
			want: []string{"Really?", "Yes!", "Good."},
		},
		{
			name: "newlines terminate",
			text: "Heading\nBody text.",
			want: []string{"Heading", "Body text."},
		},
		{
			name: "abbreviation-like dot mid-token kept",
			text: "Version 1.5 is out. It works.",
			want: []string{"Version 1.5 is out.", "It works."},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.text))
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
