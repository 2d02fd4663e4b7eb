package describe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel records the last request and returns a canned description.
type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return m.reply, m.err
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Config{BaseURL: "http://localhost:8080/v1", Model: "gpt-4o-mini"}.Validate())
	require.ErrorIs(t, Config{Model: "m"}.Validate(), ErrInvalidConfig)
	require.ErrorIs(t, Config{BaseURL: "http://x"}.Validate(), ErrInvalidConfig)
}

func TestDescribe(t *testing.T) {
	model := &fakeModel{reply: "  A report about finances.\n"}
	g := NewGeneratorWithModel(model)

	description, err := g.Describe(context.Background(), "Revenue grew in Q2.")
	require.NoError(t, err)
	assert.Equal(t, "A report about finances.", description)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
}

func TestDescribeTruncatesInput(t *testing.T) {
	model := &fakeModel{reply: "long doc"}
	g := NewGeneratorWithModel(model)

	content := strings.Repeat("word ", 2000)
	_, err := g.Describe(context.Background(), content)
	require.NoError(t, err)

	human := model.messages[1].Parts[0].(llms.TextContent).Text
	// 1000 words survive the cut.
	assert.Equal(t, maxInputWords, len(strings.Fields(strings.TrimPrefix(human, "File content:\n"))))
}

func TestDescribeEmptyContent(t *testing.T) {
	g := NewGeneratorWithModel(&fakeModel{})
	_, err := g.Describe(context.Background(), "   \n\t ")
	require.Error(t, err)
}

func TestDescribeModelFailure(t *testing.T) {
	g := NewGeneratorWithModel(&fakeModel{err: errors.New("provider down")})
	_, err := g.Describe(context.Background(), "some content")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generating description")
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "", TruncateWords("", 10))
	assert.Equal(t, "a b c", TruncateWords("a b c", 10))
	assert.Equal(t, "a b", TruncateWords("a b c", 2))
	assert.Equal(t, "a b c", TruncateWords("  a\n b\tc  ", 5))
}
