package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParser() *MarkupParser {
	return NewMarkupParser([]string{"google_search", "browse_webpage"})
}

func TestMarkupParserHandlesDegradedForms(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		wantTool string
		wantArg  string
	}{
		{
			name:     "complete call",
			text:     `<call_tool name="google_search">latest AI news</call_tool>`,
			wantTool: "google_search",
			wantArg:  "latest AI news",
		},
		{
			name:     "missing opening tag",
			text:     `name="google_search">latest AI news`,
			wantTool: "google_search",
			wantArg:  "latest AI news",
		},
		{
			name:     "missing closing tag",
			text:     `<call_tool name="google_search">latest AI news`,
			wantTool: "google_search",
			wantArg:  "latest AI news",
		},
		{
			name:     "stray trailing quote",
			text:     `name="google_search">latest AI news"`,
			wantTool: "google_search",
			wantArg:  "latest AI news",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testParser()
			require.True(t, p.HasCalls(tc.text))

			calls := p.Parse(tc.text)
			require.Len(t, calls, 1)
			assert.Equal(t, tc.wantTool, calls[0].Name)
			assert.Equal(t, tc.wantArg, calls[0].Arguments["query"])
			assert.NotEmpty(t, calls[0].ID)
		})
	}
}

func TestMarkupParserNoCall(t *testing.T) {
	p := testParser()

	text := "This is just regular text without any tool calls"
	assert.False(t, p.HasCalls(text))
	assert.Nil(t, p.Parse(text))
}

func TestMarkupParserUnknownToolIgnored(t *testing.T) {
	p := testParser()

	calls := p.Parse(`<call_tool name="delete_everything">now</call_tool>`)
	assert.Nil(t, calls)
}

func TestMarkupParserMultipleCompleteCalls(t *testing.T) {
	p := testParser()

	text := `First: <call_tool name="google_search">aws pricing</call_tool>
then <call_tool name="browse_webpage">https://aws.amazon.com/rds/pricing/</call_tool>`

	calls := p.Parse(text)
	require.Len(t, calls, 2)
	assert.Equal(t, "google_search", calls[0].Name)
	assert.Equal(t, "aws pricing", calls[0].Arguments["query"])
	assert.Equal(t, "browse_webpage", calls[1].Name)
	assert.Equal(t, "https://aws.amazon.com/rds/pricing/", calls[1].Arguments["url"])
}

func TestMarkupParserEmptyQueryIgnored(t *testing.T) {
	p := testParser()
	assert.Nil(t, p.Parse(`<call_tool name="google_search">   </call_tool>`))
}

func TestMarkupParserStripCalls(t *testing.T) {
	p := testParser()

	text := `Let me look this up. <call_tool name="google_search">rds pricing</call_tool>`
	assert.Equal(t, "Let me look this up.", p.StripCalls(text))

	degraded := `Let me look this up. <call_tool name="google_search">rds pricing`
	assert.Equal(t, "Let me look this up.", p.StripCalls(degraded))

	plain := "No calls in here."
	assert.Equal(t, plain, p.StripCalls(plain))
}
