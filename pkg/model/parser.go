package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/altay/deepresearch/pkg/tools"
)

// Some backends emit tool requests as inline markup instead of native tool
// calls:
//
//	<call_tool name="google_search">latest AI news</call_tool>
//
// Smaller models frequently mangle the markup, dropping the opening tag, the
// closing tag, or both, so the parser accepts degraded forms too. Only calls
// whose tool name matches a registered tool are extracted.

var (
	// Well-formed: <call_tool name="X">query</call_tool>
	completeCallRe = regexp.MustCompile(`(?s)<call_tool\s+name="([^"]+)"\s*>(.*?)</call_tool>`)

	// Missing closing tag: <call_tool name="X">query
	openCallRe = regexp.MustCompile(`(?s)<call_tool\s+name="([^"]+)"\s*>(.*)$`)

	// Missing opening tag: name="X">query (optionally with a stray trailing quote)
	bareCallRe = regexp.MustCompile(`(?s)name="([^"]+)"\s*>(.*)$`)
)

// MarkupParser extracts tool calls embedded in assistant text
type MarkupParser struct {
	known map[string]bool
}

// NewMarkupParser creates a parser that recognizes the given tool names
func NewMarkupParser(names []string) *MarkupParser {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	return &MarkupParser{known: known}
}

// HasCalls reports whether the text contains at least one recognizable call
func (p *MarkupParser) HasCalls(text string) bool {
	return len(p.Parse(text)) > 0
}

// Parse extracts every recognizable tool call from the text. Returns nil when
// no call is present. The query becomes the tool's single argument.
func (p *MarkupParser) Parse(text string) []tools.Call {
	var calls []tools.Call

	matches := completeCallRe.FindAllStringSubmatch(text, -1)
	for _, m := range matches {
		if call, ok := p.makeCall(m[1], m[2]); ok {
			calls = append(calls, call)
		}
	}
	if len(calls) > 0 {
		return calls
	}

	// Fall back to degraded forms. These are greedy to end-of-text, so at
	// most one call can be recovered.
	for _, re := range []*regexp.Regexp{openCallRe, bareCallRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if call, ok := p.makeCall(m[1], m[2]); ok {
				return []tools.Call{call}
			}
		}
	}

	return nil
}

// StripCalls removes tool-call markup from the text, leaving surrounding prose
func (p *MarkupParser) StripCalls(text string) string {
	stripped := completeCallRe.ReplaceAllString(text, "")
	if stripped == text {
		if m := openCallRe.FindStringIndex(text); m != nil {
			stripped = text[:m[0]]
		} else if m := bareCallRe.FindStringIndex(text); m != nil {
			stripped = text[:m[0]]
		}
	}
	return strings.TrimSpace(stripped)
}

func (p *MarkupParser) makeCall(name, body string) (tools.Call, bool) {
	name = strings.TrimSpace(name)
	if !p.known[name] {
		return tools.Call{}, false
	}

	query := strings.TrimSpace(body)
	// Models that drop the closing tag sometimes leave a stray quote behind.
	query = strings.Trim(query, `"`)
	query = strings.TrimSpace(query)
	if query == "" {
		return tools.Call{}, false
	}

	arg := "query"
	if name == tools.BrowseToolName {
		arg = "url"
	}

	return tools.Call{
		ID:        "markup_" + uuid.NewString(),
		Name:      name,
		Arguments: map[string]interface{}{arg: query},
	}, true
}
