package resolve

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

const actionMarker = "Action:"

var (
	toolCallTagRe = regexp.MustCompile(`(?s)<tool_call>(.*?)(?:</tool_call>|$)`)
	codeFenceRe   = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \\t]*\\r?\\n(.*?)```")
	codeTagRe     = regexp.MustCompile(`(?s)<code>(.*?)</code>`)
)

// codeLanguages are the fence tags accepted as code actions. The empty tag
// is an untagged fence.
var codeLanguages = map[string]bool{
	"":         true,
	"py":       true,
	"python":   true,
	"starlark": true,
}

// payload is a tool call written into the response text.
type payload struct {
	Name          string          `json:"name"`
	Arguments     json.RawMessage `json:"arguments"`
	ToolName      string          `json:"tool_name"`
	ToolArguments json.RawMessage `json:"tool_arguments"`
}

func (p payload) name() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ToolName
}

func (p payload) arguments() json.RawMessage {
	if len(p.Arguments) > 0 {
		return p.Arguments
	}
	return p.ToolArguments
}

// textCandidates extracts the JSON payloads of text-embedded tool calls in
// order of preference: the Action: form, then <tool_call> tags.
func textCandidates(text string) []string {
	var out []string

	if i := strings.Index(text, actionMarker); i >= 0 {
		rest := text[i+len(actionMarker):]
		if obj, ok := extractObject(rest); ok {
			out = append(out, obj)
		}
	}

	for _, m := range toolCallTagRe.FindAllStringSubmatch(text, -1) {
		if obj, ok := extractObject(m[1]); ok {
			out = append(out, obj)
		}
	}
	return out
}

// extractObject returns the text from the first '{' to the last '}'. When
// that span is not valid JSON, the first balanced object is tried instead.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	candidate := s[start : end+1]
	if json.Valid([]byte(escapeControlInStrings(candidate))) {
		return candidate, true
	}
	if balanced, ok := balancedObject(s[start:]); ok {
		return balanced, true
	}
	return candidate, true
}

// balancedObject returns the JSON object starting at s[0], tracking string
// literals so braces inside strings are ignored.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// escapeControlInStrings escapes raw newlines, carriage returns and tabs
// inside JSON string literals. Models often emit multi-line strings verbatim.
func escapeControlInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				b.WriteString(`\n`)
				continue
			case c == '\r':
				b.WriteString(`\r`)
				continue
			case c == '\t':
				b.WriteString(`\t`)
				continue
			}
		} else if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

func decodePayload(raw string) (payload, bool) {
	var p payload
	if err := json.Unmarshal([]byte(escapeControlInStrings(raw)), &p); err != nil {
		return payload{}, false
	}
	if p.name() == "" {
		return payload{}, false
	}
	return p, true
}

// extractCode returns the first accepted fenced code block, falling back to
// <code> tags.
func extractCode(text string) (string, bool) {
	for _, m := range codeFenceRe.FindAllStringSubmatch(text, -1) {
		if !codeLanguages[strings.ToLower(m[1])] {
			continue
		}
		if src := strings.TrimSpace(m[2]); src != "" {
			return src, true
		}
	}
	for _, m := range codeTagRe.FindAllStringSubmatch(text, -1) {
		if src := strings.TrimSpace(m[1]); src != "" {
			return src, true
		}
	}
	return "", false
}

// compactObject returns raw as a compact JSON object string.
func compactObject(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}", true
	}
	if trimmed[0] != '{' {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", false
	}
	return buf.String(), true
}
