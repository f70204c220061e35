package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// trailingCommaBeforeCloser matches a comma followed by optional
// whitespace and a closing bracket/brace, e.g. the dangling "," in
// `{"id":"a"},]`.
var trailingCommaBeforeCloser = regexp.MustCompile(`,(\s*[}\]])`)

// DecodeLenient recovers a RawLLMResponse from raw, a provider response
// that may be wrapped in markdown code fences, truncated mid-object, or
// followed by trailing text. It tries, in order: fence stripping plus a
// direct decode, then suffix repair of the stripped text.
func DecodeLenient(raw string) (model.RawLLMResponse, error) {
	stripped := stripCodeFences(raw)

	if resp, ok := decodeFirstObject(stripped); ok {
		return resp, nil
	}

	repaired := repairSuffix(stripped)
	if resp, ok := decodeFirstObject(repaired); ok {
		return resp, nil
	}

	return model.RawLLMResponse{}, fmt.Errorf("lenient decode failed: no recoverable JSON object in response")
}

// stripCodeFences removes a leading/trailing ``` or ```json fence and
// surrounding whitespace.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// decodeFirstObject uses a streaming decoder to find and decode the first
// complete JSON object in s, ignoring any trailing text after it.
func decodeFirstObject(s string) (model.RawLLMResponse, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var resp model.RawLLMResponse
	if err := dec.Decode(&resp); err != nil {
		return model.RawLLMResponse{}, false
	}
	return resp, true
}

// stripDanglingCommas repeatedly removes a comma immediately preceding a
// closing bracket/brace (with optional whitespace between), since such a
// comma is never valid JSON regardless of where in the text it appears.
func stripDanglingCommas(s string) string {
	for {
		next := trailingCommaBeforeCloser.ReplaceAllString(s, "$1")
		if next == s {
			return s
		}
		s = next
	}
}

// repairSuffix walks s tracking string/bracket nesting state, appends any
// missing closing quotes and brackets in LIFO order, and strips a
// dangling trailing comma before the final closer. It targets truncated
// tail JSON ("results": [{"id": "a", "score": 5) with no closing braces.
func repairSuffix(s string) string {
	s = stripDanglingCommas(s)

	var stack []byte
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := strings.TrimRight(s, " \t\r\n")
	if inString {
		out += `"`
	}

	trimTrailingComma := func(x string) string {
		x = strings.TrimRight(x, " \t\r\n")
		return strings.TrimSuffix(x, ",")
	}

	out = trimTrailingComma(out)

	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			out += "}"
		case '[':
			out += "]"
		}
		out = trimTrailingComma(out)
	}

	return out
}
