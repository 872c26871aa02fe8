package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/tluyben/dun/types"
)

var ErrNoJSON = errors.New("no JSON object found in LLM response")

var codeBlockRe = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")

func extractCodeBlock(input string) (lang string, content string) {
	matches := codeBlockRe.FindStringSubmatch(input)
	if len(matches) > 0 {
		lang = strings.TrimSpace(matches[1])
		content = strings.TrimSpace(matches[2])
		return lang, content
	}
	return "", input
}

// ExtractJSON returns the first top-level {...} span of text. Braces
// inside string literals and inside // or /* */ comments of the object do
// not count towards the depth.
func ExtractJSON(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if start >= 0 && ch == '/' && i+1 < len(text) {
			switch text[i+1] {
			case '/':
				if end := strings.IndexByte(text[i:], '\n'); end >= 0 {
					i += end
				} else {
					i = len(text)
				}
				continue
			case '*':
				end := strings.Index(text[i+2:], "*/")
				if end < 0 {
					return "", ErrNoJSON
				}
				i += end + 3
				continue
			}
		}
		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// ParseDescriptor pulls an ActionDescriptor out of a free-text LLM reply.
func ParseDescriptor(text string) (*types.ActionDescriptor, error) {
	if _, block := extractCodeBlock(text); block != "" {
		if _, err := ExtractJSON(block); err == nil {
			text = block
		}
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	data := jsonc.ToJSON([]byte(raw))
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON in LLM response: %s", raw)
	}

	var fields struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Dependencies []string `json:"dependencies"`
		Code         string   `json:"code"`
		CodeTemplate string   `json:"code_template"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("error parsing action descriptor: %w", err)
	}
	if strings.TrimSpace(fields.Name) == "" {
		return nil, fmt.Errorf("action descriptor has no name")
	}

	params := make(map[string]string)
	gjson.GetBytes(data, "parameters").ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			params[key.String()] = value.String()
		} else {
			params[key.String()] = value.Raw
		}
		return true
	})

	code := fields.Code
	if code == "" {
		code = fields.CodeTemplate
	}

	return &types.ActionDescriptor{
		Name:         strings.TrimSpace(fields.Name),
		Description:  fields.Description,
		Dependencies: fields.Dependencies,
		Parameters:   params,
		Code:         code,
	}, nil
}
