// plugins/text_analyze.go

package plugins

import (
	"context"
	"fmt"

	"github.com/tluyben/dun/plugin"
	"github.com/tluyben/dun/types"
)

const defaultInstruction = "Analyze this text and extract key information:"

type textAnalyze struct{}

func init() {
	registerBuiltin(textAnalyze{})
}

func (textAnalyze) Info() types.HandlerInfo {
	return types.HandlerInfo{
		Name:        "text_analyze",
		Description: "Analyze or summarize a piece of text such as an email or an email thread",
		Input: []types.Property{
			{Name: "text", Type: "string", Required: true},
			{Name: "instruction", Type: "string"},
		},
		Output: []types.Property{
			{Name: "analysis", Type: "string"},
		},
	}
}

func (textAnalyze) Execute(ctx context.Context, env *plugin.Env, params map[string]string) (map[string]interface{}, error) {
	text := stringParam(params, "text", "")
	if text == "" {
		return nil, fmt.Errorf("invalid input: text must be a string")
	}
	if env.Analyzer == nil {
		return nil, fmt.Errorf("no text analyzer available")
	}
	instruction := stringParam(params, "instruction", defaultInstruction)

	analysis, err := env.Analyzer.Analyze(ctx, instruction+"\n\n"+text)
	if err != nil {
		return nil, fmt.Errorf("error analyzing text: %w", err)
	}
	return map[string]interface{}{"analysis": analysis}, nil
}
