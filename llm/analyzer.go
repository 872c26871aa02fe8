package llm

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tluyben/dun/types"
)

//go:embed prompts/dispatch.txt
var dispatchPrompt string

// Generator is the part of Client the Analyzer needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analyzer turns a natural-language request into an ActionDescriptor.
type Analyzer struct {
	LLM    Generator
	Logger *zap.Logger
}

func NewAnalyzer(llm Generator, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{LLM: llm, Logger: logger}
}

func (a *Analyzer) Describe(ctx context.Context, request string, handlers []types.HandlerInfo) (*types.ActionDescriptor, error) {
	prompt := BuildPrompt(request, handlers)

	output, err := a.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("error calling LLM: %w", err)
	}
	a.Logger.Debug("LLM reply", zap.String("output", output))

	descriptor, err := ParseDescriptor(output)
	if err != nil {
		return nil, err
	}
	return descriptor, nil
}

// BuildPrompt fills the dispatch template with the handler list and the
// request.
func BuildPrompt(request string, handlers []types.HandlerInfo) string {
	var b strings.Builder
	for _, h := range handlers {
		fmt.Fprintf(&b, "- %s: %s\n", h.Name, h.Description)
		for _, p := range h.Input {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(&b, "    %s (%s%s)\n", p.Name, p.Type, req)
		}
	}
	prompt := strings.ReplaceAll(dispatchPrompt, "{HANDLERS}", strings.TrimRight(b.String(), "\n"))
	return strings.ReplaceAll(prompt, "{USER}", request)
}
