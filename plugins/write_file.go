// plugins/write_file.go

package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tluyben/dun/plugin"
	"github.com/tluyben/dun/types"
)

type writeFile struct{}

func init() {
	registerBuiltin(writeFile{})
}

func (writeFile) Info() types.HandlerInfo {
	return types.HandlerInfo{
		Name:        "file_write",
		Description: "Write text content to a file inside the output directory",
		Input: []types.Property{
			{Name: "filepath", Type: "string", Required: true},
			{Name: "content", Type: "string", Required: true},
		},
		Output: []types.Property{
			{Name: "success", Type: "boolean"},
			{Name: "filepath", Type: "string"},
			{Name: "message", Type: "string"},
		},
	}
}

func (writeFile) Execute(ctx context.Context, env *plugin.Env, params map[string]string) (map[string]interface{}, error) {
	name, ok := params["filepath"]
	if !ok || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("invalid input: filepath must be a string")
	}
	content, ok := params["content"]
	if !ok {
		return nil, fmt.Errorf("invalid input: content must be a string")
	}

	target, err := withinDir(env.OutputDir, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("error writing file: %w", err)
	}
	env.Logger.Info("wrote file", zap.String("path", target), zap.Int("bytes", len(content)))

	return map[string]interface{}{
		"success":  true,
		"filepath": target,
		"message":  "File written successfully",
	}, nil
}

// withinDir joins name onto dir and rejects results outside dir.
func withinDir(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid input: %s must be relative to the output directory", name)
	}
	target := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid input: %s escapes the output directory", name)
	}
	return target, nil
}
