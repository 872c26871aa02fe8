// plugins/read_file.go

package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tluyben/dun/plugin"
	"github.com/tluyben/dun/types"
)

const maxReadBytes = 1 << 20

type readFile struct{}

func init() {
	registerBuiltin(readFile{})
}

func (readFile) Info() types.HandlerInfo {
	return types.HandlerInfo{
		Name:        "file_read",
		Description: "Read a text file (relative paths resolve against the input directory)",
		Input: []types.Property{
			{Name: "filepath", Type: "string", Required: true},
		},
		Output: []types.Property{
			{Name: "filepath", Type: "string"},
			{Name: "content", Type: "string"},
			{Name: "file-type", Type: "string"},
		},
	}
}

func (readFile) Execute(ctx context.Context, env *plugin.Env, params map[string]string) (map[string]interface{}, error) {
	filePath := stringParam(params, "filepath", "")
	if filePath == "" {
		return nil, fmt.Errorf("invalid input: filepath must be a string")
	}
	if !filepath.IsAbs(filePath) && env.InputDir != "" {
		filePath = filepath.Join(env.InputDir, filePath)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if info.Size() > maxReadBytes {
		return nil, fmt.Errorf("error reading file: %s is larger than %d bytes", filePath, maxReadBytes)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return map[string]interface{}{
		"filepath":  filePath,
		"content":   string(content),
		"file-type": filepath.Ext(filePath),
	}, nil
}
