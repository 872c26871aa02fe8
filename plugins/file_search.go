// plugins/file_search.go

package plugins

import (
	"context"
	"fmt"

	"github.com/tluyben/dun/index"
	"github.com/tluyben/dun/plugin"
	"github.com/tluyben/dun/types"
)

type fileSearch struct{}

func init() {
	registerBuiltin(fileSearch{})
}

func (fileSearch) Info() types.HandlerInfo {
	return types.HandlerInfo{
		Name:        "file_search",
		Description: "Full-text search over the indexed files (run `dun index` first)",
		Input: []types.Property{
			{Name: "query", Type: "string", Required: true},
			{Name: "limit", Type: "number"},
		},
		Output: []types.Property{
			{Name: "hits", Type: "array"},
		},
	}
}

func (fileSearch) Execute(ctx context.Context, env *plugin.Env, params map[string]string) (map[string]interface{}, error) {
	query := stringParam(params, "query", "")
	if query == "" {
		return nil, fmt.Errorf("invalid input: query must be a string")
	}
	limit, err := intParam(params, "limit", 10)
	if err != nil {
		return nil, err
	}
	if env.IndexPath == "" {
		return nil, fmt.Errorf("no search index configured")
	}

	idx, err := index.Open(env.IndexPath, env.Logger)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	hits, err := idx.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"query": query, "hits": hits}, nil
}
