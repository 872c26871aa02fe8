// plugins/registry.go

package plugins

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tluyben/dun/plugin"
)

var builtins []plugin.Handler

func registerBuiltin(h plugin.Handler) {
	builtins = append(builtins, h)
}

// RegisterAll adds every built-in handler to r.
func RegisterAll(r *plugin.PluginRegistry) {
	for _, h := range builtins {
		r.Register(h)
	}
}

// NewRegistry returns a registry holding the built-in handlers.
func NewRegistry() *plugin.PluginRegistry {
	r := plugin.NewPluginRegistry()
	RegisterAll(r)
	return r
}

func stringParam(params map[string]string, key, def string) string {
	if v := strings.TrimSpace(params[key]); v != "" {
		return v
	}
	return def
}

func intParam(params map[string]string, key string, def int) (int, error) {
	v := strings.TrimSpace(params[key])
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid input: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

func listParam(params map[string]string, key string) []string {
	v := strings.TrimSpace(params[key])
	if v == "" {
		return nil
	}
	var out []string
	if strings.HasPrefix(v, "[") && gjson.Valid(v) {
		for _, item := range gjson.Parse(v).Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
