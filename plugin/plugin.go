// plugin/plugin.go

package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/tluyben/dun/deps"
	"github.com/tluyben/dun/mail"
	"github.com/tluyben/dun/types"
)

var ErrUnknownHandler = errors.New("unknown handler")

// Handler is one member of the closed set of actions a request can select.
// Execute decodes params into the handler's own parameter struct.
type Handler interface {
	Info() types.HandlerInfo
	Execute(ctx context.Context, env *Env, params map[string]string) (map[string]interface{}, error)
}

// TextAnalyzer answers free-form questions about a piece of text.
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
}

// Env is everything a handler may touch besides its parameters.
type Env struct {
	Logger    *zap.Logger
	OutputDir string
	InputDir  string
	IndexPath string
	Resolver  *deps.Resolver
	Analyzer  TextAnalyzer
	// OpenMailbox connects to the configured IMAP account. Nil when mail is
	// not configured.
	OpenMailbox func(ctx context.Context) (mail.Mailbox, error)
	// MailFolder is the default folder of the mail handlers.
	MailFolder string
}

type PluginRegistry struct {
	Plugins map[string]Handler
	infos   map[string]types.HandlerInfo
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		Plugins: make(map[string]Handler),
		infos:   make(map[string]types.HandlerInfo),
	}
}

func (r *PluginRegistry) Register(h Handler) {
	info := h.Info()
	r.Plugins[info.Name] = h
	r.infos[info.Name] = info
}

// LoadManifest applies a plugins.yml: entries may rewrite a handler's
// description and schema or disable it. Names that are not built in are an
// error. A missing file is not.
func (r *PluginRegistry) LoadManifest(path string) error {
	configData, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	var pluginsConfig struct {
		Plugins []types.HandlerInfo `yaml:"plugins"`
	}
	if err := yaml.Unmarshal(configData, &pluginsConfig); err != nil {
		return fmt.Errorf("error parsing %s: %w", path, err)
	}

	for _, override := range pluginsConfig.Plugins {
		info, ok := r.infos[override.Name]
		if !ok {
			return fmt.Errorf("%w %s in %s", ErrUnknownHandler, override.Name, path)
		}
		if override.Description != "" {
			info.Description = override.Description
		}
		if len(override.Input) > 0 {
			info.Input = override.Input
		}
		if len(override.Output) > 0 {
			info.Output = override.Output
		}
		if len(override.Requires) > 0 {
			info.Requires = override.Requires
		}
		info.Disabled = override.Disabled
		r.infos[override.Name] = info
	}
	return nil
}

// Lookup returns an enabled handler and its effective info.
func (r *PluginRegistry) Lookup(name string) (Handler, types.HandlerInfo, error) {
	h, ok := r.Plugins[name]
	if !ok || r.infos[name].Disabled {
		return nil, types.HandlerInfo{}, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}
	return h, r.infos[name], nil
}

func (r *PluginRegistry) ExecutePlugin(ctx context.Context, env *Env, name string, params map[string]string) (map[string]interface{}, error) {
	h, _, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, env, params)
}

// Infos lists the enabled handlers sorted by name.
func (r *PluginRegistry) Infos() []types.HandlerInfo {
	infos := make([]types.HandlerInfo, 0, len(r.infos))
	for _, info := range r.infos {
		if !info.Disabled {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (r *PluginRegistry) GetPluginSchema(name string) ([]types.Property, []types.Property, error) {
	_, info, err := r.Lookup(name)
	if err != nil {
		return nil, nil, err
	}
	return info.Input, info.Output, nil
}
