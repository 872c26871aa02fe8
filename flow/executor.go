// flow/executor.go

package flow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tluyben/dun/config"
	"github.com/tluyben/dun/deps"
	"github.com/tluyben/dun/mail"
	"github.com/tluyben/dun/plugin"
	"github.com/tluyben/dun/plugins"
	"github.com/tluyben/dun/types"
)

var ErrLLMUnavailable = errors.New("LLM did not produce a usable action")

// Describer turns a request into an ActionDescriptor; llm.Analyzer is the
// production implementation.
type Describer interface {
	Describe(ctx context.Context, request string, handlers []types.HandlerInfo) (*types.ActionDescriptor, error)
}

type Result struct {
	Handler    string                  `json:"handler"`
	Descriptor *types.ActionDescriptor `json:"descriptor"`
	Output     map[string]interface{}  `json:"output"`
	// Degraded is set when the LLM path failed and the built-in fallback
	// ran instead of what was asked for.
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

type FlowExecutor struct {
	PluginRegistry *plugin.PluginRegistry
	Describer      Describer
	Resolver       *deps.Resolver
	Logger         *zap.Logger

	// Fallback is config.FallbackCSV (the default when empty) or
	// config.FallbackNone.
	Fallback  string
	InputDir  string
	OutputDir string
	IndexPath string

	Analyzer    plugin.TextAnalyzer
	OpenMailbox func(ctx context.Context) (mail.Mailbox, error)
	MailFolder  string
}

func NewFlowExecutor(pluginRegistry *plugin.PluginRegistry, describer Describer, resolver *deps.Resolver, logger *zap.Logger) *FlowExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowExecutor{
		PluginRegistry: pluginRegistry,
		Describer:      describer,
		Resolver:       resolver,
		Logger:         logger,
		Fallback:       config.FallbackCSV,
	}
}

// Dispatch runs request through the LLM and the selected handler.
func (fe *FlowExecutor) Dispatch(ctx context.Context, request string) (*Result, error) {
	fe.Logger.Info("processing request", zap.String("request", request))

	result := &Result{}
	descriptor, handler, info, err := fe.describe(ctx, request)
	if err != nil {
		if fe.Fallback == config.FallbackNone {
			return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
		}
		fe.Logger.Warn("LLM unusable, running built-in CSV combiner instead",
			zap.String("request", request), zap.Error(err))
		result.Degraded = true
		result.Reason = err.Error()

		llmErr := err
		descriptor = plugins.FallbackDescriptor(fe.InputDir)
		handler, info, err = fe.PluginRegistry.Lookup(descriptor.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v; fallback unavailable: %w", ErrLLMUnavailable, llmErr, err)
		}
	}
	result.Descriptor = descriptor
	result.Handler = descriptor.Name

	required := append(append([]string{}, info.Requires...), descriptor.Dependencies...)
	if fe.Resolver != nil {
		if err := fe.Resolver.EnsureAll(ctx, required); err != nil {
			return nil, fmt.Errorf("error resolving dependencies for %s: %w", descriptor.Name, err)
		}
	} else if len(required) > 0 {
		return nil, fmt.Errorf("%s needs %v but no dependency resolver is configured", descriptor.Name, required)
	}

	env, err := fe.newEnv()
	if err != nil {
		return nil, err
	}

	fe.Logger.Info("executing handler",
		zap.String("handler", descriptor.Name),
		zap.Any("parameters", descriptor.Parameters),
		zap.Bool("degraded", result.Degraded))

	output, err := handler.Execute(ctx, env, descriptor.Parameters)
	if err != nil {
		return nil, err
	}
	if err := plugin.ValidateOutput(output, info.Output); err != nil {
		fe.Logger.Warn("handler output does not match its schema",
			zap.String("handler", descriptor.Name), zap.Error(err))
	}
	result.Output = output
	return result, nil
}

// describe asks the LLM and checks that the answer names an enabled
// handler. Any failure here is an LLM failure.
func (fe *FlowExecutor) describe(ctx context.Context, request string) (*types.ActionDescriptor, plugin.Handler, types.HandlerInfo, error) {
	if fe.Describer == nil {
		return nil, nil, types.HandlerInfo{}, errors.New("no LLM configured")
	}
	descriptor, err := fe.Describer.Describe(ctx, request, fe.PluginRegistry.Infos())
	if err != nil {
		return nil, nil, types.HandlerInfo{}, err
	}
	handler, info, err := fe.PluginRegistry.Lookup(descriptor.Name)
	if err != nil {
		return nil, nil, types.HandlerInfo{}, err
	}
	if descriptor.Parameters == nil {
		descriptor.Parameters = map[string]string{}
	}
	if err := plugin.ValidateParams(info.Input, descriptor.Parameters); err != nil {
		return nil, nil, types.HandlerInfo{}, fmt.Errorf("%s: %w", descriptor.Name, err)
	}
	return descriptor, handler, info, nil
}

func (fe *FlowExecutor) newEnv() (*plugin.Env, error) {
	outputDir, err := plugin.ResolveOutputDir(fe.OutputDir, fe.Logger)
	if err != nil {
		return nil, err
	}
	return &plugin.Env{
		Logger:      fe.Logger,
		OutputDir:   outputDir,
		InputDir:    fe.InputDir,
		IndexPath:   fe.IndexPath,
		Resolver:    fe.Resolver,
		Analyzer:    fe.Analyzer,
		OpenMailbox: fe.OpenMailbox,
		MailFolder:  fe.MailFolder,
	}, nil
}
