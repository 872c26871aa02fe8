// Package deps resolves the external tools a handler needs before it runs.
// A Resolver is created per process (or per test) and handed to the
// dispatcher; it remembers which names are already available so the
// installer runs at most once per name.
package deps

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrInstallFailed = errors.New("dependency install failed")
	ErrNoInstaller   = errors.New("no installer configured")
)

// ProbeFunc reports whether name is already usable.
type ProbeFunc func(name string) error

// InstallFunc runs an install command line.
type InstallFunc func(ctx context.Context, args []string) ([]byte, error)

type Resolver struct {
	// Installer is the default command template; {name} is substituted.
	Installer string
	// Installers overrides the template for specific names.
	Installers map[string]string

	probe   ProbeFunc
	install InstallFunc
	logger  *zap.Logger

	mu        sync.Mutex
	installed map[string]bool
}

type Option func(*Resolver)

func WithProbe(p ProbeFunc) Option { return func(r *Resolver) { r.probe = p } }

func WithInstall(i InstallFunc) Option { return func(r *Resolver) { r.install = i } }

func WithLogger(l *zap.Logger) Option { return func(r *Resolver) { r.logger = l } }

func NewResolver(installer string, installers map[string]string, opts ...Option) *Resolver {
	r := &Resolver{
		Installer:  installer,
		Installers: installers,
		probe:      lookPath,
		install:    runInstaller,
		logger:     zap.NewNop(),
		installed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure makes name available, installing it if the probe fails.
func (r *Resolver) Ensure(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.installed[name] {
		return nil
	}

	if err := r.probe(name); err == nil {
		r.installed[name] = true
		return nil
	}

	args := r.commandFor(name)
	if len(args) == 0 {
		return fmt.Errorf("%w for %q", ErrNoInstaller, name)
	}

	r.logger.Info("installing dependency", zap.String("name", name), zap.Strings("command", args))
	output, err := r.install(ctx, args)
	if err != nil {
		r.logger.Error("dependency install failed",
			zap.String("name", name),
			zap.ByteString("output", output),
			zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrInstallFailed, name, err)
	}

	r.installed[name] = true
	return nil
}

// EnsureAll resolves names in order and stops at the first failure.
func (r *Resolver) EnsureAll(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := r.Ensure(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) Installed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installed[name]
}

// MarkInstalled records name as available without probing.
func (r *Resolver) MarkInstalled(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installed[name] = true
}

func (r *Resolver) commandFor(name string) []string {
	template := r.Installer
	if t, ok := r.Installers[name]; ok {
		template = t
	}
	if strings.TrimSpace(template) == "" {
		return nil
	}
	fields := strings.Fields(template)
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, "{name}", name)
	}
	return fields
}

func lookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}

func runInstaller(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	return cmd.CombinedOutput()
}
