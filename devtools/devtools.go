// Package devtools wraps the standard Go code-quality commands behind the
// `dun dev` subcommands.
package devtools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

var ErrStepsFailed = errors.New("dev steps failed")

type Step struct {
	Name    string
	Command []string
	// FailOnOutput fails the step when the command prints anything, for
	// tools like `gofmt -l` that report problems with exit status 0.
	FailOnOutput bool
}

func (s Step) String() string { return strings.Join(s.Command, " ") }

// Runner runs args in dir and returns the combined output.
type Runner func(ctx context.Context, dir string, args []string) ([]byte, error)

type StepResult struct {
	Step   Step
	Output string
	Err    error
}

func (r StepResult) OK() bool { return r.Err == nil }

var (
	formatSteps = []Step{
		{Name: "gofmt", Command: []string{"gofmt", "-l", "-w", "."}},
	}
	lintSteps = []Step{
		{Name: "vet", Command: []string{"go", "vet", "./..."}},
		{Name: "gofmt-check", Command: []string{"gofmt", "-l", "."}, FailOnOutput: true},
	}
	testSteps = []Step{
		{Name: "test", Command: []string{"go", "test", "./..."}},
	}
)

// Steps returns the steps of group: format, lint, test or all.
func Steps(group string) ([]Step, error) {
	switch group {
	case "format":
		return formatSteps, nil
	case "lint":
		return lintSteps, nil
	case "test":
		return testSteps, nil
	case "all":
		all := append(append(append([]Step{}, formatSteps...), lintSteps...), testSteps...)
		return all, nil
	}
	return nil, fmt.Errorf("unknown dev step %q (want format, lint, test or all)", group)
}

type Tools struct {
	Dir    string
	run    Runner
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) *Tools {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{Dir: dir, run: execRunner, logger: logger}
}

// WithRunner replaces the command runner.
func (t *Tools) WithRunner(r Runner) *Tools {
	t.run = r
	return t
}

// Run executes every step, even after a failure, and returns
// ErrStepsFailed naming the failed ones.
func (t *Tools) Run(ctx context.Context, steps []Step) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	var failed []string
	for _, step := range steps {
		t.logger.Info("running dev step", zap.String("step", step.Name), zap.String("command", step.String()))
		out, err := t.run(ctx, t.Dir, step.Command)
		output := strings.TrimSpace(string(out))
		if err == nil && step.FailOnOutput && output != "" {
			err = fmt.Errorf("%s reported:\n%s", step.Command[0], output)
		}
		if err != nil {
			t.logger.Error("dev step failed", zap.String("step", step.Name), zap.Error(err))
			failed = append(failed, step.Name)
		}
		results = append(results, StepResult{Step: step, Output: output, Err: err})
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("%w: %s", ErrStepsFailed, strings.Join(failed, ", "))
	}
	return results, nil
}

func execRunner(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
