package devtools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps(t *testing.T) {
	format, err := Steps("format")
	require.NoError(t, err)
	assert.Equal(t, []string{"gofmt", "-l", "-w", "."}, format[0].Command)

	all, err := Steps("all")
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"gofmt", "vet", "gofmt-check", "test"}, names)

	_, err = Steps("deploy")
	assert.Error(t, err)
}

func TestRun_AllStepsRunEvenAfterFailure(t *testing.T) {
	var ran []string
	tools := New("/work", nil).WithRunner(func(ctx context.Context, dir string, args []string) ([]byte, error) {
		assert.Equal(t, "/work", dir)
		ran = append(ran, strings.Join(args, " "))
		if args[0] == "go" && args[1] == "vet" {
			return []byte("main.go:3: unreachable code"), errors.New("exit status 1")
		}
		return nil, nil
	})

	steps, err := Steps("lint")
	require.NoError(t, err)
	results, err := tools.Run(context.Background(), steps)

	assert.ErrorIs(t, err, ErrStepsFailed)
	assert.ErrorContains(t, err, "vet")
	assert.Equal(t, []string{"go vet ./...", "gofmt -l ."}, ran)
	require.Len(t, results, 2)
	assert.False(t, results[0].OK())
	assert.Equal(t, "main.go:3: unreachable code", results[0].Output)
	assert.True(t, results[1].OK())
}

func TestRun_FailOnOutput(t *testing.T) {
	tools := New(".", nil).WithRunner(func(ctx context.Context, dir string, args []string) ([]byte, error) {
		if args[0] == "gofmt" {
			return []byte("plugins/imap.go\n"), nil
		}
		return nil, nil
	})

	results, err := tools.Run(context.Background(), lintSteps)
	assert.ErrorIs(t, err, ErrStepsFailed)
	assert.True(t, results[0].OK())
	assert.ErrorContains(t, results[1].Err, "plugins/imap.go")
}

func TestRun_AllPass(t *testing.T) {
	tools := New(".", nil).WithRunner(func(ctx context.Context, dir string, args []string) ([]byte, error) {
		return []byte("ok"), nil
	})
	results, err := tools.Run(context.Background(), testSteps)
	require.NoError(t, err)
	assert.Equal(t, "ok", results[0].Output)
}
