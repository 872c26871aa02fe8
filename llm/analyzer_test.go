package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tluyben/dun/types"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

var testHandlers = []types.HandlerInfo{
	{
		Name:        "csv_combine",
		Description: "Combine CSV files",
		Input:       []types.Property{{Name: "input_dir", Type: "string", Required: true}},
	},
}

func TestDescribe(t *testing.T) {
	gen := &fakeGenerator{reply: `{"name":"csv_combine","parameters":{"input_dir":"in"}}`}
	a := NewAnalyzer(gen, nil)

	d, err := a.Describe(context.Background(), "merge my csv files", testHandlers)
	require.NoError(t, err)

	assert.Equal(t, "csv_combine", d.Name)
	assert.Equal(t, "in", d.Parameters["input_dir"])
	assert.Contains(t, gen.prompt, "merge my csv files")
	assert.Contains(t, gen.prompt, "- csv_combine: Combine CSV files")
	assert.Contains(t, gen.prompt, "input_dir (string, required)")
}

func TestDescribe_Errors(t *testing.T) {
	a := NewAnalyzer(&fakeGenerator{err: errors.New("connection refused")}, nil)
	_, err := a.Describe(context.Background(), "x", testHandlers)
	assert.Error(t, err)

	a = NewAnalyzer(&fakeGenerator{reply: "I cannot help with that"}, nil)
	_, err = a.Describe(context.Background(), "x", testHandlers)
	assert.ErrorIs(t, err, ErrNoJSON)
}
