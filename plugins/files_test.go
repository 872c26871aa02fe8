package plugins

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tluyben/dun/index"
	"github.com/tluyben/dun/plugin"
)

func TestReadFile(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "email.txt", "Subject: Meeting Tomorrow")
	env := &plugin.Env{Logger: zap.NewNop(), InputDir: in}

	out, err := readFile{}.Execute(context.Background(), env, map[string]string{"filepath": "email.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Subject: Meeting Tomorrow", out["content"])
	assert.Equal(t, ".txt", out["file-type"])

	_, err = readFile{}.Execute(context.Background(), env, map[string]string{})
	assert.Error(t, err)

	_, err = readFile{}.Execute(context.Background(), env, map[string]string{"filepath": "missing.txt"})
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	outDir := t.TempDir()
	env := &plugin.Env{Logger: zap.NewNop(), OutputDir: outDir}

	out, err := writeFile{}.Execute(context.Background(), env, map[string]string{"filepath": "reports/summary.txt", "content": "done"})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])

	data, err := os.ReadFile(filepath.Join(outDir, "reports", "summary.txt"))
	require.NoError(t, err)
	assert.Equal(t, "done", string(data))
}

func TestWriteFile_RejectsEscapes(t *testing.T) {
	env := &plugin.Env{Logger: zap.NewNop(), OutputDir: t.TempDir()}

	for _, name := range []string{"../evil.txt", "a/../../evil.txt", "/etc/passwd"} {
		_, err := writeFile{}.Execute(context.Background(), env, map[string]string{"filepath": name, "content": "x"})
		assert.Error(t, err, name)
	}

	_, err := writeFile{}.Execute(context.Background(), env, map[string]string{"filepath": "ok.txt"})
	assert.Error(t, err, "content is required")
}

type fakeAnalyzer struct {
	got string
	err error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (string, error) {
	f.got = text
	return "summary", f.err
}

func TestTextAnalyze(t *testing.T) {
	a := &fakeAnalyzer{}
	env := &plugin.Env{Logger: zap.NewNop(), Analyzer: a}

	out, err := textAnalyze{}.Execute(context.Background(), env, map[string]string{"text": "Hi Jane", "instruction": "Summarize:"})
	require.NoError(t, err)
	assert.Equal(t, "summary", out["analysis"])
	assert.Equal(t, "Summarize:\n\nHi Jane", a.got)

	a.err = errors.New("down")
	_, err = textAnalyze{}.Execute(context.Background(), env, map[string]string{"text": "Hi"})
	assert.Error(t, err)

	_, err = textAnalyze{}.Execute(context.Background(), &plugin.Env{}, map[string]string{"text": "Hi"})
	assert.Error(t, err)
}

func TestFileSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "quarterly invoice totals")
	indexPath := filepath.Join(t.TempDir(), "dun.bleve")

	idx, err := index.Open(indexPath, nil)
	require.NoError(t, err)
	_, err = idx.Reindex(root)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	env := &plugin.Env{Logger: zap.NewNop(), IndexPath: indexPath}
	out, err := fileSearch{}.Execute(context.Background(), env, map[string]string{"query": "invoice", "limit": "3"})
	require.NoError(t, err)

	hits := out["hits"].([]index.Hit)
	require.Len(t, hits, 1)
	assert.Equal(t, filepath.Join(root, "a.txt"), hits[0].Path)

	_, err = fileSearch{}.Execute(context.Background(), env, map[string]string{})
	assert.Error(t, err)
}

func TestNewRegistryHasBuiltins(t *testing.T) {
	r := NewRegistry()
	var names []string
	for _, info := range r.Infos() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"csv_combine", "file_read", "file_search", "file_write", "imap_fetch", "imap_organize", "text_analyze"}, names)
}
