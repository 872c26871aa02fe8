package index

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReindexAndSearch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "invoice.csv"), []byte("id,description,amount\n3,invoice for cloud hosting,10.5\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("meeting tomorrow about the project timeline"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0x00, 0x01, 0x02, 0xff, 0x00}, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/hosting"), 0o644))

	idx, err := Open(filepath.Join(t.TempDir(), "test.bleve"), nil)
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Reindex(root)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := idx.Search("hosting", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, filepath.Join(root, "invoice.csv"), hits[0].Path)
	assert.Contains(t, hits[0].Snippet, "cloud hosting")

	hits, err = idx.Search("elephant", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOpenRecreatesCorruptIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.bleve")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "index_meta.json"), []byte("not json"), 0o644))

	idx, err := Open(path, nil)
	require.NoError(t, err)
	assert.NoError(t, idx.Close())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "abc", snippet("  abc ", 10))
	assert.Equal(t, "ab...", snippet("abcdef", 2))
}

func TestSnippet_KeepsRunesWhole(t *testing.T) {
	got := snippet("zażółć gęślą jaźń", 3)
	assert.Equal(t, "za...", got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "zaż...", snippet("zażółć gęślą jaźń", 4))
}
