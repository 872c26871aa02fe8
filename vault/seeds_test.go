package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestExpandVars(t *testing.T) {
	lookup := lookupFrom(map[string]string{"FB_USER": "real", "EMPTY": ""})

	assert.Equal(t, "real", ExpandVars("${FB_USER:-fb_test}", lookup))
	assert.Equal(t, "fb_pass", ExpandVars("${FB_PASS:-fb_pass}", lookup))
	assert.Equal(t, "fallback", ExpandVars("${EMPTY:-fallback}", lookup))
	assert.Equal(t, "", ExpandVars("${UNSET}", lookup))
	assert.Equal(t, "plain", ExpandVars("plain", lookup))
}

func TestDefaultSeeds(t *testing.T) {
	sf, err := ParseSeeds(defaultSeeds, lookupFrom(map[string]string{"TW_USER": "tweeter"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"intranet", "gmail", "outlook", "github"}, Names(sf.Entries))
	assert.Equal(t, []string{"facebook", "twitter", "linkedin"}, Names(sf.Social))
	assert.Equal(t, "fb_test", sf.Social[0].Username)
	assert.Equal(t, "tweeter", sf.Social[1].Username)

	entries := VaultEntries(sf.Entries)
	assert.Equal(t, "https://mail.google.com", entries[1].URI)
	assert.Equal(t, "gh_pass", entries[3].Password)
}

func TestLoadSeeds_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  - name: intranet\n    username: ${DUN_TEST_SEED_USER:-anon}\n"), 0o644))
	t.Setenv("DUN_TEST_SEED_USER", "alice")

	sf, err := LoadSeeds(path)
	require.NoError(t, err)
	require.Len(t, sf.Entries, 1)
	assert.Equal(t, "alice", sf.Entries[0].Username)
	assert.Empty(t, sf.Social)

	_, err = LoadSeeds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseSeeds_RequiresName(t *testing.T) {
	_, err := ParseSeeds([]byte("entries:\n  - username: x\n"), lookupFrom(nil))
	assert.Error(t, err)
}
