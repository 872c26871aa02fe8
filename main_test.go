package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'plain'", shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Facebook", titleCase("facebook"))
	assert.Equal(t, "", titleCase(""))
}

// cliFixture points every configurable path at temp dirs and returns the
// input and output directories.
func cliFixture(t *testing.T) (string, string) {
	t.Helper()
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "file1.csv"), []byte("id,name,value\n1,test,100\n2,example,200\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "file2.csv"), []byte("id,description,amount\n3,item one,10.5\n4,item two,20.75\n"), 0o644))

	t.Setenv("DUN_FALLBACK", "csv")
	t.Setenv("DUN_PLUGINS_MANIFEST", "")
	t.Setenv("DUN_INDEX_PATH", filepath.Join(t.TempDir(), "dun.bleve"))
	t.Setenv("LOG_LEVEL", "error")
	return in, out
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	config := filepath.Join(t.TempDir(), "missing.toml")
	return newApp().Run(append([]string{"dun", "--config", config}, args...))
}

func TestCLI_Combine(t *testing.T) {
	in, out := cliFixture(t)
	target := filepath.Join(out, "all.csv")

	require.NoError(t, runCLI(t, "--input-dir", in, "combine", "--output", target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t,
		"id,name,value,description,amount,source_file\n"+
			"1,test,100,,,file1.csv\n"+
			"2,example,200,,,file1.csv\n"+
			"3,,,item one,10.5,file2.csv\n"+
			"4,,,item two,20.75,file2.csv\n",
		string(data))
}

func TestCLI_CombineEmptyDir(t *testing.T) {
	_, out := cliFixture(t)
	err := runCLI(t, "--input-dir", t.TempDir(), "--output-dir", out, "combine")
	assert.ErrorContains(t, err, "no CSV files found")
}

func TestCLI_RunDegradesWhenLLMFails(t *testing.T) {
	in, out := cliFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_BASE_URL", srv.URL)

	require.NoError(t, runCLI(t, "--input-dir", in, "--output-dir", out, "run", "merge", "everything"))
	assert.FileExists(t, filepath.Join(out, "combined.csv"))

	err := runCLI(t, "--input-dir", in, "--output-dir", out, "run", "--fallback", "none", "merge")
	assert.ErrorContains(t, err, "LLM did not produce a usable action")
}

func TestCLI_Batch(t *testing.T) {
	in, out := cliFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_BASE_URL", srv.URL)

	commands := filepath.Join(t.TempDir(), "commands.txt")
	require.NoError(t, os.WriteFile(commands, []byte("# comment\ncombine csv\nsummarize mail\n"), 0o644))
	logs := filepath.Join(t.TempDir(), "logs")

	require.NoError(t, runCLI(t, "--input-dir", in, "--output-dir", out, "batch", commands, logs))
	assert.FileExists(t, filepath.Join(logs, "command_001.log"))
	assert.FileExists(t, filepath.Join(logs, "command_002.log"))

	assert.Error(t, runCLI(t, "batch", commands))
}

func TestCLI_VaultCheck(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the bw binary")
	}
	cliFixture(t)
	dir := t.TempDir()
	bw := filepath.Join(dir, "bw")
	script := "#!/bin/sh\necho '[{\"name\":\"intranet\",\"login\":{\"username\":\"intranet_user\",\"password\":\"intranet_pass\"}}]'\n"
	require.NoError(t, os.WriteFile(bw, []byte(script), 0o755))
	session := filepath.Join(dir, "session.txt")
	require.NoError(t, os.WriteFile(session, []byte("tok"), 0o600))

	t.Setenv("BW_BIN", bw)
	t.Setenv("BW_SESSION_FILE", session)
	t.Setenv("BW_SESSION_IDENTITY", "")

	require.NoError(t, runCLI(t, "vault", "check", "intranet"))

	t.Setenv("BW_SESSION_FILE", filepath.Join(dir, "none.txt"))
	assert.ErrorContains(t, runCLI(t, "vault", "check"), "vault is locked")
}
