package plugins

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tluyben/dun/plugin"
)

const (
	testData1 = "id,name,value\n1,test,100\n2,example,200\n"
	testData2 = "id,description,amount\n3,item one,10.5\n4,item two,20.75\n"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCombineCSV_UnionOfColumns(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "file1.csv", testData1)
	writeFile(t, in, "file2.csv", testData2)
	writeFile(t, in, "notes.txt", "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(in, "sub"), 0o755))
	writeFile(t, filepath.Join(in, "sub"), "deep.csv", testData1)

	out := filepath.Join(t.TempDir(), "nested", "combined.csv")
	res, err := CombineCSV(context.Background(), nil, CSVCombineParams{InputDir: in, OutputFile: out})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, []string{"file1.csv", "file2.csv"}, res.Files)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, []string{"id", "name", "value", "description", "amount", "source_file"}, res.Columns)

	records := readRecords(t, out)
	require.Len(t, records, 5)
	assert.Equal(t, res.Columns, records[0])
	assert.Equal(t, []string{"1", "test", "100", "", "", "file1.csv"}, records[1])
	assert.Equal(t, []string{"2", "example", "200", "", "", "file1.csv"}, records[2])
	assert.Equal(t, []string{"3", "", "", "item one", "10.5", "file2.csv"}, records[3])
	assert.Equal(t, []string{"4", "", "", "item two", "20.75", "file2.csv"}, records[4])
}

func TestCombineCSV_EmptyDirectory(t *testing.T) {
	_, err := CombineCSV(context.Background(), nil, CSVCombineParams{
		InputDir:   t.TempDir(),
		OutputFile: filepath.Join(t.TempDir(), "combined.csv"),
	})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestCombineCSV_MissingDirectory(t *testing.T) {
	_, err := CombineCSV(context.Background(), nil, CSVCombineParams{
		InputDir:   filepath.Join(t.TempDir(), "nope"),
		OutputFile: filepath.Join(t.TempDir(), "combined.csv"),
	})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestCombineCSV_SkipsMalformedFile(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "good.csv", testData1)
	writeFile(t, in, "bad.csv", "id,name\n1,two,three,four\n")

	core, logs := observer.New(zapcore.ErrorLevel)
	out := filepath.Join(t.TempDir(), "combined.csv")

	res, err := CombineCSV(context.Background(), zap.New(core), CSVCombineParams{InputDir: in, OutputFile: out})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, []string{"good.csv"}, res.Files)
	assert.Equal(t, []string{"bad.csv"}, res.Skipped)

	records := readRecords(t, out)
	require.Len(t, records, 3)
	for _, r := range records[1:] {
		assert.Equal(t, "good.csv", r[len(r)-1])
	}

	entries := logs.FilterMessage("skipping malformed CSV file").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["file"], "bad.csv")
}

func TestCombineCSV_AllMalformed(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "empty.csv", "")
	writeFile(t, in, "dup.csv", "a,a\n1,2\n")

	_, err := CombineCSV(context.Background(), nil, CSVCombineParams{
		InputDir:   in,
		OutputFile: filepath.Join(t.TempDir(), "combined.csv"),
	})
	assert.ErrorIs(t, err, ErrNoValidFiles)
}

func TestCombineCSV_ExplicitFiles(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "file1.csv", testData1)
	writeFile(t, in, "file2.csv", testData2)

	out := filepath.Join(t.TempDir(), "only2.csv")
	res, err := CombineCSV(context.Background(), nil, CSVCombineParams{
		InputDir:     in,
		Files:        []string{"file2.csv"},
		OutputFile:   out,
		SourceColumn: "origin",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, []string{"id", "description", "amount", "origin"}, res.Columns)
}

func TestCSVCombineHandler_Defaults(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "file1.csv", testData1)
	outDir := t.TempDir()

	env := &plugin.Env{Logger: zap.NewNop(), InputDir: in, OutputDir: outDir}
	out, err := csvCombine{}.Execute(context.Background(), env, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "combined.csv"), out["output_file"])
	assert.Equal(t, 2, out["rows"])
	assert.FileExists(t, filepath.Join(outDir, "combined.csv"))
}

func TestFallbackDescriptor(t *testing.T) {
	d := FallbackDescriptor("data")
	assert.Equal(t, CSVCombineName, d.Name)
	assert.Equal(t, "data", d.Parameters["input_dir"])
	assert.Empty(t, d.Code)
}

func TestListParam(t *testing.T) {
	assert.Nil(t, listParam(map[string]string{}, "files"))
	assert.Equal(t, []string{"a.csv", "b.csv"}, listParam(map[string]string{"files": "a.csv, b.csv,"}, "files"))
	assert.Equal(t, []string{"a.csv", "b.csv"}, listParam(map[string]string{"files": `["a.csv","b.csv"]`}, "files"))
}
