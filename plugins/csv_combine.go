// plugins/csv_combine.go

package plugins

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tluyben/dun/plugin"
	"github.com/tluyben/dun/types"
)

const CSVCombineName = "csv_combine"

var (
	ErrNoFiles      = errors.New("no CSV files found")
	ErrNoValidFiles = errors.New("no CSV file could be parsed")
)

type CSVCombineParams struct {
	InputDir     string
	Files        []string
	OutputFile   string
	SourceColumn string
}

type CSVCombineResult struct {
	OutputFile string   `json:"output_file"`
	Rows       int      `json:"rows"`
	Columns    []string `json:"columns"`
	Files      []string `json:"files"`
	Skipped    []string `json:"skipped"`
}

func (r *CSVCombineResult) toMap() map[string]interface{} {
	return map[string]interface{}{
		"output_file": r.OutputFile,
		"rows":        r.Rows,
		"columns":     r.Columns,
		"files":       r.Files,
		"skipped":     r.Skipped,
	}
}

type csvCombine struct{}

func init() {
	registerBuiltin(csvCombine{})
}

func (csvCombine) Info() types.HandlerInfo {
	return types.HandlerInfo{
		Name:        CSVCombineName,
		Description: "Combine all CSV files of a directory into one file, union of columns, each row tagged with its source file",
		Input: []types.Property{
			{Name: "input_dir", Type: "string"},
			{Name: "files", Type: "string"},
			{Name: "output_file", Type: "string"},
			{Name: "source_column", Type: "string"},
		},
		Output: []types.Property{
			{Name: "output_file", Type: "string"},
			{Name: "rows", Type: "number"},
			{Name: "columns", Type: "array"},
			{Name: "files", Type: "array"},
			{Name: "skipped", Type: "array"},
		},
	}
}

func (csvCombine) Execute(ctx context.Context, env *plugin.Env, params map[string]string) (map[string]interface{}, error) {
	outputFile, err := withinDir(env.OutputDir, stringParam(params, "output_file", "combined.csv"))
	if err != nil {
		return nil, err
	}
	p := CSVCombineParams{
		InputDir:     stringParam(params, "input_dir", env.InputDir),
		Files:        listParam(params, "files"),
		OutputFile:   outputFile,
		SourceColumn: stringParam(params, "source_column", "source_file"),
	}
	res, err := CombineCSV(ctx, env.Logger, p)
	if err != nil {
		return nil, err
	}
	return res.toMap(), nil
}

// FallbackDescriptor is the built-in descriptor used when the LLM cannot
// produce one.
func FallbackDescriptor(inputDir string) *types.ActionDescriptor {
	return &types.ActionDescriptor{
		Name:         CSVCombineName,
		Description:  "Combine CSV files from the input directory",
		Dependencies: []string{},
		Parameters:   map[string]string{"input_dir": inputDir},
	}
}

type csvTable struct {
	name   string
	header []string
	rows   [][]string
}

// CombineCSV concatenates the CSV files named by p into p.OutputFile. A file
// that fails to parse is logged and skipped.
func CombineCSV(ctx context.Context, logger *zap.Logger, p CSVCombineParams) (*CSVCombineResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.SourceColumn == "" {
		p.SourceColumn = "source_file"
	}
	if p.OutputFile == "" {
		return nil, fmt.Errorf("invalid input: output_file is required")
	}

	files := append([]string(nil), p.Files...)
	if len(files) == 0 {
		var err error
		files, err = findCSVFiles(p.InputDir)
		if err != nil {
			return nil, err
		}
	} else if p.InputDir != "" {
		for i, f := range files {
			if !filepath.IsAbs(f) {
				files[i] = filepath.Join(p.InputDir, f)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, p.InputDir)
	}

	res := &CSVCombineResult{OutputFile: p.OutputFile}
	var tables []csvTable
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, err := readCSV(path)
		if err != nil {
			logger.Error("skipping malformed CSV file", zap.String("file", path), zap.Error(err))
			res.Skipped = append(res.Skipped, filepath.Base(path))
			continue
		}
		logger.Debug("read CSV file", zap.String("file", path), zap.Int("rows", len(table.rows)))
		tables = append(tables, table)
		res.Files = append(res.Files, table.name)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %d file(s) skipped", ErrNoValidFiles, len(res.Skipped))
	}

	res.Columns = unionColumns(tables, p.SourceColumn)
	if err := writeCombined(p.OutputFile, res.Columns, tables, p.SourceColumn); err != nil {
		return nil, err
	}
	for _, t := range tables {
		res.Rows += len(t.rows)
	}

	logger.Info("combined CSV files",
		zap.String("output", p.OutputFile),
		zap.Int("files", len(tables)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("rows", res.Rows))
	return res, nil
}

func findCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory %s does not exist", ErrNoFiles, dir)
		}
		return nil, fmt.Errorf("error reading directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readCSV(path string) (csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return csvTable{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return csvTable{}, fmt.Errorf("empty file")
	}
	if err != nil {
		return csvTable{}, err
	}
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return csvTable{}, fmt.Errorf("column %d has an empty name", i+1)
		}
		if seen[h] {
			return csvTable{}, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
		header[i] = h
	}

	rows, err := r.ReadAll()
	if err != nil {
		return csvTable{}, err
	}
	return csvTable{name: filepath.Base(path), header: header, rows: rows}, nil
}

func unionColumns(tables []csvTable, sourceColumn string) []string {
	var columns []string
	seen := map[string]bool{sourceColumn: true}
	for _, t := range tables {
		for _, h := range t.header {
			if !seen[h] {
				seen[h] = true
				columns = append(columns, h)
			}
		}
	}
	return append(columns, sourceColumn)
}

func writeCombined(path string, columns []string, tables []csvTable, sourceColumn string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return err
	}

	record := make([]string, len(columns))
	for _, t := range tables {
		index := make(map[string]int, len(t.header))
		for i, h := range t.header {
			index[h] = i
		}
		for _, row := range t.rows {
			for i, col := range columns {
				record[i] = ""
				if col == sourceColumn {
					record[i] = t.name
				} else if j, ok := index[col]; ok {
					record[i] = row[j]
				}
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
