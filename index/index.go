// Package index keeps a bleve full-text index of the text files dun reads
// and writes, so handlers and the CLI can search them.
package index

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"go.uber.org/zap"
)

const maxBatchSize = 100

type Index struct {
	path   string
	idx    bleve.Index
	logger *zap.Logger
}

type Hit struct {
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

type document struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Open opens the index at path, creating it when it does not exist and
// recreating it when it cannot be opened.
func Open(path string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, err := openOrCreate(path, logger)
	if err != nil {
		return nil, err
	}
	return &Index{path: path, idx: idx, logger: logger}, nil
}

func openOrCreate(path string, logger *zap.Logger) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		logger.Info("index doesn't exist, creating a new one", zap.String("path", path))
		idx, err = bleve.New(path, bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("error creating new index: %w", err)
		}
	} else if err != nil {
		logger.Warn("error opening index, recreating", zap.String("path", path), zap.Error(err))
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("error deleting corrupted index: %w", err)
		}
		idx, err = bleve.New(path, bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("error creating new index after deletion: %w", err)
		}
	}
	return idx, nil
}

func (i *Index) Close() error {
	return i.idx.Close()
}

// Reindex drops the index and indexes every text file under root.
func (i *Index) Reindex(root string) (int, error) {
	if err := i.idx.Close(); err != nil {
		i.logger.Warn("error closing index", zap.Error(err))
	}
	if err := os.RemoveAll(i.path); err != nil {
		return 0, fmt.Errorf("error deleting index directory: %w", err)
	}
	idx, err := openOrCreate(i.path, i.logger)
	if err != nil {
		return 0, err
	}
	i.idx = idx

	absIndex, _ := filepath.Abs(i.path)
	batch := i.idx.NewBatch()
	indexed := 0

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			i.logger.Warn("error accessing path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if info.IsDir() {
			abs, _ := filepath.Abs(path)
			if info.Name() == ".git" || abs == absIndex {
				return filepath.SkipDir
			}
			return nil
		}
		if !isTextFile(path, i.logger) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			i.logger.Warn("error reading file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if err := batch.Index(path, document{ID: path, Content: string(content)}); err != nil {
			i.logger.Warn("error adding document to batch", zap.String("path", path), zap.Error(err))
			return nil
		}
		indexed++
		i.logger.Debug("added to batch", zap.String("path", path))

		if batch.Size() >= maxBatchSize {
			if err := i.idx.Batch(batch); err != nil {
				return fmt.Errorf("error indexing batch: %w", err)
			}
			batch = i.idx.NewBatch()
		}
		return nil
	})
	if err != nil {
		return indexed, err
	}

	if batch.Size() > 0 {
		if err := i.idx.Batch(batch); err != nil {
			return indexed, fmt.Errorf("error indexing final batch: %w", err)
		}
	}
	i.logger.Info("indexing complete", zap.Int("documents", indexed))
	return indexed, nil
}

func (i *Index) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	req.Fields = []string{"content"}

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("error performing search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Path: h.ID, Score: h.Score}
		if content, ok := h.Fields["content"].(string); ok {
			hit.Snippet = snippet(content, 200)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func isTextFile(path string, logger *zap.Logger) bool {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("error opening file", zap.String("path", path), zap.Error(err))
		return false
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil || n == 0 {
		return false
	}

	contentType := http.DetectContentType(buffer[:n])
	return strings.HasPrefix(contentType, "text/")
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
