package plugin

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ResolveOutputDir creates preferred if needed and checks that files can
// be written into it. When that fails it falls back to a fresh directory
// under the OS temp dir.
func ResolveOutputDir(preferred string, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if preferred != "" {
		err := checkWritable(preferred)
		if err == nil {
			return preferred, nil
		}
		logger.Warn("output directory not writable, using a temporary one",
			zap.String("dir", preferred), zap.Error(err))
	}

	dir, err := os.MkdirTemp("", "dun_output_")
	if err != nil {
		return "", fmt.Errorf("error creating temporary output directory: %w", err)
	}
	return dir, nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".dun_probe_")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
