package flow

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type BatchStatus struct {
	Command string `json:"command"`
	LogFile string `json:"log_file"`
	OK      bool   `json:"ok"`
}

// ReadCommands returns the non-empty, non-comment lines of path.
func ReadCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening commands file: %w", err)
	}
	defer f.Close()

	var commands []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading commands file: %w", err)
	}
	return commands, nil
}

// Batch dispatches every command of commandsFile in order and writes one
// command_NNN.log per command into outputDir. A failed command is recorded
// and the batch moves on.
func (fe *FlowExecutor) Batch(ctx context.Context, commandsFile, outputDir string) ([]BatchStatus, error) {
	commands, err := ReadCommands(commandsFile)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}

	statuses := make([]BatchStatus, 0, len(commands))
	for i, cmd := range commands {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}
		fe.Logger.Info("batch command", zap.Int("index", i+1), zap.Int("total", len(commands)), zap.String("command", cmd))

		var body string
		status := "SUCCESS"
		result, err := fe.Dispatch(ctx, cmd)
		if err != nil {
			status = "ERROR"
			body = fmt.Sprintf("Command: %s\n\nError: %s", cmd, err)
		} else {
			body = fmt.Sprintf("Command: %s\n\nResult:\n%s", cmd, formatResult(result))
		}

		logFile := filepath.Join(outputDir, fmt.Sprintf("command_%03d.log", i+1))
		if err := os.WriteFile(logFile, []byte(body+"\n\nStatus: "+status+"\n"), 0o644); err != nil {
			return statuses, fmt.Errorf("error writing %s: %w", logFile, err)
		}
		statuses = append(statuses, BatchStatus{Command: cmd, LogFile: logFile, OK: status == "SUCCESS"})
	}
	return statuses, nil
}

func formatResult(result *Result) string {
	if result == nil || result.Output == nil {
		return "No output"
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", result.Output)
	}
	return string(data)
}
