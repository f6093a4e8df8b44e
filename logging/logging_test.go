package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONLinesUnderAgentLogs(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "lead", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info().Str("event", "llm_call").Msg("test")

	entries, err := os.ReadDir(filepath.Join(dir, Dir))
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one log file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "lead_") {
		t.Errorf("expected file prefixed with agent name, got %s", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, Dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"event":"llm_call"`) {
		t.Errorf("expected event field in log output, got %s", data)
	}
}
