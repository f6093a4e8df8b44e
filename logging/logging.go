// Package logging provides the per-agent structured call log spec §6
// names ("a structured call log"). Grounded directly on spec §6 — the
// teacher logs nothing beyond terminal UI output, so there is no
// teacher file to adapt here.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Dir is the working-directory-relative path every agent's call log is
// written under.
const Dir = ".agent_logs"

// New opens (creating parent directories as needed) a JSON-lines log
// file for agent under workDir/.agent_logs and returns a zerolog.Logger
// bound to it, tagged with an "agent" field. console additionally tees
// to a human-readable zerolog.ConsoleWriter on stderr — set this for
// the lead's own process, leave it false for teammates/subagents whose
// output would otherwise interleave with the lead's terminal.
func New(workDir, agent string, console bool) (zerolog.Logger, error) {
	dir := filepath.Join(workDir, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return zerolog.Logger{}, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.jsonl", agent, time.Now().Unix()))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("open log file: %w", err)
	}

	var writer zerolog.LevelWriter
	if console {
		writer = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		writer = zerolog.MultiLevelWriter(f)
	}

	logger := zerolog.New(writer).With().Timestamp().Str("agent", agent).Logger()
	return logger, nil
}
