// Filesystem and shell tool handlers (spec §6): bash, read_file,
// write_file, edit_file, set_workdir. Grounded on the teacher's
// tools/read.go, tools/write.go, tools/edit.go, tools/bash.go,
// tools/glob.go, tools/grep.go, tools/list.go — logic kept close to
// verbatim, generalized onto safepath.Validate/AtomicWrite/Shell instead
// of the teacher's private ValidatePath/AtomicWrite/exec.Command, and
// with the teacher's NeedsConfirmation interactive-approval step removed
// since the interactive command-line surface is out of scope (spec §1)
// and dispatch is specified as synchronous, string-returning (spec §4.10).
package kernel

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kaiho/agentkernel/safepath"
)

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".venv":        true,
	"__pycache__":  true,
}

func shouldSkipDir(name string) bool { return skipDirs[name] }

func parseInput[T any](input json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(input, &v); err != nil {
		return v, fmt.Errorf("invalid input: %w", err)
	}
	return v, nil
}

func (k *Kernel) registerFSTools() {
	k.registry.register("bash",
		"Execute a shell command in the working directory. Do not use bash for file operations that a dedicated tool covers.",
		json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"},"timeout":{"type":"integer"}},"required":["command"]}`),
		k.bashTool, tagExplore)

	k.registry.register("read_file",
		"Read file contents with line numbers (1-indexed). Use start_line/end_line for large files.",
		json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"start_line":{"type":"integer"},"end_line":{"type":"integer"}},"required":["path"]}`),
		k.readFileTool, tagReadOnly, tagExplore)

	k.registry.register("write_file",
		"Create or overwrite a file with the given content. Creates parent directories if needed.",
		json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"},"allow_outside":{"type":"boolean"}},"required":["path","content"]}`),
		k.writeFileTool, tagWrite)

	k.registry.register("edit_file",
		"Edit a file by replacing an exact string match. old_str must appear exactly once.",
		json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"old_str":{"type":"string"},"new_str":{"type":"string"},"allow_outside":{"type":"boolean"}},"required":["path","old_str","new_str"]}`),
		k.editFileTool, tagWrite)

	k.registry.register("set_workdir",
		"Change the working directory used to resolve relative paths for subsequent tool calls.",
		json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		k.setWorkdirTool)

	k.registry.register("glob",
		`Fast file pattern matching. Supports "**" for recursive matching. Returns matching paths relative to the working directory.`,
		json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"}},"required":["pattern"]}`),
		k.globTool, tagReadOnly, tagExplore)

	k.registry.register("grep",
		"Search file contents using RE2 regex. Returns matching lines with file paths and line numbers.",
		json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"},"include":{"type":"string"}},"required":["pattern"]}`),
		k.grepTool, tagReadOnly, tagExplore)

	k.registry.register("ls",
		"List directory contents with file/directory indicators and sizes.",
		json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`),
		k.lsTool, tagReadOnly, tagExplore)
}

type bashInput struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout"`
}

const (
	defaultBashTimeout = 30
	maxBashTimeout     = 120
)

func (k *Kernel) bashTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[bashInput](input)
	if err != nil {
		return "", err
	}
	if params.Command == "" {
		return "", fmt.Errorf("command is required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	if timeout > maxBashTimeout {
		timeout = maxBashTimeout
	}

	res := k.shell.Run(ctx, params.Command, time.Duration(timeout)*time.Second)
	if res.Err != nil {
		return "", res.Err
	}
	if res.TimedOut {
		return "", fmt.Errorf("Timeout (%ds)", timeout)
	}
	return res.Output, nil
}

type readFileInput struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func (k *Kernel) readFileTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[readFileInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	absPath, err := safepath.Validate(k.WorkDir, params.Path, true)
	if err != nil {
		return "", err
	}

	file, err := os.Open(absPath)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	startLine := params.StartLine
	if startLine <= 0 {
		startLine = 1
	}
	endLine := params.EndLine
	const maxLines = 500

	var result strings.Builder
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 256*1024), 256*1024)

	lineNum, linesRead, totalLines := 0, 0, 0
	for scanner.Scan() {
		lineNum++
		totalLines = lineNum
		if lineNum < startLine {
			continue
		}
		if endLine > 0 && lineNum > endLine {
			continue
		}
		linesRead++
		if endLine <= 0 && linesRead > maxLines {
			for scanner.Scan() {
				lineNum++
				totalLines = lineNum
			}
			fmt.Fprintf(&result, "\n... (file has %d total lines, showing %d-%d)", totalLines, startLine, startLine+maxLines-1)
			break
		}
		fmt.Fprintf(&result, "%4d | %s\n", lineNum, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if result.Len() == 0 {
		return "File is empty.", nil
	}
	return result.String(), nil
}

type writeFileInput struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	AllowOutside bool   `json:"allow_outside"`
}

func (k *Kernel) writeFileTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[writeFileInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	absPath, err := safepath.Validate(k.WorkDir, params.Path, params.AllowOutside)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := safepath.AtomicWrite(absPath, []byte(params.Content), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("Successfully wrote %s (%d bytes)", params.Path, len(params.Content)), nil
}

type editFileInput struct {
	Path         string `json:"path"`
	OldStr       string `json:"old_str"`
	NewStr       string `json:"new_str"`
	AllowOutside bool   `json:"allow_outside"`
}

func (k *Kernel) editFileTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[editFileInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" || params.OldStr == "" {
		return "", fmt.Errorf("path and old_str are required")
	}
	absPath, err := safepath.Validate(k.WorkDir, params.Path, params.AllowOutside)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	count := strings.Count(content, params.OldStr)
	if count == 0 {
		return "", fmt.Errorf("no match found for old_str in %s", params.Path)
	}
	if count > 1 {
		return "", fmt.Errorf("old_str matches %d times in %s, include more context to make it unique", count, params.Path)
	}
	newContent := strings.Replace(content, params.OldStr, params.NewStr, 1)
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if err := safepath.AtomicWrite(absPath, []byte(newContent), info.Mode()); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("Successfully edited %s", params.Path), nil
}

type setWorkdirInput struct {
	Path string `json:"path"`
}

func (k *Kernel) setWorkdirTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[setWorkdirInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	abs, err := safepath.Validate(k.WorkDir, params.Path, true)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", params.Path)
	}
	k.WorkDir = abs
	k.shell.WorkDir = abs
	return fmt.Sprintf("Working directory set to %s", abs), nil
}

type globInput struct {
	Pattern string `json:"pattern"`
}

func (k *Kernel) globTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[globInput](input)
	if err != nil {
		return "", err
	}
	if params.Pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	const maxResults = 100
	var matches []string

	err = filepath.WalkDir(k.WorkDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(k.WorkDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matched, _ := matchGlob(params.Pattern, rel); matched {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No files matched the pattern.", nil
	}
	var sb strings.Builder
	limit := len(matches)
	truncated := false
	if limit > maxResults {
		limit = maxResults
		truncated = true
	}
	for _, m := range matches[:limit] {
		sb.WriteString(m)
		sb.WriteByte('\n')
	}
	if truncated {
		fmt.Fprintf(&sb, "\n... and %d more matches", len(matches)-maxResults)
	}
	return sb.String(), nil
}

func matchGlob(pattern, name string) (bool, error) {
	if strings.Contains(pattern, "**") {
		return matchDoublestar(pattern, name)
	}
	return filepath.Match(pattern, name)
}

func matchDoublestar(pattern, name string) (bool, error) {
	parts := strings.Split(pattern, "**")
	if len(parts) != 2 {
		return filepath.Match(pattern, name)
	}
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix == "" && suffix == "" {
		return true, nil
	}
	if prefix == "" {
		segments := strings.Split(name, "/")
		for i := range segments {
			subpath := strings.Join(segments[i:], "/")
			if matched, _ := filepath.Match(suffix, subpath); matched {
				return true, nil
			}
			if matched, _ := filepath.Match(suffix, segments[len(segments)-1]); matched {
				return true, nil
			}
		}
		return false, nil
	}
	if suffix == "" {
		return strings.HasPrefix(name, prefix+"/") || name == prefix, nil
	}
	if !strings.HasPrefix(name, prefix+"/") && name != prefix {
		return false, nil
	}
	return matchDoublestar("**/"+suffix, strings.TrimPrefix(name, prefix+"/"))
}

type grepInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
	Include string `json:"include"`
}

func (k *Kernel) grepTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[grepInput](input)
	if err != nil {
		return "", err
	}
	if params.Pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex (RE2 syntax): %w", err)
	}
	searchDir := k.WorkDir
	if params.Path != "" {
		searchDir, err = safepath.Validate(k.WorkDir, params.Path, true)
		if err != nil {
			return "", err
		}
	}

	const maxResults = 50
	var results []string
	totalMatches := 0

	err = filepath.WalkDir(searchDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if params.Include != "" {
			if matched, _ := filepath.Match(params.Include, d.Name()); !matched {
				return nil
			}
		}
		if isBinaryFile(path) {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer file.Close()
		rel, _ := filepath.Rel(k.WorkDir, path)
		rel = filepath.ToSlash(rel)
		scanner := bufio.NewScanner(file)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			if re.MatchString(line) {
				totalMatches++
				if len(results) < maxResults {
					results = append(results, fmt.Sprintf("%s:%d: %s", rel, lineNum, truncateLine(line, 200)))
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No matches found.", nil
	}
	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(r)
		sb.WriteByte('\n')
	}
	if totalMatches > maxResults {
		fmt.Fprintf(&sb, "\n... and %d more matches", totalMatches-maxResults)
	}
	return sb.String(), nil
}

func truncateLine(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return true
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

type lsInput struct {
	Path string `json:"path"`
}

func (k *Kernel) lsTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[lsInput](input)
	if err != nil {
		return "", err
	}
	dir := k.WorkDir
	if params.Path != "" {
		dir, err = safepath.Validate(k.WorkDir, params.Path, true)
		if err != nil {
			return "", err
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read directory: %w", err)
	}
	var sb strings.Builder
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if e.IsDir() {
			fmt.Fprintf(&sb, "  %s/\n", e.Name())
		} else {
			fmt.Fprintf(&sb, "  %-40s %s\n", e.Name(), formatSize(info.Size()))
		}
	}
	if sb.Len() == 0 {
		return "Directory is empty.", nil
	}
	return sb.String(), nil
}

func formatSize(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%dB", b)
	}
}
