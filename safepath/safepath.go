// Package safepath provides path containment for file tools and an atomic
// whole-file replace primitive shared by the kernel's whole-file stores
// (task board, team config) and the write_file/edit_file tools. Inbox
// files are append-only and do not use it.
package safepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Validate resolves requestedPath against workDir and rejects paths that
// escape it, unless allowOutside is true. Read operations pass
// allowOutside=true (spec §6: "read operations always permit outside
// paths"); write/edit operations pass false unless the caller explicitly
// opted in.
func Validate(workDir, requestedPath string, allowOutside bool) (string, error) {
	var absPath string
	if filepath.IsAbs(requestedPath) {
		absPath = filepath.Clean(requestedPath)
	} else {
		absPath = filepath.Clean(filepath.Join(workDir, requestedPath))
	}

	if allowOutside {
		return absPath, nil
	}

	rel, err := filepath.Rel(workDir, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is outside the working directory", requestedPath)
	}
	return absPath, nil
}

// AtomicWrite writes content to targetPath using a temp-file-then-rename so
// concurrent readers never observe a partial write.
func AtomicWrite(targetPath string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".atomic-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	tmpPath = ""
	return nil
}
