package policy

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadTOMLMissingFileReturnsDefaults(t *testing.T) {
	pol, err := LoadTOML(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !reflect.DeepEqual(pol, Default()) {
		t.Errorf("expected defaults on missing file, got %+v", pol)
	}
}

func TestLoadTOMLOverlaysFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.toml")
	content := `
AutoCompactThreshold = 50000
ShellDenylist = ["curl", "wget"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write toml: %v", err)
	}

	pol, err := LoadTOML(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pol.AutoCompactThreshold != 50000 {
		t.Errorf("expected overridden threshold 50000, got %d", pol.AutoCompactThreshold)
	}
	if pol.BackgroundMaxResultChars != Default().BackgroundMaxResultChars {
		t.Errorf("expected untouched field to keep its default, got %d", pol.BackgroundMaxResultChars)
	}
	if len(pol.ShellDenylist) != 2 || pol.ShellDenylist[0] != "curl" {
		t.Errorf("unexpected denylist: %+v", pol.ShellDenylist)
	}
}
