package safepath

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	if _, err := Validate(dir, "../../etc/passwd", false); err == nil {
		t.Fatal("expected error for path escaping workDir")
	}
}

func TestValidateAllowsOutsideWhenOptedIn(t *testing.T) {
	dir := t.TempDir()
	if _, err := Validate(dir, "/etc/passwd", true); err != nil {
		t.Fatalf("expected no error with allowOutside, got %v", err)
	}
}

func TestValidateAllowsDescendant(t *testing.T) {
	dir := t.TempDir()
	got, err := Validate(dir, "sub/file.txt", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(dir, "sub", "file.txt")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAtomicWriteReplacesContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "f.txt")

	if err := AtomicWrite(target, []byte("first"), 0644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := AtomicWrite(target, []byte("second"), 0644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("got %q, want %q", data, "second")
	}
}

func TestIsDangerous(t *testing.T) {
	cases := map[string]bool{
		"rm -rf /":           true,
		"sudo rm foo":        true,
		"echo hi":            false,
		"git status":         false,
		"reboot now":         true,
		"cat x > /dev/sda":   true,
	}
	for cmd, want := range cases {
		if got := IsDangerous(cmd); got != want {
			t.Errorf("IsDangerous(%q) = %v, want %v", cmd, got, want)
		}
	}
}

func TestShellRunTimesOut(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	s := NewShell(t.TempDir())
	res := s.Run(context.Background(), "sleep 2", 50*time.Millisecond)
	if !res.TimedOut {
		t.Errorf("expected timeout, got %+v", res)
	}
}

func TestShellRunBlocksDangerousCommand(t *testing.T) {
	s := NewShell(t.TempDir())
	res := s.Run(context.Background(), "sudo rm -rf /tmp/x", time.Second)
	if res.Err == nil {
		t.Fatal("expected dangerous command to be blocked")
	}
}
