package background

import (
	"strings"
	"testing"
	"time"
)

func TestRunCompletesAndNotifies(t *testing.T) {
	r := New(t.TempDir())
	id := r.Run("echo hello", 5*time.Second)
	if len(id) != 8 {
		t.Fatalf("expected 8-char id, got %q", id)
	}

	deadline := time.Now().Add(2 * time.Second)
	var notes []Notification
	for time.Now().Before(deadline) {
		notes = r.Drain()
		if len(notes) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}
	if notes[0].Status != StatusCompleted {
		t.Errorf("expected completed, got %s", notes[0].Status)
	}
	if !strings.Contains(notes[0].Result, "hello") {
		t.Errorf("expected result to contain output, got %q", notes[0].Result)
	}
}

func TestCheckReportsUnknownJob(t *testing.T) {
	r := New(t.TempDir())
	out := r.Check("deadbeef")
	if !strings.HasPrefix(out, "Error:") {
		t.Errorf("expected error for unknown job, got %q", out)
	}
}

func TestDrainIsNonBlockingWhenEmpty(t *testing.T) {
	r := New(t.TempDir())
	notes := r.Drain()
	if len(notes) != 0 {
		t.Errorf("expected no notifications, got %+v", notes)
	}
}

func TestRunBlocksDangerousCommand(t *testing.T) {
	r := New(t.TempDir())
	id := r.Run("sudo rm -rf /tmp/x", 2*time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(r.Check(id), string(StatusError)) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(r.Check(id), string(StatusError)) {
		t.Errorf("expected dangerous command to error, got %q", r.Check(id))
	}
}
