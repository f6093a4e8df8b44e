package taskboard

import (
	"strings"
	"testing"
)

func TestCreateAssignsIncrementingIDs(t *testing.T) {
	b := New(t.TempDir())
	t1, err := b.Create("indexer", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if t1.ID != 1 {
		t.Errorf("expected id 1, got %d", t1.ID)
	}
	t2, err := b.Create("tests", "unit")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if t2.ID != 2 {
		t.Errorf("expected id 2, got %d", t2.ID)
	}
}

func TestListRendersCreatedTasks(t *testing.T) {
	b := New(t.TempDir())
	b.Create("indexer", "")
	b.Create("tests", "unit")
	out, err := b.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "[ ] #1: indexer") || !strings.Contains(out, "[ ] #2: tests") {
		t.Errorf("unexpected list output: %q", out)
	}
}

func TestDependencySweepOnCompletion(t *testing.T) {
	b := New(t.TempDir())
	a, _ := b.Create("a", "")
	bb, _ := b.Create("b", "")
	if _, err := b.Update(bb.ID, UpdateFields{AddBlockedBy: []int{a.ID}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := b.Update(a.ID, UpdateFields{Status: StatusCompleted}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := b.Get(bb.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.BlockedBy) != 0 {
		t.Errorf("expected blockedBy cleared, got %v", got.BlockedBy)
	}
}

func TestClaimSetsOwnerAndInProgress(t *testing.T) {
	b := New(t.TempDir())
	task, _ := b.Create("scan", "")
	got, err := b.Claim(task.ID, "w")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got.Owner != "w" || got.Status != StatusInProgress {
		t.Errorf("unexpected task after claim: %+v", got)
	}
}

func TestClaimableExcludesOwnedAndBlocked(t *testing.T) {
	b := New(t.TempDir())
	a, _ := b.Create("a", "")
	bTask, _ := b.Create("b", "")
	b.Update(bTask.ID, UpdateFields{AddBlockedBy: []int{a.ID}})
	b.Claim(a.ID, "w")

	claimable, err := b.ClaimableTasks()
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	if len(claimable) != 0 {
		t.Errorf("expected no claimable tasks, got %+v", claimable)
	}

	b.Update(a.ID, UpdateFields{Status: StatusCompleted})
	claimable, err = b.ClaimableTasks()
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	if len(claimable) != 1 || claimable[0].ID != bTask.ID {
		t.Errorf("expected task b claimable, got %+v", claimable)
	}
}

func TestDeleteRemovesFileAndClearsBlockedBy(t *testing.T) {
	b := New(t.TempDir())
	a, _ := b.Create("a", "")
	bTask, _ := b.Create("b", "")
	b.Update(bTask.ID, UpdateFields{AddBlockedBy: []int{a.ID}})
	if _, err := b.Update(a.ID, UpdateFields{Status: StatusDeleted}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Get(a.ID); err == nil {
		t.Error("expected deleted task to be gone")
	}
	got, _ := b.Get(bTask.ID)
	if len(got.BlockedBy) != 0 {
		t.Errorf("expected blockedBy cleared after delete, got %v", got.BlockedBy)
	}
}
