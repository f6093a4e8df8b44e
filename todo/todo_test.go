package todo

import "testing"

func TestUpdateRejectsTooManyItems(t *testing.T) {
	tr := New()
	items := make([]Item, MaxItems+1)
	for i := range items {
		items[i] = Item{Content: "x", ActiveForm: "xing", Status: StatusPending}
	}
	if err := tr.Update(items); err == nil {
		t.Fatal("expected error for over-budget list")
	}
}

func TestUpdateRejectsMultipleInProgress(t *testing.T) {
	tr := New()
	items := []Item{
		{Content: "a", ActiveForm: "a-ing", Status: StatusInProgress},
		{Content: "b", ActiveForm: "b-ing", Status: StatusInProgress},
	}
	if err := tr.Update(items); err == nil {
		t.Fatal("expected error for two in_progress items")
	}
}

func TestUpdateRejectsEmptyContent(t *testing.T) {
	tr := New()
	items := []Item{{Content: "", ActiveForm: "a-ing", Status: StatusPending}}
	if err := tr.Update(items); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestUpdateAcceptsValidList(t *testing.T) {
	tr := New()
	items := []Item{
		{Content: "a", ActiveForm: "a-ing", Status: StatusInProgress},
		{Content: "b", ActiveForm: "b-ing", Status: StatusPending},
	}
	if err := tr.Update(items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.Items()) != 2 {
		t.Errorf("expected 2 items, got %d", len(tr.Items()))
	}
}

func TestUpdateLeavesTrackerUntouchedOnFailure(t *testing.T) {
	tr := New()
	good := []Item{{Content: "a", ActiveForm: "a-ing", Status: StatusPending}}
	if err := tr.Update(good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []Item{{Content: "", ActiveForm: "", Status: StatusPending}}
	if err := tr.Update(bad); err == nil {
		t.Fatal("expected validation error")
	}
	if len(tr.Items()) != 1 {
		t.Errorf("tracker should be unchanged after failed update, got %d items", len(tr.Items()))
	}
}

func TestHasOpenItems(t *testing.T) {
	tr := New()
	if tr.HasOpenItems() {
		t.Error("empty tracker should have no open items")
	}
	tr.Update([]Item{{Content: "a", ActiveForm: "a-ing", Status: StatusPending}})
	if !tr.HasOpenItems() {
		t.Error("expected open items")
	}
	tr.Update([]Item{{Content: "a", ActiveForm: "a-ing", Status: StatusCompleted}})
	if tr.HasOpenItems() {
		t.Error("expected no open items once completed")
	}
}
