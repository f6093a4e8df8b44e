// Package todo implements the in-memory ordered checklist (spec §3/§4.3):
// single-in-progress invariant, whole-list atomic replace, typed validation
// errors. Grounded on the teacher's agent/task.go WriteTasks/UpdateTask
// pattern, generalized from a single-Agent field into a standalone,
// injectable component per the kernel's "no package-level mutable state"
// design (Design Notes).
package todo

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kaiho/agentkernel/kerrors"
)

// Status is one of the three lifecycle states an Item may be in.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// MaxItems is the hard cap spec §3 names.
const MaxItems = 20

// Item is a single checklist entry.
type Item struct {
	Content    string `json:"content"`
	Status     Status `json:"status"`
	ActiveForm string `json:"activeForm"`
}

// Tracker owns the current list. Zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	items []Item
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Update validates the proposed list and, only if every item passes,
// atomically replaces the tracker's contents. On validation failure the
// tracker is left untouched.
func (t *Tracker) Update(items []Item) error {
	if err := validate(items); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append([]Item(nil), items...)
	return nil
}

func validate(items []Item) error {
	if len(items) > MaxItems {
		return kerrors.NewValidationError("items", fmt.Sprintf("at most %d items allowed, got %d", MaxItems, len(items)))
	}
	inProgress := 0
	for i, it := range items {
		if strings.TrimSpace(it.Content) == "" {
			return kerrors.NewValidationError(fmt.Sprintf("items[%d].content", i), "must not be empty")
		}
		if strings.TrimSpace(it.ActiveForm) == "" {
			return kerrors.NewValidationError(fmt.Sprintf("items[%d].activeForm", i), "must not be empty")
		}
		switch it.Status {
		case StatusPending, StatusInProgress, StatusCompleted:
		default:
			return kerrors.NewValidationError(fmt.Sprintf("items[%d].status", i), fmt.Sprintf("invalid status %q", it.Status))
		}
		if it.Status == StatusInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		return kerrors.NewValidationError("items", fmt.Sprintf("at most 1 item may be in_progress, got %d", inProgress))
	}
	return nil
}

// Items returns a snapshot of the current list.
func (t *Tracker) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Item(nil), t.items...)
}

// HasOpenItems reports whether any item is not yet completed. Used by the
// nag policy (spec §4.11).
func (t *Tracker) HasOpenItems() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range t.items {
		if it.Status != StatusCompleted {
			return true
		}
	}
	return false
}

// Summary renders the list as the text a tool_result shows the model.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.items) == 0 {
		return "No todos."
	}
	var sb strings.Builder
	pending, inProgress, completed := 0, 0, 0
	for i, it := range t.items {
		switch it.Status {
		case StatusPending:
			pending++
			fmt.Fprintf(&sb, "  [ ] %d. %s\n", i+1, it.Content)
		case StatusInProgress:
			inProgress++
			fmt.Fprintf(&sb, "  [~] %d. %s\n", i+1, it.ActiveForm)
		case StatusCompleted:
			completed++
			fmt.Fprintf(&sb, "  [x] %d. %s\n", i+1, it.Content)
		}
	}
	fmt.Fprintf(&sb, "\n%d todos (%d pending, %d in progress, %d completed)",
		len(t.items), pending, inProgress, completed)
	return sb.String()
}
