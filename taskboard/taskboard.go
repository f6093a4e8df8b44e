// Package taskboard implements the durable, file-backed Task store (spec
// §3/§4.4): one JSON file per task under a tasks directory, a dependency
// sweep on completion, and a single in-memory mutex serializing every
// mutation. Grounded on the teacher's agent/session.go write-temp-then-
// rename persistence idiom (reused here via safepath.AtomicWrite) and
// generalized from one big session file to many small per-id task files.
package taskboard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kaiho/agentkernel/kerrors"
	"github.com/kaiho/agentkernel/safepath"
)

// Status is a Task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDeleted    Status = "deleted"
)

// Task is the durable record spec §3 describes.
type Task struct {
	ID          int      `json:"id"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Owner       string   `json:"owner"`
	BlockedBy   []int    `json:"blocked_by"`
	Blocks      []int    `json:"blocks"`
}

// Board owns every task file under dir. All mutations serialize through mu.
type Board struct {
	mu  sync.Mutex
	dir string
}

// New returns a Board rooted at dir (typically "<workDir>/.tasks"). The
// directory is created lazily on first write.
func New(dir string) *Board {
	return &Board{dir: dir}
}

func (b *Board) path(id int) string {
	return filepath.Join(b.dir, fmt.Sprintf("task_%d.json", id))
}

func (b *Board) ensureDir() error {
	return os.MkdirAll(b.dir, 0755)
}

// load reads every task file currently on disk. Caller must hold mu.
func (b *Board) load() (map[int]*Task, error) {
	out := map[int]*Task{}
	entries, err := os.ReadDir(b.dir)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tasks dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "task_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.dir, e.Name()))
		if err != nil {
			continue
		}
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		out[t.ID] = &t
	}
	return out, nil
}

func (b *Board) write(t *Task) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return safepath.AtomicWrite(b.path(t.ID), data, 0644)
}

// Create allocates the next integer id (max existing + 1) and writes a new
// pending, unowned task file.
func (b *Board) Create(subject, description string) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureDir(); err != nil {
		return nil, err
	}
	tasks, err := b.load()
	if err != nil {
		return nil, err
	}
	maxID := 0
	for id := range tasks {
		if id > maxID {
			maxID = id
		}
	}
	t := &Task{
		ID:          maxID + 1,
		Subject:     subject,
		Description: description,
		Status:      StatusPending,
		BlockedBy:   []int{},
		Blocks:      []int{},
	}
	if err := b.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a single task by id.
func (b *Board) Get(id int) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tasks, err := b.load()
	if err != nil {
		return nil, err
	}
	t, ok := tasks[id]
	if !ok {
		return nil, kerrors.NewValidationError("id", fmt.Sprintf("task %d not found", id))
	}
	return t, nil
}

// UpdateFields describes a non-exhaustive merge: zero-value / nil fields
// are left untouched.
type UpdateFields struct {
	Status       Status
	AddBlockedBy []int
	AddBlocks    []int
}

// Update merges non-empty fields into the task. When the new status is
// completed, every other task has id removed from its blockedBy set; when
// the new status is deleted, the task's file is removed.
func (b *Board) Update(id int, fields UpdateFields) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tasks, err := b.load()
	if err != nil {
		return nil, err
	}
	t, ok := tasks[id]
	if !ok {
		return nil, kerrors.NewValidationError("id", fmt.Sprintf("task %d not found", id))
	}

	if len(fields.AddBlockedBy) > 0 {
		t.BlockedBy = appendUnique(t.BlockedBy, fields.AddBlockedBy)
	}
	if len(fields.AddBlocks) > 0 {
		t.Blocks = appendUnique(t.Blocks, fields.AddBlocks)
	}
	if fields.Status != "" {
		t.Status = fields.Status
	}

	if t.Status == StatusDeleted {
		if err := os.Remove(b.path(id)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove task file: %w", err)
		}
		delete(tasks, id)
		if err := b.sweepBlockedBy(tasks, id); err != nil {
			return nil, err
		}
		return t, nil
	}

	if err := b.write(t); err != nil {
		return nil, err
	}

	if t.Status == StatusCompleted {
		if err := b.sweepBlockedBy(tasks, id); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// sweepBlockedBy removes id from every other task's blockedBy set and
// rewrites the ones that changed. Caller must hold mu.
func (b *Board) sweepBlockedBy(tasks map[int]*Task, completedID int) error {
	for otherID, other := range tasks {
		if otherID == completedID {
			continue
		}
		if idx := indexOf(other.BlockedBy, completedID); idx >= 0 {
			other.BlockedBy = append(other.BlockedBy[:idx], other.BlockedBy[idx+1:]...)
			if err := b.write(other); err != nil {
				return err
			}
		}
	}
	return nil
}

// Claim sets owner and status=in_progress unconditionally. Its callers
// (the lead's and the teammates' claim_task handlers, and a teammate's
// idle-phase auto-claim) check Claimable first.
func (b *Board) Claim(id int, owner string) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tasks, err := b.load()
	if err != nil {
		return nil, err
	}
	t, ok := tasks[id]
	if !ok {
		return nil, kerrors.NewValidationError("id", fmt.Sprintf("task %d not found", id))
	}
	t.Owner = owner
	t.Status = StatusInProgress
	if err := b.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Claimable reports whether the task is pending, unowned and unblocked.
func Claimable(t *Task) bool {
	return t.Status == StatusPending && t.Owner == "" && len(t.BlockedBy) == 0
}

// ClaimableTasks returns every currently claimable task, sorted by id.
func (b *Board) ClaimableTasks() ([]*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tasks, err := b.load()
	if err != nil {
		return nil, err
	}
	var out []*Task
	for _, t := range tasks {
		if Claimable(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// List renders every task with a status glyph, owner, and blockers.
func (b *Board) List() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tasks, err := b.load()
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks.", nil
	}
	ids := make([]int, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var sb strings.Builder
	for _, id := range ids {
		t := tasks[id]
		glyph := " "
		switch t.Status {
		case StatusInProgress:
			glyph = "~"
		case StatusCompleted:
			glyph = "x"
		}
		owner := t.Owner
		if owner == "" {
			owner = "-"
		}
		blocked := "none"
		if len(t.BlockedBy) > 0 {
			parts := make([]string, len(t.BlockedBy))
			for i, b := range t.BlockedBy {
				parts[i] = strconv.Itoa(b)
			}
			blocked = strings.Join(parts, ",")
		}
		fmt.Fprintf(&sb, "[%s] #%d: %s (owner=%s, blockedBy=%s)\n", glyph, t.ID, t.Subject, owner, blocked)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func indexOf(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func appendUnique(dst []int, add []int) []int {
	for _, v := range add {
		if indexOf(dst, v) < 0 {
			dst = append(dst, v)
		}
	}
	return dst
}
