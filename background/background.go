// Package background implements fire-and-forget shell jobs (spec §3/§4.5):
// Run launches a detached worker and returns immediately, Check reports a
// job's status, Drain non-blockingly pops completion notifications.
// Grounded on the teacher's tools/bash.go execution core, reused here
// through safepath.Shell and restructured to run on its own goroutine
// instead of synchronously inside tool dispatch.
package background

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaiho/agentkernel/safepath"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// MaxResultChars is the combined stdout+stderr truncation limit (spec §4.5,
// Design Notes (c): a policy constant, not a contract).
const MaxResultChars = 50000

// NotificationPreviewChars truncates the result carried on a notification.
const NotificationPreviewChars = 500

// Job is one background command's record.
type Job struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Status  Status `json:"status"`
	Result  string `json:"result"`
}

// Notification is enqueued once a job finishes.
type Notification struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`
	Result string `json:"result"`
}

// Runner owns the in-memory job table and notification queue.
type Runner struct {
	shell *safepath.Shell

	mu   sync.Mutex
	jobs map[string]*Job

	notify chan Notification
}

// New returns a Runner executing commands in workDir.
func New(workDir string) *Runner {
	return &Runner{
		shell:  safepath.NewShell(workDir),
		jobs:   map[string]*Job{},
		notify: make(chan Notification, 4096),
	}
}

// Run launches command in a detached goroutine and returns its job id
// immediately. The job's status field, never a returned error, surfaces
// timeouts and non-zero exits (spec §4.5).
func (r *Runner) Run(command string, timeout time.Duration) string {
	id := uuid.NewString()[:8]

	job := &Job{ID: id, Command: command, Status: StatusRunning}
	r.mu.Lock()
	r.jobs[id] = job
	r.mu.Unlock()

	go r.execute(job, command, timeout)

	return id
}

func (r *Runner) execute(job *Job, command string, timeout time.Duration) {
	res := r.shell.Run(context.Background(), command, timeout)

	r.mu.Lock()
	if res.Err != nil {
		job.Status = StatusError
		job.Result = truncate(res.Err.Error()+"\n"+res.Output, MaxResultChars)
	} else if res.TimedOut {
		job.Status = StatusError
		job.Result = truncate(fmt.Sprintf("Timeout (%s)", timeout), MaxResultChars)
	} else {
		job.Status = StatusCompleted
		job.Result = truncate(res.Output, MaxResultChars)
	}
	result := job.Result
	status := job.Status
	r.mu.Unlock()

	r.notify <- Notification{
		TaskID: job.ID,
		Status: status,
		Result: truncate(result, NotificationPreviewChars),
	}
}

// Check returns a single job's status and result, or a multiline list of
// every job when id is empty.
func (r *Runner) Check(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		job, ok := r.jobs[id]
		if !ok {
			return fmt.Sprintf("Error: unknown job %q", id)
		}
		return fmt.Sprintf("[%s] %s: %s\n%s", job.ID, job.Status, job.Command, job.Result)
	}

	if len(r.jobs) == 0 {
		return "No background jobs."
	}
	var sb strings.Builder
	for _, job := range r.jobs {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", job.ID, job.Status, job.Command)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Drain non-blockingly pops every pending notification.
func (r *Runner) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-r.notify:
			out = append(out, n)
		default:
			return out
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
