// Package hooks runs best-effort user-configured subprocess hooks after
// a write completes (spec.md §4.4 step 8, §9 "Hooks are best-effort and
// their signatures are outside the core spec"). A hook failure is
// recorded on the hook's trace span and never propagated to the caller
// of Run.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/lattice-dev/lattice/internal/hooks")

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 10 * time.Second

// Runner invokes hooks configured in config.json's "hooks" map (event
// type -> script path, relative paths resolved against hooksDir).
type Runner struct {
	hooksDir string
	timeout  time.Duration
}

// NewRunner constructs a Runner. hooksDir is typically
// .lattice/hooks, used to resolve relative hook paths from config.
func NewRunner(hooksDir string) *Runner {
	return &Runner{hooksDir: hooksDir, timeout: DefaultTimeout}
}

// Payload is the JSON document written to the hook's stdin.
type Payload struct {
	EventType  string `json:"event_type"`
	TaskID     string `json:"task_id,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	Snapshot   any    `json:"snapshot,omitempty"`
}

// Run looks up hooks[eventType] and, if configured and executable,
// invokes it asynchronously: `hookPath <subjectID> <eventType>` with
// payload JSON on stdin. Returns immediately; failures are logged to
// the span only. Safe to call with a nil or empty hooks map.
func (r *Runner) Run(ctx context.Context, hookConfig map[string]string, payload Payload) {
	path := r.resolve(hookConfig, payload.EventType)
	if path == "" {
		return
	}
	go r.invoke(context.WithoutCancel(ctx), path, payload)
}

// RunSync is Run's synchronous counterpart for callers that need to
// know the outcome; in this module only the tests call it.
func (r *Runner) RunSync(ctx context.Context, hookConfig map[string]string, payload Payload) error {
	path := r.resolve(hookConfig, payload.EventType)
	if path == "" {
		return nil
	}
	return r.invoke(ctx, path, payload)
}

func (r *Runner) resolve(hookConfig map[string]string, eventType string) string {
	name, ok := hookConfig[eventType]
	if !ok || name == "" {
		return ""
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.hooksDir, path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	if info.Mode()&0o111 == 0 {
		return ""
	}
	return path
}

func (r *Runner) invoke(ctx context.Context, hookPath string, payload Payload) error {
	subjectID := payload.TaskID
	if subjectID == "" {
		subjectID = payload.ResourceID
	}

	ctx, span := tracer.Start(ctx, "hooks.run", trace.WithAttributes(
		attribute.String("hook.event_type", payload.EventType),
		attribute.String("hook.path", hookPath),
		attribute.String("hook.subject_id", subjectID),
	))
	defer span.End()

	timeout := r.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		recordErr(span, err)
		return err
	}

	// #nosec G204 -- hookPath is resolved against the project's own
	// .lattice/hooks directory, configured by the project owner.
	cmd := exec.CommandContext(runCtx, hookPath, subjectID, payload.EventType)
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		recordErr(span, err)
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-runCtx.Done():
		killProcessGroup(cmd)
		<-done
		addOutputEvents(span, &stdout, &stderr)
		recordErr(span, runCtx.Err())
		return runCtx.Err()
	case err := <-done:
		addOutputEvents(span, &stdout, &stderr)
		if err != nil {
			recordErr(span, err)
		}
		return err
	}
}

func recordErr(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

const maxOutputBytes = 4096

func addOutputEvents(span trace.Span, stdout, stderr *bytes.Buffer) {
	if n := stdout.Len(); n > 0 {
		span.AddEvent("hook.stdout", trace.WithAttributes(
			attribute.String("output", truncate(stdout.String())),
			attribute.Int("bytes", n),
		))
	}
	if n := stderr.Len(); n > 0 {
		span.AddEvent("hook.stderr", trace.WithAttributes(
			attribute.String("output", truncate(stderr.String())),
			attribute.Int("bytes", n),
		))
	}
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "...(truncated)"
}
