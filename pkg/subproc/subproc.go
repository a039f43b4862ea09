// Package subproc runs external resolver CLIs with a controlled environment
// and a hard timeout, and extracts media URLs from their output.
package subproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"iptv-bridge-go/pkg/logging"
	"iptv-bridge-go/pkg/scraper"

	"github.com/tidwall/gjson"
)

// Failure modes, one per adapter outcome.
var (
	ErrBinaryMissing = errors.New("binary not found")
	ErrTimeout       = errors.New("subprocess timed out")
)

// ExitError reports a nonzero exit from the external program.
type ExitError struct {
	Binary string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Binary, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Result carries the captured output of a finished subprocess.
type Result struct {
	Stdout string
	Stderr string
}

// Runner spawns resolver CLIs. Processes are force-terminated when the
// timeout expires; nothing outlives its deadline.
type Runner struct {
	log *logging.Logger
}

// NewRunner creates a subprocess runner.
func NewRunner(log *logging.Logger) *Runner {
	return &Runner{log: log.WithComponent("subproc")}
}

// Run executes the binary with the given arguments. env entries override the
// inherited process environment. The returned Result is non-nil even on
// failure so callers can surface captured output as diagnostics.
func (r *Runner) Run(ctx context.Context, binary string, args []string, env map[string]string, timeout time.Duration) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Env = mergedEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return res, fmt.Errorf("%w: %s", ErrBinaryMissing, binary)
		}
		// Deadline expiry kills the process, which also surfaces as an
		// ExitError; the context says which it was
		if runCtx.Err() == context.DeadlineExceeded {
			r.log.Warn("subprocess timed out", "binary", binary, "timeout", timeout)
			return res, fmt.Errorf("%w: %s", ErrTimeout, binary)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, &ExitError{Binary: binary, Code: exitErr.ExitCode(), Stderr: res.Stderr}
		}
		return res, err
	}

	r.log.Debug("subprocess completed", "binary", binary, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// CommandExists probes whether a binary is resolvable on PATH. All lookup
// failures report as plain unavailability.
func (r *Runner) CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// mergedEnv layers overrides on top of the process environment. os/exec
// keeps the last duplicate key, so appending overrides is enough.
func mergedEnv(env map[string]string) []string {
	merged := os.Environ()
	for key, value := range env {
		merged = append(merged, key+"="+value)
	}
	return merged
}

// ExtractURLs scans subprocess output for media URLs. A raw-text pass runs
// first; when the output carries a JSON object (first '{' to last '}'), its
// string leaves are flattened and re-scanned as a secondary pass. Malformed
// JSON is simply no structured data, never an error.
func ExtractURLs(text string) []string {
	urls := scraper.ExtractMediaURLs(text)

	doc, ok := sliceJSONObject(text)
	if !ok || !gjson.Valid(doc) {
		return urls
	}

	var leaves strings.Builder
	flattenStrings(gjson.Parse(doc), &leaves)

	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		seen[u] = struct{}{}
	}
	for _, u := range scraper.ExtractMediaURLs(leaves.String()) {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

func sliceJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func flattenStrings(v gjson.Result, out *strings.Builder) {
	switch {
	case v.Type == gjson.String:
		out.WriteString(v.String())
		out.WriteByte('\n')
	case v.IsObject() || v.IsArray():
		v.ForEach(func(_, child gjson.Result) bool {
			flattenStrings(child, out)
			return true
		})
	}
}
