package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pratamalabs/domaindesk/internal/logger"
)

// resultMarker prefixes the one line of script stdout that carries the
// machine-readable outcome. Everything else on stdout is progress chatter.
const resultMarker = "CHECK_RESULT="

const defaultScriptTimeout = 5 * time.Minute

// ScriptError describes how an external check script run failed.
type ScriptError struct {
	Stage    string // spawn | timeout | exit | signal | result
	ExitCode int
	Signal   string
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ScriptError) Error() string {
	switch e.Stage {
	case "spawn":
		return fmt.Sprintf("check script failed to start: %v", e.Err)
	case "timeout":
		return fmt.Sprintf("check script timed out (stdout: %s)", e.Stdout)
	case "exit":
		return fmt.Sprintf("check script exited with code %d (stderr: %s)", e.ExitCode, e.Stderr)
	case "signal":
		return fmt.Sprintf("check script killed by signal %s (stderr: %s)", e.Signal, e.Stderr)
	case "result":
		return fmt.Sprintf("check script produced no result line (stdout: %s)", e.Stdout)
	}
	return fmt.Sprintf("check script failed: %v", e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// runFilterScript delegates the whole content-filter check to the configured
// external script. The script owns session bootstrap, batching, and database
// writes; this side only enforces the deadline and parses the summary.
func (r *Reconciler) runFilterScript(ctx context.Context) (*Result, error) {
	timeout := r.cfg.ScriptTimeout
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.ScriptPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("Running external check script",
		logger.String("path", r.cfg.ScriptPath),
		logger.Duration("timeout", timeout),
	)

	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ScriptError{
				Stage:  "timeout",
				Stdout: tail(stdout.String()),
				Stderr: tail(stderr.String()),
				Err:    ctx.Err(),
			}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() < 0 {
				return nil, &ScriptError{
					Stage:  "signal",
					Signal: exitErr.ProcessState.String(),
					Stdout: tail(stdout.String()),
					Stderr: tail(stderr.String()),
					Err:    err,
				}
			}
			return nil, &ScriptError{
				Stage:    "exit",
				ExitCode: exitErr.ExitCode(),
				Stdout:   tail(stdout.String()),
				Stderr:   tail(stderr.String()),
				Err:      err,
			}
		}
		return nil, &ScriptError{Stage: "spawn", Err: err}
	}

	result, err := parseScriptResult(stdout.String())
	if err != nil {
		return nil, &ScriptError{
			Stage:  "result",
			Stdout: tail(stdout.String()),
			Stderr: tail(stderr.String()),
			Err:    err,
		}
	}
	return result, nil
}

// parseScriptResult finds the CHECK_RESULT= line and decodes its JSON
// payload. The last marker line wins if the script prints several.
func parseScriptResult(stdout string) (*Result, error) {
	var payload string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, resultMarker) {
			payload = strings.TrimPrefix(line, resultMarker)
		}
	}
	if payload == "" {
		return nil, errors.New("no result line in script output")
	}

	var parsed struct {
		Checked int `json:"checked"`
		Updated int `json:"updated"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("decode result line: %w", err)
	}
	return &Result{Checked: parsed.Checked, Updated: parsed.Updated}, nil
}

const tailLimit = 500

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > tailLimit {
		return "..." + s[len(s)-tailLimit:]
	}
	return s
}
