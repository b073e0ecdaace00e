// Package engine executes generated plugin scripts against the figma host
// API. Scripts are zygomys Lisp run in a fresh sandbox per execution; the
// only way out of the sandbox is the set of host builtins registered here.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/koga/pkg/figma"
	"github.com/chazu/koga/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// DefaultTimeout is the hard limit for a single execution.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is wrapped by the ExecutionError returned when a script runs
// past the engine's timeout.
var ErrTimeout = errors.New("engine: execution timed out")

// errHalted is panicked by the call hook once the host API is revoked.
var errHalted = errors.New("engine: execution halted")

// haltGrace is how long Execute waits for a revoked script to stop.
const haltGrace = time.Second

// ExecutionError is any fault raised while running a script: a parse
// error, a runtime error, a host API rejection, a timeout or a panic.
// Mutations applied before the fault stay in the document.
type ExecutionError struct {
	Line    int
	Message string
	// Err is the host error or context error behind the fault, if any.
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Result summarizes one execution. It is returned even when the script
// faults, describing what happened before the fault.
type Result struct {
	Notifications []string
	Closed        bool
	Appended      int
	Elapsed       time.Duration
}

// Engine runs scripts. It is safe for concurrent use; each call to Execute
// gets its own sandbox and host API. Callers that need one execution at a
// time serialize above the engine.
type Engine struct {
	timeout time.Duration
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-execution limit. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for execution events and notify messages.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{timeout: DefaultTimeout, log: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Timeout returns the configured per-execution limit.
func (e *Engine) Timeout() time.Duration { return e.timeout }

// Execute runs source against doc and blocks until it finishes, faults,
// times out or ctx is done. A fault is returned as *ExecutionError.
//
// On timeout or cancellation the script's host API is revoked and the
// interpreter halts at its next function call. Execute waits up to
// haltGrace for that before returning.
func (e *Engine) Execute(ctx context.Context, source string, doc *scene.Document) (*Result, error) {
	start := time.Now()
	api := figma.New(doc, figma.WithLogger(e.log))

	ch := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				if r == errHalted {
					ch <- &ExecutionError{Message: "execution halted", Err: ErrTimeout}
					return
				}
				ch <- &ExecutionError{Message: fmt.Sprintf("panic during execution: %v", r)}
			}
		}()
		ch <- run(source, api)
	}()

	err := waitWithTimeout(ctx, ch, e.timeout)
	if err != nil && !isScriptFault(err) {
		api.Revoke()
		select {
		case <-done:
		case <-time.After(haltGrace):
			e.log.Warn("interpreter did not halt after revoke", "grace", haltGrace)
		}
	}

	res := &Result{
		Notifications: api.Notifications(),
		Closed:        api.Closed(),
		Appended:      api.Appended(),
		Elapsed:       time.Since(start),
	}
	if err != nil {
		e.log.Warn("script failed", "error", err, "appended", res.Appended, "elapsed", res.Elapsed)
		return res, err
	}
	e.log.Debug("script executed", "appended", res.Appended, "elapsed", res.Elapsed)
	return res, nil
}

// isScriptFault reports whether err came from the script itself rather
// than from the wait being cut short.
func isScriptFault(err error) bool {
	return !errors.Is(err, ErrTimeout) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// run performs the zygomys evaluation in a fresh sandbox.
func run(source string, api *figma.API) error {
	// Empty source is a valid script that does nothing.
	if strings.TrimSpace(source) == "" {
		return nil
	}

	// Sandbox mode keeps user code away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	h := &host{api: api}
	h.register(env)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return h.fault(err)
	}
	if _, err := env.Run(); err != nil {
		return h.fault(err)
	}
	return nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into an ExecutionError,
// extracting the line number when the message carries one.
func parseZygomysError(err error) *ExecutionError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return &ExecutionError{Line: line, Message: strings.TrimSpace(m[2])}
		}
	}
	return &ExecutionError{Message: strings.TrimSpace(msg)}
}
