package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/lucksec/kernelgen/internal/logger"
)

// ErrorPolicy decides what Run does when a command exits nonzero
type ErrorPolicy int

const (
	// FailFast logs the failure and terminates the process with the command's exit code
	FailFast ErrorPolicy = iota
	// ReturnCode hands the exit code back to the caller
	ReturnCode
	// Custom calls the handler given with WithErrorHandler, then returns the code
	Custom
)

// ErrInvalidPolicy is a configuration error, raised before any command is spawned
var ErrInvalidPolicy = errors.New("invalid error policy")

// ParsePolicy maps the config names "raise" and "return"
func ParsePolicy(name string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "raise":
		return FailFast, nil
	case "return":
		return ReturnCode, nil
	default:
		return FailFast, fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
	}
}

func (p ErrorPolicy) String() string {
	switch p {
	case FailFast:
		return "raise"
	case ReturnCode:
		return "return"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

// Command is an argument vector, never passed through a shell
type Command struct {
	Name string
	Args []string
	// Dir is the working directory, empty for the current one
	Dir string
}

// String renders the command as a shell-quoted line for logs
func (c Command) String() string {
	line := shellquote.Join(append([]string{c.Name}, c.Args...)...)
	if c.Dir != "" {
		return fmt.Sprintf("cd %s && %s", shellquote.Join(c.Dir), line)
	}
	return line
}

// ExitError reports a command that ran and exited nonzero
type ExitError struct {
	Command Command
	Code    int
	// Stderr is only captured by Output
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s failed with exit code %d", e.Command, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// RunOption tunes a single Run call
type RunOption func(*runOptions)

type runOptions struct {
	policy  ErrorPolicy
	onLine  func(line string)
	onError func(code int)
}

// WithLineHandler receives each output line, without its line terminator
func WithLineHandler(fn func(line string)) RunOption {
	return func(o *runOptions) {
		o.onLine = fn
	}
}

// WithPolicy overrides the runner's default error policy
func WithPolicy(policy ErrorPolicy) RunOption {
	return func(o *runOptions) {
		o.policy = policy
	}
}

// WithErrorHandler selects the Custom policy with fn as the handler
func WithErrorHandler(fn func(code int)) RunOption {
	return func(o *runOptions) {
		o.policy = Custom
		o.onError = fn
	}
}

func (o *runOptions) validate() error {
	switch o.policy {
	case FailFast, ReturnCode:
		return nil
	case Custom:
		if o.onError == nil {
			return fmt.Errorf("%w: custom policy without a handler", ErrInvalidPolicy)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, o.policy)
	}
}

// CommandRunner runs external commands
type CommandRunner interface {
	// Run logs the command line, streams combined stdout/stderr line by line,
	// and applies the error policy on a nonzero exit
	Run(ctx context.Context, command Command, opts ...RunOption) (int, error)

	// Output runs the command to completion and returns its trimmed stdout.
	// Any nonzero exit is an *ExitError.
	Output(ctx context.Context, command Command) (string, error)
}

type commandRunner struct {
	log    logger.Logger
	policy ErrorPolicy
	stdout io.Writer
	exit   func(code int)
}

// NewCommandRunner creates a runner echoing output to stdout. Under FailFast a
// failing command ends the process via os.Exit.
func NewCommandRunner(log logger.Logger, policy ErrorPolicy) CommandRunner {
	return newCommandRunner(log, policy, os.Stdout, os.Exit)
}

func newCommandRunner(log logger.Logger, policy ErrorPolicy, stdout io.Writer, exit func(int)) *commandRunner {
	return &commandRunner{
		log:    log,
		policy: policy,
		stdout: stdout,
		exit:   exit,
	}
}

func (r *commandRunner) Run(ctx context.Context, command Command, opts ...RunOption) (int, error) {
	o := runOptions{
		policy: r.policy,
		onLine: r.echo,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		r.log.Error("Invalid on_error value: %s", o.policy)
		return 0, err
	}

	r.log.Info("%s", command)

	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("pipe output of %s: %w", command.Name, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", command.Name, err)
	}

	readErr := streamLines(stdout, o.onLine)
	waitErr := cmd.Wait()

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return 0, fmt.Errorf("wait for %s: %w", command.Name, waitErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return exitErr.ExitCode(), fmt.Errorf("%s: %w", command, ctxErr)
		}
		code = exitErr.ExitCode()
		if code < 0 {
			// killed by a signal
			code = 1
		}
	}
	if readErr != nil && code == 0 {
		return 0, fmt.Errorf("read output of %s: %w", command.Name, readErr)
	}

	if code == 0 {
		return 0, nil
	}

	switch o.policy {
	case Custom:
		o.onError(code)
		return code, nil
	case ReturnCode:
		return code, nil
	default:
		exitErr := &ExitError{Command: command, Code: code}
		r.log.Error("%s", exitErr)
		r.exit(code)
		return code, exitErr
	}
}

func (r *commandRunner) Output(ctx context.Context, command Command) (string, error) {
	r.log.Debug("%s", command)

	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{
				Command: command,
				Code:    exitErr.ExitCode(),
				Stderr:  strings.TrimSpace(stderr.String()),
			}
		}
		return "", fmt.Errorf("run %s: %w", command.Name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *commandRunner) echo(line string) {
	fmt.Fprintln(r.stdout, line)
}

func streamLines(rd io.Reader, onLine func(string)) error {
	br := bufio.NewReader(rd)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			onLine(strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// runChecked runs command under the runner's default policy and turns a
// returned nonzero code into an *ExitError, so dependent steps stop either way
func runChecked(ctx context.Context, runner CommandRunner, command Command) error {
	code, err := runner.Run(ctx, command)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Command: command, Code: code}
	}
	return nil
}
