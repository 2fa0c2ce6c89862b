package service

import (
	"bytes"
	"context"
	"strings"

	"github.com/lucksec/kernelgen/internal/logger"
)

// fakeRunner records commands instead of running them. failAt makes the n-th Run
// call (1-based) exit with failCode, honouring the fail-fast/return split.
type fakeRunner struct {
	policy   ErrorPolicy
	failAt   int
	failCode int
	runs     []Command
	outputs  []Command
	// pythons maps environment name to the path `conda run ... sys.executable` prints
	pythons map[string]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{failCode: 1, pythons: map[string]string{}}
}

func (f *fakeRunner) Run(ctx context.Context, command Command, opts ...RunOption) (int, error) {
	o := runOptions{policy: f.policy, onLine: func(string) {}}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return 0, err
	}

	f.runs = append(f.runs, command)
	if f.failAt == 0 || len(f.runs) != f.failAt {
		return 0, nil
	}

	switch o.policy {
	case Custom:
		o.onError(f.failCode)
		return f.failCode, nil
	case ReturnCode:
		return f.failCode, nil
	default:
		return f.failCode, &ExitError{Command: command, Code: f.failCode}
	}
}

func (f *fakeRunner) Output(ctx context.Context, command Command) (string, error) {
	f.outputs = append(f.outputs, command)
	// conda run -n <name> python -c ...
	if len(command.Args) >= 3 && command.Args[0] == "run" && command.Args[1] == "-n" {
		name := command.Args[2]
		if python, ok := f.pythons[name]; ok {
			return python, nil
		}
		return "/opt/conda/envs/" + name + "/bin/python", nil
	}
	return "", &ExitError{Command: command, Code: 1, Stderr: "unexpected command"}
}

func (f *fakeRunner) runLines() []string {
	lines := make([]string, 0, len(f.runs))
	for _, c := range f.runs {
		lines = append(lines, c.String())
	}
	return lines
}

func countArg(args []string, want string) int {
	n := 0
	for _, a := range args {
		if a == want {
			n++
		}
	}
	return n
}

func testLogger() (logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.New(&buf, logger.DEBUG), &buf
}

func logLines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}
