package nft

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
)

const nftCommand = "nft"

// DefaultExecTimeout bounds a single nft run. Shutdown does not cut a run
// short; only this timeout does.
const DefaultExecTimeout = 10 * time.Second

// Executor delivers a command to the firewall subsystem.
//
// Executors may hold a handle that is not safe for concurrent use. Every
// ingestion worker owns its own instance obtained from an ExecutorFactory and
// must Close it when the worker ends; instances are never shared.
type Executor interface {
	Execute(ctx context.Context, cmd *Command) error
	Close() error
}

// ExecutorFactory creates a new, unshared Executor.
type ExecutorFactory func() (Executor, error)

// CLIExecutor runs the nft binary once per command.
type CLIExecutor struct {
	path    string
	timeout time.Duration
}

// NewCLIExecutor creates an executor running the nft binary at path.
// An empty path means "nft" from $PATH.
func NewCLIExecutor(path string) *CLIExecutor {
	if path == "" {
		path = nftCommand
	}
	return &CLIExecutor{path: path, timeout: DefaultExecTimeout}
}

// CheckExecutable verifies the nft binary can be found.
func (e *CLIExecutor) CheckExecutable() error {
	if _, err := exec.LookPath(e.path); err != nil {
		return fmt.Errorf("failed to find nft command %s: %v", e.path, err)
	}
	return nil
}

// Execute passes the whole script as a single argument: nft "add element ...; add element ...; ".
func (e *CLIExecutor) Execute(ctx context.Context, cmd *Command) error {
	if cmd.IsEmpty() {
		return nil
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, e.path, cmd.String())
	if output, err := c.CombinedOutput(); err != nil {
		return apperrors.NewExecError(
			fmt.Sprintf("nft returned error: %s", strings.TrimSpace(string(output))), err)
	}
	return nil
}

// Close is a no-op: the CLI executor holds no handle.
func (e *CLIExecutor) Close() error {
	return nil
}

func (e *CLIExecutor) String() string {
	return fmt.Sprintf("nft command (%s)", e.path)
}

// CLIExecutorFactory returns a factory producing CLI executors.
func CLIExecutorFactory(path string) ExecutorFactory {
	return func() (Executor, error) {
		return NewCLIExecutor(path), nil
	}
}

// DryRunExecutor records commands instead of executing them.
type DryRunExecutor struct {
	Commands []string
}

// Execute records the command text.
func (e *DryRunExecutor) Execute(_ context.Context, cmd *Command) error {
	e.Commands = append(e.Commands, cmd.String())
	return nil
}

// Close is a no-op.
func (e *DryRunExecutor) Close() error {
	return nil
}
