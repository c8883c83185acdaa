// Package agent wraps the external worker processes the orchestrator
// supervises. A worker is a black box: it is started with a task
// description, streams output lines, and ends with an exit status.
package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avialdo/triage/pkg/models"
)

// LaunchSpec describes one worker process invocation.
type LaunchSpec struct {
	// Command is the wrapper executable, e.g. "swarm-agent".
	Command string
	// Type selects the worker subcommand ("run <type>").
	Type models.AgentType
	// Description is the free-text task description.
	Description string
	// Capabilities are passed as a comma list.
	Capabilities []string
	// SessionID, AgentID, and IssueNumber are structured parameters.
	SessionID   string
	AgentID     string
	IssueNumber int
	// AutoMode tells the worker to run without interactive prompts.
	AutoMode bool
	// Dir is the working directory. Empty means inherit.
	Dir string
}

// Args builds the command line arguments for the spec.
func (ls LaunchSpec) Args() []string {
	args := []string{
		"run", string(ls.Type),
		ls.Description,
		"--capabilities", strings.Join(ls.Capabilities, ","),
		"--session-id", ls.SessionID,
		"--agent-id", ls.AgentID,
		"--issue-number", strconv.Itoa(ls.IssueNumber),
	}
	if ls.AutoMode {
		args = append(args, "--auto-mode")
	}
	return args
}

// Handle is a started worker process as the orchestrator sees it.
type Handle interface {
	// Lines streams output lines tagged by stream. Closed when the
	// process's output is drained.
	Lines() <-chan models.LogLine
	// Wait blocks until the process exits and returns its exit code. The
	// error is non-nil only for process-level failures, not for non-zero
	// exits.
	Wait() (int, error)
	// Kill terminates the process immediately.
	Kill() error
	// PID returns the OS process id, or 0 if unknown.
	PID() int
}

// Launcher starts worker processes. Implemented by ExecLauncher for real
// processes and by fakes in tests.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Handle, error)
}

// ExecLauncher launches workers via os/exec.
type ExecLauncher struct{}

// NewExecLauncher creates an ExecLauncher.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Launch starts the worker process and begins draining its output.
func (l *ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Handle, error) {
	p := newProcess(ctx)
	if err := p.start(spec.Command, spec.Args(), spec.Dir); err != nil {
		return nil, err
	}
	return p, nil
}

// Verify ExecLauncher implements Launcher at compile time.
var _ Launcher = (*ExecLauncher)(nil)

// process manages one worker subprocess.
type process struct {
	cmd *exec.Cmd

	ctx    context.Context
	cancel context.CancelFunc
	lines  chan models.LogLine
	once   sync.Once
	mu     sync.Mutex
	wg     sync.WaitGroup
}

func newProcess(ctx context.Context) *process {
	ctx, cancel := context.WithCancel(ctx)
	return &process{
		ctx:    ctx,
		cancel: cancel,
		lines:  make(chan models.LogLine, 256),
	}
}

// start launches the subprocess and the output reader goroutines.
func (p *process) start(name string, args []string, dir string) error {
	p.cmd = exec.CommandContext(p.ctx, name, args...)
	if dir != "" {
		p.cmd.Dir = dir
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	p.wg.Add(2)
	go p.readStream(stdout, models.LogStreamStdout)
	go p.readStream(stderr, models.LogStreamStderr)

	// Close the lines channel once both streams are drained.
	go func() {
		p.wg.Wait()
		close(p.lines)
	}()

	return nil
}

// readStream forwards one output stream line by line. Delivery order within
// a stream is preserved; across streams it is whatever the OS delivers.
func (p *process) readStream(r io.Reader, stream models.LogStream) {
	defer p.wg.Done()

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := models.LogLine{
			Stream:    stream,
			Text:      scanner.Text(),
			Timestamp: time.Now(),
		}
		select {
		case p.lines <- line:
		case <-p.ctx.Done():
			return
		}
	}
}

// Lines returns the output line channel.
func (p *process) Lines() <-chan models.LogLine {
	return p.lines
}

// Wait waits for the process to exit. Non-zero exits are reported through
// the exit code, not the error.
func (p *process) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("wait for process: %w", err)
}

// Kill terminates the process immediately.
func (p *process) Kill() error {
	p.once.Do(func() {
		p.cancel()
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// PID returns the subprocess id, or 0 if not started.
func (p *process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}
