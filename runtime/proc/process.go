package proc

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/aledsdavies/cmdline/runtime/args"
)

// SpawnOptions configures one child process launch.
type SpawnOptions struct {
	Dir       string
	Env       []string // nil inherits the parent environment
	WriteData []byte   // fed to stdin, which is then closed
}

// Process is a handle to a started child. Output arrives in chunks on the
// Stdout and Stderr channels, which close when the respective pipe drains;
// Done closes after both channels have closed and the exit status is known.
// ExitCode and Crashed are only meaningful once Done is closed.
type Process interface {
	Stdout() <-chan []byte
	Stderr() <-chan []byte
	Done() <-chan struct{}
	Running() bool
	ExitCode() int
	Crashed() bool
	Terminate() error
	Kill() error
}

// Spawner launches child processes. It is a seam for tests and for callers
// that run commands somewhere other than the local machine.
type Spawner interface {
	Start(command string, arguments args.Arguments, opts SpawnOptions) (Process, error)
}

// OSSpawner launches processes on the local machine via os/exec.
type OSSpawner struct{}

func (OSSpawner) Start(command string, arguments args.Arguments, opts SpawnOptions) (Process, error) {
	cmd := newCmd(command, arguments)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	if len(opts.WriteData) > 0 {
		cmd.Stdin = bytes.NewReader(opts.WriteData)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	p := &osProcess{
		cmd:    cmd,
		stdout: make(chan []byte),
		stderr: make(chan []byte),
		done:   make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go pump(stdoutPipe, p.stdout, &readers)
	go pump(stderrPipe, p.stderr, &readers)
	go func() {
		// The pipes must be fully drained before Wait closes them.
		readers.Wait()
		_ = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

type osProcess struct {
	cmd    *exec.Cmd
	stdout chan []byte
	stderr chan []byte
	done   chan struct{}
}

func pump(pipe io.ReadCloser, ch chan<- []byte, readers *sync.WaitGroup) {
	defer readers.Done()
	defer close(ch)
	buf := make([]byte, 4096)
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			ch <- chunk
		}
		if err != nil {
			return
		}
	}
}

func (p *osProcess) Stdout() <-chan []byte { return p.stdout }
func (p *osProcess) Stderr() <-chan []byte { return p.stderr }
func (p *osProcess) Done() <-chan struct{} { return p.done }

func (p *osProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *osProcess) ExitCode() int {
	if st := p.cmd.ProcessState; st != nil {
		return st.ExitCode()
	}
	return -1
}

func (p *osProcess) Crashed() bool {
	st := p.cmd.ProcessState
	return st != nil && !st.Exited()
}

func (p *osProcess) Terminate() error { return terminateProcess(p.cmd) }
func (p *osProcess) Kill() error      { return killProcess(p.cmd) }
