package proc

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/cmdline/runtime/args"
)

// fakeProcess is a scripted Process for driving the runner without real
// children.
type fakeProcess struct {
	stdout chan []byte
	stderr chan []byte
	done   chan struct{}

	mu         sync.Mutex
	exitCode   int
	crashed    bool
	terminated bool
	killed     bool
	exitOnce   sync.Once

	// exitOnTerminate makes Terminate behave like a cooperative child.
	exitOnTerminate bool

	spamQuit chan struct{}
	spamDone chan struct{}
}

// spam floods stdout until the process exits, so a chunk is always in
// flight when a stop arrives.
func (p *fakeProcess) spam(chunk []byte) {
	p.spamQuit = make(chan struct{})
	p.spamDone = make(chan struct{})
	go func() {
		defer close(p.spamDone)
		for {
			select {
			case p.stdout <- chunk:
			case <-p.spamQuit:
				return
			}
		}
	}()
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		stdout: make(chan []byte),
		stderr: make(chan []byte),
		done:   make(chan struct{}),
	}
}

// exit closes the output channels and latches the exit status, in the same
// order the real handle does.
func (p *fakeProcess) exit(code int, crashed bool) {
	p.exitOnce.Do(func() {
		if p.spamQuit != nil {
			close(p.spamQuit)
			<-p.spamDone
		}
		p.mu.Lock()
		p.exitCode = code
		p.crashed = crashed
		p.mu.Unlock()
		close(p.stdout)
		close(p.stderr)
		close(p.done)
	})
}

func (p *fakeProcess) Stdout() <-chan []byte { return p.stdout }
func (p *fakeProcess) Stderr() <-chan []byte { return p.stderr }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *fakeProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *fakeProcess) Crashed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.crashed
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	cooperative := p.exitOnTerminate
	p.mu.Unlock()
	if cooperative {
		p.exit(-1, true)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(-1, true)
	return nil
}

type fakeSpawner struct {
	process  *fakeProcess
	script   func(p *fakeProcess)
	startErr error

	command   string
	arguments args.Arguments
}

func (s *fakeSpawner) Start(command string, arguments args.Arguments, opts SpawnOptions) (Process, error) {
	s.command = command
	s.arguments = arguments
	if s.startErr != nil {
		return nil, s.startErr
	}
	if s.script != nil {
		go s.script(s.process)
	}
	return s.process, nil
}

func TestRunBlockingFinished(t *testing.T) {
	spawner := &fakeSpawner{
		process: newFakeProcess(),
		script: func(p *fakeProcess) {
			p.stdout <- []byte("out line\n")
			p.stderr <- []byte("err line\n")
			p.exit(0, false)
		},
	}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	response := runner.RunBlocking("prog", args.UnixArgs([]string{"-v"}))

	assert.Equal(t, Finished, response.Result)
	assert.Equal(t, 0, response.ExitCode)
	assert.Equal(t, "out line\n", response.StdOut())
	assert.Equal(t, "err line\n", response.StdErr())
	assert.Equal(t, "prog", spawner.command)
}

func TestRunBlockingFinishedError(t *testing.T) {
	spawner := &fakeSpawner{
		process: newFakeProcess(),
		script:  func(p *fakeProcess) { p.exit(3, false) },
	}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	response := runner.RunBlocking("prog", args.UnixArgs(nil))

	assert.Equal(t, FinishedError, response.Result)
	assert.Equal(t, 3, response.ExitCode)
}

func TestRunBlockingExitCodeInterpreter(t *testing.T) {
	spawner := &fakeSpawner{
		process: newFakeProcess(),
		script:  func(p *fakeProcess) { p.exit(1, false) },
	}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	runner.SetExitCodeInterpreter(func(code int) Result {
		// diff-style: 1 means "differences found", still a success
		if code == 0 || code == 1 {
			return Finished
		}
		return FinishedError
	})
	response := runner.RunBlocking("diff", args.UnixArgs(nil))

	assert.Equal(t, Finished, response.Result)
	assert.Equal(t, 1, response.ExitCode)
}

func TestRunBlockingCrash(t *testing.T) {
	spawner := &fakeSpawner{
		process: newFakeProcess(),
		script:  func(p *fakeProcess) { p.exit(-1, true) },
	}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	response := runner.RunBlocking("prog", args.UnixArgs(nil))

	assert.Equal(t, TerminatedAbnormally, response.Result)
	assert.Equal(t, -1, response.ExitCode)
}

func TestRunBlockingStartFailed(t *testing.T) {
	spawner := &fakeSpawner{startErr: errors.New("no such file")}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	response := runner.RunBlocking("missing", args.UnixArgs(nil))

	assert.Equal(t, StartFailed, response.Result)
	assert.Equal(t, -1, response.ExitCode)
}

// A silent process that never exits must be declared hung within the
// timeout, stopped, and reported with Hang priority over the kill-induced
// crash.
func TestRunBlockingHang(t *testing.T) {
	process := newFakeProcess()
	process.exitOnTerminate = true
	spawner := &fakeSpawner{process: process}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	runner.SetTimeoutS(2)

	start := time.Now()
	response := runner.RunBlocking("prog", args.UnixArgs(nil))
	elapsed := time.Since(start)

	assert.Equal(t, Hang, response.Result)
	assert.False(t, process.Running(), "child must not be left running")
	assert.True(t, process.terminated)
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestRunBlockingHangEscalatesToKill(t *testing.T) {
	process := newFakeProcess() // ignores Terminate, dies only on Kill
	spawner := &fakeSpawner{process: process}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	runner.SetTimeoutS(2)

	response := runner.RunBlocking("prog", args.UnixArgs(nil))

	assert.Equal(t, Hang, response.Result)
	assert.True(t, process.terminated)
	assert.True(t, process.killed)
	assert.False(t, process.Running())
}

// Output captured before the hang must survive the forced stop: the
// escalation keeps draining while it waits for the child to die, so a chunk
// in flight at the deadline never wedges the stop or gets discarded.
func TestRunBlockingHangKeepsOutput(t *testing.T) {
	process := newFakeProcess() // ignores Terminate, spams stdout nonstop
	process.spam([]byte("spam\n"))
	spawner := &fakeSpawner{process: process}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	runner.SetTimeoutS(2)

	response := runner.RunBlocking("prog", args.UnixArgs(nil))

	assert.Equal(t, Hang, response.Result)
	assert.True(t, process.killed)
	assert.False(t, process.Running())
	assert.NotEmpty(t, response.RawStdOut, "output produced before the hang must be kept")
}

// Declining the kill prompt resets the hang counter instead of stopping the
// child; agreeing on a later prompt stops it.
func TestRunAskToKillDeclineResetsCounter(t *testing.T) {
	process := newFakeProcess()
	process.exitOnTerminate = true
	spawner := &fakeSpawner{process: process}

	runner := NewRunner()
	runner.SetSpawner(spawner)
	runner.SetTimeoutS(2)

	asked := 0
	runner.SetAskToKill(func(command string) bool {
		asked++
		return asked > 1
	})

	start := time.Now()
	response := runner.Run("prog", args.UnixArgs(nil))
	elapsed := time.Since(start)

	assert.Equal(t, Hang, response.Result)
	assert.Equal(t, 2, asked, "the declined prompt must restart a full hang window")
	assert.True(t, process.terminated)
	assert.False(t, process.Running())
	assert.GreaterOrEqual(t, elapsed, 5*time.Second)
}

func TestRunStreamsLines(t *testing.T) {
	spawner := &fakeSpawner{
		process: newFakeProcess(),
		script: func(p *fakeProcess) {
			p.stdout <- []byte("one\ntwo")
			p.stdout <- []byte(" half\n")
			p.stderr <- []byte("warn\n")
			p.exit(0, false)
		},
	}

	var outLines, errLines []string
	runner := NewRunner()
	runner.SetSpawner(spawner)
	runner.SetStdOutCallback(func(lines string) { outLines = append(outLines, lines) })
	runner.SetStdErrCallback(func(lines string) { errLines = append(errLines, lines) })

	response := runner.Run("prog", args.UnixArgs(nil))

	require.Equal(t, Finished, response.Result)
	assert.Equal(t, []string{"one\n", "two half\n"}, outLines)
	assert.Equal(t, []string{"warn\n"}, errLines)
	assert.Equal(t, "one\ntwo half\n", response.StdOut())
}

func TestRunCancelTerminates(t *testing.T) {
	process := newFakeProcess()
	process.exitOnTerminate = true
	spawner := &fakeSpawner{process: process}

	runner := NewRunner()
	runner.SetSpawner(spawner)

	go func() {
		time.Sleep(50 * time.Millisecond)
		runner.Cancel()
		runner.Cancel() // second cancel is a no-op
	}()
	response := runner.Run("prog", args.UnixArgs(nil))

	assert.Equal(t, TerminatedAbnormally, response.Result)
	assert.True(t, process.terminated)
}

func TestCancelBeforeRunIsNoOp(t *testing.T) {
	runner := NewRunner()
	runner.Cancel() // no run in flight
}

// The buffers are fully reset between runs: output from the first run must
// not leak into the second.
func TestRunnerResetsBetweenRuns(t *testing.T) {
	first := &fakeSpawner{
		process: newFakeProcess(),
		script: func(p *fakeProcess) {
			p.stdout <- []byte("first\n")
			p.exit(0, false)
		},
	}
	runner := NewRunner()
	runner.SetSpawner(first)
	response := runner.RunBlocking("prog", args.UnixArgs(nil))
	require.Equal(t, "first\n", response.StdOut())

	second := &fakeSpawner{
		process: newFakeProcess(),
		script: func(p *fakeProcess) {
			p.stdout <- []byte("second\n")
			p.exit(0, false)
		},
	}
	runner.SetSpawner(second)
	response = runner.RunBlocking("prog", args.UnixArgs(nil))
	assert.Equal(t, "second\n", response.StdOut())
}
