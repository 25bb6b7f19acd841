package proc

import (
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/aledsdavies/cmdline/core/invariant"
	"github.com/aledsdavies/cmdline/runtime/args"
)

const defaultMaxHangTimerCount = 10

// Runner executes one child process at a time and watches it for hangs.
//
// RunBlocking waits for completion with a flat deadline; Run instead pumps
// output incrementally through the line callbacks and counts one-second
// ticks without output, so a slow process that keeps talking never times
// out. Both guarantee that no child is left running when they return,
// except when even a forced kill is refused.
//
// The runner owns its two channel buffers and resets them at the start of
// each run; a Runner must not be used from two goroutines at once.
type Runner struct {
	logger              *slog.Logger
	spawner             Spawner
	maxHangTimerCount   int
	codec               encoding.Encoding
	exitCodeInterpreter ExitCodeInterpreter
	askToKill           func(command string) bool
	dir                 string
	env                 []string
	writeData           []byte

	stdOut   ChannelBuffer
	stdErr   ChannelBuffer
	response Response

	mu         sync.Mutex
	cancelCh   chan struct{}
	cancelOnce *sync.Once
}

// NewRunner creates a runner with the default ten-second hang limit, UTF-8
// decoding and the default exit-code interpreter.
func NewRunner() *Runner {
	return &Runner{
		logger:              newLogger(),
		spawner:             OSSpawner{},
		maxHangTimerCount:   defaultMaxHangTimerCount,
		codec:               unicode.UTF8,
		exitCodeInterpreter: DefaultExitCodeInterpreter,
	}
}

func newLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("CMDLINE_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop timestamp and level for cleaner output
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// SetTimeoutS bounds how long a silent process may run, in seconds.
// Non-positive means effectively unlimited.
func (r *Runner) SetTimeoutS(timeoutS int) {
	if timeoutS > 0 {
		r.maxHangTimerCount = max(2, timeoutS)
	} else {
		r.maxHangTimerCount = math.MaxInt32 / 1000
	}
}

// SetSpawner replaces the process facility, for tests or remote execution.
func (r *Runner) SetSpawner(s Spawner) {
	invariant.NotNil(s, "spawner")
	r.spawner = s
}

// SetCodec sets the text decoding applied to both output channels.
func (r *Runner) SetCodec(c encoding.Encoding) {
	invariant.NotNil(c, "codec")
	r.codec = c
}

// SetExitCodeInterpreter overrides how normal exit codes map to outcomes.
func (r *Runner) SetExitCodeInterpreter(interpreter ExitCodeInterpreter) {
	invariant.NotNil(interpreter, "exit code interpreter")
	r.exitCodeInterpreter = interpreter
}

// SetStdOutCallback delivers completed stdout lines during Run.
func (r *Runner) SetStdOutCallback(callback func(lines string)) {
	r.stdOut.OutputCallback = callback
}

// SetStdErrCallback delivers completed stderr lines during Run.
func (r *Runner) SetStdErrCallback(callback func(lines string)) {
	r.stdErr.OutputCallback = callback
}

// SetAskToKill installs a confirmation hook consulted when a hang is
// detected during Run. Returning false resets the hang counter instead of
// killing; without a hook the process is killed straight away.
func (r *Runner) SetAskToKill(ask func(command string) bool) {
	r.askToKill = ask
}

// SetWorkingDirectory sets the child's working directory.
func (r *Runner) SetWorkingDirectory(dir string) { r.dir = dir }

// SetEnvironment sets the child's environment in key=value form; nil
// inherits the parent environment.
func (r *Runner) SetEnvironment(env []string) { r.env = env }

// SetWriteData feeds data to the child's stdin, which is closed afterwards.
func (r *Runner) SetWriteData(data []byte) { r.writeData = data }

// Cancel requests graceful termination of the current run once. Further
// calls while the first is in flight are no-ops.
func (r *Runner) Cancel() {
	r.mu.Lock()
	once, ch := r.cancelOnce, r.cancelCh
	r.mu.Unlock()
	if once == nil {
		return
	}
	once.Do(func() { close(ch) })
}

func (r *Runner) clearForRun() {
	r.stdOut.clearForRun(r.codec)
	r.stdErr.clearForRun(r.codec)
	r.response = Response{codec: r.codec}
	r.response.Clear()
	r.mu.Lock()
	r.cancelCh = make(chan struct{})
	r.cancelOnce = new(sync.Once)
	r.mu.Unlock()
}

// RunBlocking starts command and waits for completion up to the hang limit.
// On timeout the outcome is Hang and the child is terminated, then killed.
func (r *Runner) RunBlocking(command string, arguments args.Arguments) Response {
	r.logger.Debug("starting blocking", "command", command)
	r.clearForRun()

	p, err := r.start(command, arguments)
	if err != nil {
		r.logger.Debug("start failed", "command", command, "error", err)
		return r.response
	}

	r.mu.Lock()
	cancel := r.cancelCh
	r.mu.Unlock()

	deadline := time.NewTimer(time.Duration(r.maxHangTimerCount) * time.Second)
	defer deadline.Stop()

	stdout, stderr := p.Stdout(), p.Stderr()
	running := true
	for running {
		select {
		case chunk, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			r.stdOut.Append(chunk, false)
		case chunk, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			r.stdErr.Append(chunk, false)
		case <-cancel:
			cancel = nil
			_ = p.Terminate()
		case <-p.Done():
			running = false
		case <-deadline.C:
			r.logger.Debug("hang detected, killing", "command", command)
			r.response.Result = Hang
			if !r.stopWithin(p, &stdout, &stderr, time.Second, false) {
				// Even the forced kill was refused; report what was
				// captured anyway.
				r.response.RawStdOut = r.stdOut.rawData
				r.response.RawStdErr = r.stdErr.rawData
				return r.response
			}
			running = false
		}
	}

	r.drain(stdout, stderr, false)
	return r.settle(p)
}

// Run starts command and pumps its output incrementally through the line
// callbacks. A hang counter increments every second and resets whenever
// data arrives on either channel; exceeding the limit triggers the
// ask-to-kill hook and then the terminate/kill escalation.
func (r *Runner) Run(command string, arguments args.Arguments) Response {
	r.logger.Debug("starting", "command", command)
	r.clearForRun()

	p, err := r.start(command, arguments)
	if err != nil {
		r.logger.Debug("start failed", "command", command, "error", err)
		return r.response
	}

	r.mu.Lock()
	cancel := r.cancelCh
	r.mu.Unlock()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	stdout, stderr := p.Stdout(), p.Stderr()
	hangTimerCount := 0
	running := true
	for running {
		select {
		case chunk, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			hangTimerCount = 0
			r.stdOut.Append(chunk, true)
		case chunk, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			hangTimerCount = 0
			r.stdErr.Append(chunk, true)
		case <-cancel:
			cancel = nil
			_ = p.Terminate()
		case <-p.Done():
			running = false
		case <-ticker.C:
			hangTimerCount++
			if hangTimerCount <= r.maxHangTimerCount {
				r.logger.Debug("tick", "hangTimerCount", hangTimerCount)
				continue
			}
			r.logger.Debug("hang detected, killing", "command", command)
			if r.askToKill != nil && !r.askToKill(command) {
				hangTimerCount = 0
				continue
			}
			r.response.Result = Hang
			if !r.stopWithin(p, &stdout, &stderr, 300*time.Millisecond, true) {
				r.response.RawStdOut = r.stdOut.rawData
				r.response.RawStdErr = r.stdErr.rawData
				return r.response
			}
			running = false
		}
	}

	r.drain(stdout, stderr, false)
	return r.settle(p)
}

func (r *Runner) start(command string, arguments args.Arguments) (Process, error) {
	opts := SpawnOptions{Dir: r.dir, Env: r.env, WriteData: r.writeData}
	return r.spawner.Start(command, arguments, opts)
}

// drain consumes whatever the reader goroutines produced before the
// channels closed.
func (r *Runner) drain(stdout, stderr <-chan []byte, emitSignals bool) {
	for stdout != nil || stderr != nil {
		select {
		case chunk, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			r.stdOut.Append(chunk, emitSignals)
		case chunk, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			r.stdErr.Append(chunk, emitSignals)
		}
	}
}

// settle derives the final outcome once the process has exited. A latched
// Hang wins over the crash that the forced kill provoked.
func (r *Runner) settle(p Process) Response {
	r.response.ExitCode = p.ExitCode()
	if r.response.Result != Hang {
		if p.Crashed() {
			r.response.Result = TerminatedAbnormally
		} else {
			r.response.Result = r.exitCodeInterpreter(r.response.ExitCode)
		}
	}
	r.response.RawStdOut = r.stdOut.rawData
	r.response.RawStdErr = r.stdErr.rawData
	r.logger.Debug("finished", "result", r.response.Result, "exitCode", r.response.ExitCode)
	return r.response
}

// stopWithin stops p with a terminate-then-kill escalation. The output
// channels keep being drained into the buffers while waiting: the pipe
// readers block on unbuffered sends and Done only closes after they finish,
// so a stop that ignores the channels can never confirm the death of a
// process with a chunk in flight.
func (r *Runner) stopWithin(p Process, stdout, stderr *<-chan []byte, grace time.Duration, emitSignals bool) bool {
	_ = p.Terminate()
	if r.drainUntilDone(p, stdout, stderr, grace, emitSignals) {
		return true
	}
	_ = p.Kill()
	return r.drainUntilDone(p, stdout, stderr, grace, emitSignals)
}

func (r *Runner) drainUntilDone(p Process, stdout, stderr *<-chan []byte, d time.Duration, emitSignals bool) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case chunk, ok := <-*stdout:
			if !ok {
				*stdout = nil
				continue
			}
			r.stdOut.Append(chunk, emitSignals)
		case chunk, ok := <-*stderr:
			if !ok {
				*stderr = nil
				continue
			}
			r.stdErr.Append(chunk, emitSignals)
		case <-p.Done():
			return true
		case <-t.C:
			return false
		}
	}
}

// StopProcess stops p: terminate, wait briefly, then kill and wait again.
// Remaining output is consumed and discarded so the pipe readers can finish;
// it reports whether the process is confirmed gone.
func StopProcess(p Process) bool {
	if !p.Running() {
		return true
	}
	_ = p.Terminate()
	if discardUntilDone(p, 300*time.Millisecond) {
		return true
	}
	_ = p.Kill()
	return discardUntilDone(p, 300*time.Millisecond)
}

func discardUntilDone(p Process, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	stdout, stderr := p.Stdout(), p.Stderr()
	for {
		select {
		case _, ok := <-stdout:
			if !ok {
				stdout = nil
			}
		case _, ok := <-stderr:
			if !ok {
				stderr = nil
			}
		case <-p.Done():
			return true
		case <-t.C:
			return false
		}
	}
}
