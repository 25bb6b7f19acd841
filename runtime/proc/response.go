package proc

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Result classifies how a child process run ended.
type Result int

const (
	// StartFailed is the zero value: a response reports it until a
	// verdict is reached.
	StartFailed Result = iota
	// Finished with an exit code the interpreter accepted.
	Finished
	// FinishedError with an exit code the interpreter rejected.
	FinishedError
	// TerminatedAbnormally by a signal or crash.
	TerminatedAbnormally
	// Hang was detected and the process killed.
	Hang
)

func (r Result) String() string {
	switch r {
	case StartFailed:
		return "StartFailed"
	case Finished:
		return "Finished"
	case FinishedError:
		return "FinishedError"
	case TerminatedAbnormally:
		return "TerminatedAbnormally"
	case Hang:
		return "Hang"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// ExitCodeInterpreter maps a normal exit code to a run outcome, letting
// callers treat tool-specific codes (diff's 1, for instance) as success.
type ExitCodeInterpreter func(code int) Result

// DefaultExitCodeInterpreter treats zero as success and everything else as
// an error exit.
func DefaultExitCodeInterpreter(code int) Result {
	if code != 0 {
		return FinishedError
	}
	return Finished
}

// Response carries the outcome of one process run: the verdict, the exit
// code and both raw output channels. Decoded accessors normalize newlines
// the same way the incremental callbacks do.
type Response struct {
	Result    Result
	ExitCode  int
	RawStdOut []byte
	RawStdErr []byte

	codec encoding.Encoding
}

// Clear resets the response for a new run.
func (r *Response) Clear() {
	r.Result = StartFailed
	r.ExitCode = -1
	r.RawStdOut = nil
	r.RawStdErr = nil
}

func (r *Response) decode(raw []byte) string {
	codec := r.codec
	if codec == nil {
		codec = unicode.UTF8
	}
	decoded, _ := codec.NewDecoder().Bytes(raw)
	return NormalizeNewlines(string(decoded))
}

// StdOut returns the decoded, normalized standard output.
func (r *Response) StdOut() string { return r.decode(r.RawStdOut) }

// StdErr returns the decoded, normalized standard error.
func (r *Response) StdErr() string { return r.decode(r.RawStdErr) }

// AllOutput returns stdout and stderr joined, with a separating newline when
// both are non-empty.
func (r *Response) AllOutput() string {
	out := r.StdOut()
	err := r.StdErr()
	if out != "" && err != "" {
		if out[len(out)-1] != '\n' {
			out += "\n"
		}
		return out + err
	}
	if out != "" {
		return out
	}
	return err
}

// AllRawOutput returns the raw bytes of both channels joined, with a
// separating newline when both are non-empty.
func (r *Response) AllRawOutput() []byte {
	if len(r.RawStdOut) > 0 && len(r.RawStdErr) > 0 {
		result := append([]byte(nil), r.RawStdOut...)
		if result[len(result)-1] != '\n' {
			result = append(result, '\n')
		}
		return append(result, r.RawStdErr...)
	}
	if len(r.RawStdOut) > 0 {
		return r.RawStdOut
	}
	return r.RawStdErr
}

// ExitMessage renders a user-facing one-liner for the outcome of running
// binary with the given timeout.
func (r *Response) ExitMessage(binary string, timeoutS int) string {
	switch r.Result {
	case Finished:
		return fmt.Sprintf("The command %q finished successfully.", binary)
	case FinishedError:
		return fmt.Sprintf("The command %q terminated with exit code %d.", binary, r.ExitCode)
	case TerminatedAbnormally:
		return fmt.Sprintf("The command %q terminated abnormally.", binary)
	case StartFailed:
		return fmt.Sprintf("The command %q could not be started.", binary)
	case Hang:
		return fmt.Sprintf("The command %q did not respond within the timeout limit (%d s).", binary, timeoutS)
	}
	return ""
}
