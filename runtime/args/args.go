// Package args implements command-line splitting, quoting, and safe macro
// expansion for the two incompatible grammar families in practical use: the
// POSIX shell subset and the Windows cmd.exe/CRT subset.
//
// All entry points are pure functions over an input string plus explicit
// option values; nothing blocks and nothing is shared, so every function is
// safe to call from any goroutine.
package args

import (
	"os"
	"strings"

	"github.com/aledsdavies/cmdline/core/invariant"
	"github.com/aledsdavies/cmdline/core/platform"
)

// SplitError is the status of a split or prepare operation.
type SplitError int

const (
	// SplitOK means the input parsed cleanly.
	SplitOK SplitError = iota

	// BadQuoting means the input is malformed (e.g. an unterminated
	// quote). It is never silently repaired.
	BadQuoting

	// FoundMeta means the input contains a shell construct outside the
	// supported subset. PrepareCommand recovers from it by falling back
	// to a real shell.
	FoundMeta
)

func (e SplitError) String() string {
	switch e {
	case SplitOK:
		return "ok"
	case BadQuoting:
		return "bad quoting"
	case FoundMeta:
		return "found metacharacter"
	default:
		return "unknown split error"
	}
}

// SplitOptions carries the optional capabilities consumed while splitting.
type SplitOptions struct {
	// AbortOnMeta makes encounters of unhandled metacharacters an error
	// (FoundMeta) instead of passing them through literally.
	AbortOnMeta bool

	// Env enables variable substitution ($VAR, ${VAR}, %VAR%) when set.
	Env Environment

	// Pwd substitutes $PWD (Unix) and %CD% (Windows) when non-empty,
	// taking precedence over the environment snapshot.
	Pwd string

	// HomeDir is substituted for a leading unquoted '~' on Unix.
	// Empty means the current user's home directory.
	HomeDir string
}

func (o SplitOptions) homeDir() string {
	if o.HomeDir != "" {
		return o.HomeDir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return ""
}

// Arguments is a platform-tagged argument list. POSIX process creation takes
// an argv vector of decoded words, while Windows process creation takes one
// pre-escaped native command-line string, so the two representations cannot
// be unified without loss. Reading the wrong accessor is a programming error
// and panics.
type Arguments struct {
	windowsArgs string
	unixArgs    []string
	isWindows   bool
}

// WindowsArgs wraps a native Windows command-line string.
func WindowsArgs(nativeArgs string) Arguments {
	return Arguments{windowsArgs: nativeArgs, isWindows: true}
}

// UnixArgs wraps a decoded argv vector.
func UnixArgs(argv []string) Arguments {
	return Arguments{unixArgs: argv}
}

// IsWindows reports which representation this list carries.
func (a Arguments) IsWindows() bool { return a.isWindows }

// ToWindowsArgs returns the native command-line string.
func (a Arguments) ToWindowsArgs() string {
	invariant.Precondition(a.isWindows, "ToWindowsArgs called on unix argument list")
	return a.windowsArgs
}

// ToUnixArgs returns the argv vector.
func (a Arguments) ToUnixArgs() []string {
	invariant.Precondition(!a.isWindows, "ToUnixArgs called on windows argument list")
	return a.unixArgs
}

// String renders the list for user output: the native string on Windows,
// the re-quoted joined form on Unix.
func (a Arguments) String() string {
	if a.isWindows {
		return a.windowsArgs
	}
	return JoinArgs(a.unixArgs, platform.Linux)
}

// Dialect is the per-platform grammar strategy. One implementation exists
// for each grammar family, so unit tests can target either one without a
// matching host OS.
type Dialect interface {
	// Split divides text into unquoted words. On a non-OK status the
	// returned slice is nil and must not be used.
	Split(text string, opts SplitOptions) ([]string, SplitError)

	// Prepare converts text into the platform argument representation,
	// applying cmd-level interpretation on Windows. Unhandled shell
	// constructs are always reported as FoundMeta, regardless of
	// opts.AbortOnMeta, so callers can decide on a shell fallback.
	Prepare(text string, opts SplitOptions) (Arguments, SplitError)

	// Quote escapes a single argument so that re-parsing reproduces it.
	Quote(arg string) string

	// ExpandMacros substitutes every macro occurrence found by find with
	// safely quoted replacement text. It reports ok=false when any site
	// cannot be proven safe; no partial result is returned in that case.
	ExpandMacros(text string, find MacroFinder) (string, bool)
}

type unixDialect struct{}
type windowsDialect struct{}

// Unix is the POSIX-subset grammar strategy.
var Unix Dialect = unixDialect{}

// Windows is the cmd.exe/CRT grammar strategy.
var Windows Dialect = windowsDialect{}

// DialectFor maps an OsType to its grammar strategy.
func DialectFor(osType platform.OsType) Dialect {
	if osType == platform.Windows {
		return Windows
	}
	return Unix
}

func (unixDialect) Split(text string, opts SplitOptions) ([]string, SplitError) {
	return splitArgsUnix(text, opts)
}

func (windowsDialect) Split(text string, opts SplitOptions) ([]string, SplitError) {
	return splitArgsWin(text, opts)
}

func (unixDialect) Prepare(text string, opts SplitOptions) (Arguments, SplitError) {
	opts.AbortOnMeta = true
	words, status := splitArgsUnix(text, opts)
	if status != SplitOK {
		return Arguments{}, status
	}
	return UnixArgs(words), SplitOK
}

func (windowsDialect) Prepare(text string, opts SplitOptions) (Arguments, SplitError) {
	return prepareArgsWin(text, opts)
}

func (unixDialect) Quote(arg string) string    { return quoteArgUnix(arg) }
func (windowsDialect) Quote(arg string) string { return quoteArgWin(arg) }

func (unixDialect) ExpandMacros(text string, find MacroFinder) (string, bool) {
	return expandMacrosUnix(text, find)
}

func (windowsDialect) ExpandMacros(text string, find MacroFinder) (string, bool) {
	return expandMacrosWin(text, find)
}

// Split divides text into words per the grammar of osType.
func Split(text string, osType platform.OsType, opts SplitOptions) ([]string, SplitError) {
	return DialectFor(osType).Split(text, opts)
}

// Prepare converts text into the argument representation of osType.
func Prepare(text string, osType platform.OsType, opts SplitOptions) (Arguments, SplitError) {
	return DialectFor(osType).Prepare(text, opts)
}

// QuoteArg escapes a single argument for osType.
func QuoteArg(arg string, osType platform.OsType) string {
	return DialectFor(osType).Quote(arg)
}

// AddArg appends arg, quoted for osType, to the command line in list.
func AddArg(list *string, arg string, osType platform.OsType) {
	if *list != "" {
		*list += " "
	}
	*list += QuoteArg(arg, osType)
}

// JoinArgs quotes every argument and joins them with single spaces.
func JoinArgs(argv []string, osType platform.OsType) string {
	var ret string
	for _, arg := range argv {
		AddArg(&ret, arg, osType)
	}
	return ret
}

// AddArgsRaw appends an already-quoted argument string verbatim.
func AddArgsRaw(list *string, inArgs string) {
	if inArgs == "" {
		return
	}
	if *list != "" {
		*list += " "
	}
	*list += inArgs
}

// AddArgsList quotes and appends each argument in argv.
func AddArgsList(list *string, argv []string, osType platform.OsType) {
	for _, arg := range argv {
		AddArg(list, arg, osType)
	}
}

// ExpandMacros substitutes macros in text per the grammar of osType.
func ExpandMacros(text string, find MacroFinder, osType platform.OsType) (string, bool) {
	return DialectFor(osType).ExpandMacros(text, find)
}

// PrepareCommand splits arguments for running command. When the argument
// string uses shell constructs outside the supported subset, the call
// transparently falls back to invoking the user's shell ($SHELL or /bin/sh
// with -c on Unix, %COMSPEC% with /v:off /s /c on Windows) so the logical
// outcome is unchanged. Malformed input (BadQuoting) is a hard failure with
// no fallback: ok is false and the outputs are unspecified.
func PrepareCommand(command, arguments string, osType platform.OsType, opts SplitOptions) (cmd string, argList Arguments, ok bool) {
	argList, status := Prepare(arguments, osType, opts)
	if status == SplitOK {
		return command, argList, true
	}

	if status != FoundMeta {
		return "", Arguments{}, false
	}

	if osType == platform.Windows {
		cmd = lookupShellVar(opts.Env, "COMSPEC")
		native := "/v:off /s /c \"" +
			quoteArgWin(toNativeSeparatorsWin(command)) + " " + arguments + "\""
		return cmd, WindowsArgs(native), true
	}

	cmd = lookupShellVar(opts.Env, "SHELL")
	if cmd == "" {
		cmd = "/bin/sh"
	}
	return cmd, UnixArgs([]string{"-c", quoteArgUnix(command) + " " + arguments}), true
}

func lookupShellVar(env Environment, key string) string {
	if env != nil {
		if v, ok := env.Lookup(key); ok {
			return v
		}
	}
	return os.Getenv(key)
}

func toNativeSeparatorsWin(path string) string {
	return strings.ReplaceAll(path, "/", "\\")
}
