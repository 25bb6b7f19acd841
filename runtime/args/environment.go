package args

import (
	"os"
	"strings"
)

// Environment is the variable-snapshot capability consumed by the splitters
// and the macro-free expansion paths. Lookups are case-sensitive for POSIX
// shells; the Windows grammar folds names to upper case before calling
// Lookup, so a snapshot meant for cmd.exe should store its keys folded (see
// NewCmdEnvironment).
type Environment interface {
	// Lookup returns the raw value for key and whether the key exists.
	Lookup(key string) (string, bool)

	// ExpandedValue returns the value for key with any nested references
	// already resolved by the snapshot. Missing keys yield "".
	ExpandedValue(key string) string
}

// MapEnvironment is a plain map-backed Environment. Values are returned as
// stored; ExpandedValue equals the raw value.
type MapEnvironment map[string]string

func (e MapEnvironment) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

func (e MapEnvironment) ExpandedValue(key string) string {
	return e[key]
}

// NewCmdEnvironment builds a MapEnvironment with upper-cased keys, matching
// the case-insensitive lookup semantics of cmd.exe variable expansion.
func NewCmdEnvironment(vars map[string]string) MapEnvironment {
	env := make(MapEnvironment, len(vars))
	for k, v := range vars {
		env[strings.ToUpper(k)] = v
	}
	return env
}

// SystemEnvironment snapshots the current process environment.
func SystemEnvironment() MapEnvironment {
	environ := os.Environ()
	env := make(MapEnvironment, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}
