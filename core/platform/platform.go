// Package platform identifies the operating system flavor a command line is
// destined for. Argument grammars differ between the Windows shell family and
// the POSIX shell family, so most of the runtime dispatches on OsType.
package platform

import "runtime"

// OsType classifies an operating system by its command-line conventions.
type OsType int

const (
	Windows OsType = iota
	Linux
	Mac
	OtherUnix
	Other
)

func (t OsType) String() string {
	switch t {
	case Windows:
		return "windows"
	case Linux:
		return "linux"
	case Mac:
		return "mac"
	case OtherUnix:
		return "unix"
	default:
		return "other"
	}
}

// IsAnyUnix reports whether the OS uses POSIX shell conventions.
func (t OsType) IsAnyUnix() bool {
	switch t {
	case Linux, Mac, OtherUnix:
		return true
	}
	return false
}

// HostOs returns the OsType of the machine this process runs on.
func HostOs() OsType {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "linux":
		return Linux
	case "darwin":
		return Mac
	case "freebsd", "netbsd", "openbsd", "dragonfly", "solaris", "aix":
		return OtherUnix
	default:
		return Other
	}
}

// PathListSeparator returns the separator used in PATH-style lists.
func (t OsType) PathListSeparator() string {
	if t == Windows {
		return ";"
	}
	return ":"
}
