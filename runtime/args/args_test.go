package args

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/cmdline/core/platform"
)

func TestArgumentsAccessors(t *testing.T) {
	win := WindowsArgs(`a "b c"`)
	assert.True(t, win.IsWindows())
	assert.Equal(t, `a "b c"`, win.ToWindowsArgs())
	assert.Equal(t, `a "b c"`, win.String())

	unix := UnixArgs([]string{"a", "b c"})
	assert.False(t, unix.IsWindows())
	assert.Equal(t, []string{"a", "b c"}, unix.ToUnixArgs())
	assert.Equal(t, "a 'b c'", unix.String())

	assert.Panics(t, func() { win.ToUnixArgs() })
	assert.Panics(t, func() { unix.ToWindowsArgs() })
}

func TestJoinArgs(t *testing.T) {
	assert.Equal(t, "a 'b c' ''", JoinArgs([]string{"a", "b c", ""}, platform.Linux))
	assert.Equal(t, `a "b c" ""`, JoinArgs([]string{"a", "b c", ""}, platform.Windows))
}

func TestAddArgs(t *testing.T) {
	var list string
	AddArg(&list, "prog", platform.Linux)
	AddArg(&list, "a b", platform.Linux)
	assert.Equal(t, "prog 'a b'", list)

	AddArgsRaw(&list, `--pre "quoted"`)
	assert.Equal(t, `prog 'a b' --pre "quoted"`, list)

	AddArgsRaw(&list, "")
	assert.Equal(t, `prog 'a b' --pre "quoted"`, list)

	AddArgsList(&list, []string{"x", "y z"}, platform.Linux)
	assert.Equal(t, `prog 'a b' --pre "quoted" x 'y z'`, list)
}

func TestPrepareCommandUnix(t *testing.T) {
	t.Run("plain arguments pass through", func(t *testing.T) {
		cmd, argList, ok := PrepareCommand("ls", "-l 'a b'", platform.Linux, SplitOptions{})
		require.True(t, ok)
		assert.Equal(t, "ls", cmd)
		if diff := cmp.Diff([]string{"-l", "a b"}, argList.ToUnixArgs()); diff != "" {
			t.Errorf("argument mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("metacharacters fall back to the shell", func(t *testing.T) {
		env := MapEnvironment{"SHELL": "/bin/bash"}
		cmd, argList, ok := PrepareCommand("grep", "foo | wc -l", platform.Linux, SplitOptions{Env: env})
		require.True(t, ok)
		assert.Equal(t, "/bin/bash", cmd)
		if diff := cmp.Diff([]string{"-c", "grep foo | wc -l"}, argList.ToUnixArgs()); diff != "" {
			t.Errorf("argument mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("command with special characters is quoted in the fallback", func(t *testing.T) {
		env := MapEnvironment{"SHELL": "/bin/sh"}
		_, argList, ok := PrepareCommand("/opt/my tools/grep", "foo | wc", platform.Linux, SplitOptions{Env: env})
		require.True(t, ok)
		assert.Equal(t, []string{"-c", "'/opt/my tools/grep' foo | wc"}, argList.ToUnixArgs())
	})

	t.Run("bad quoting is a hard failure", func(t *testing.T) {
		_, _, ok := PrepareCommand("ls", "'abc", platform.Linux, SplitOptions{})
		assert.False(t, ok)
	})
}

func TestPrepareCommandWindows(t *testing.T) {
	t.Run("plain arguments pass through", func(t *testing.T) {
		cmd, argList, ok := PrepareCommand("tool.exe", `-x "a b"`, platform.Windows, SplitOptions{})
		require.True(t, ok)
		assert.Equal(t, "tool.exe", cmd)
		assert.Equal(t, `-x "a b"`, argList.ToWindowsArgs())
	})

	t.Run("metacharacters fall back to comspec", func(t *testing.T) {
		env := NewCmdEnvironment(map[string]string{"COMSPEC": `C:\Windows\cmd.exe`})
		cmd, argList, ok := PrepareCommand("C:/tools/tool.exe", "a | b", platform.Windows, SplitOptions{Env: env})
		require.True(t, ok)
		assert.Equal(t, `C:\Windows\cmd.exe`, cmd)
		assert.Equal(t, `/v:off /s /c "C:\tools\tool.exe a | b"`, argList.ToWindowsArgs())
	})
}

func TestSplitErrorString(t *testing.T) {
	assert.Equal(t, "ok", SplitOK.String())
	assert.Equal(t, "bad quoting", BadQuoting.String())
	assert.Equal(t, "found metacharacter", FoundMeta.String())
}
