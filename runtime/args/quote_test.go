package args

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aledsdavies/cmdline/core/platform"
)

func TestQuoteArgUnix(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want string
	}{
		{name: "empty", arg: "", want: "''"},
		{name: "plain", arg: "hello", want: "hello"},
		{name: "path", arg: "/usr/bin/env", want: "/usr/bin/env"},
		{name: "blank", arg: "a b", want: "'a b'"},
		{name: "dollar", arg: "$HOME", want: "'$HOME'"},
		{name: "single quote", arg: "it's", want: `'it'\''s'`},
		{name: "double quote", arg: `a"b`, want: `'a"b'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteArg(tt.arg, platform.Linux); got != tt.want {
				t.Errorf("QuoteArg(%q) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}

func TestQuoteArgWindows(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want string
	}{
		{name: "empty", arg: "", want: `""`},
		{name: "plain", arg: "hello", want: "hello"},
		{name: "backslashes alone stay plain", arg: `C:\dir\sub`, want: `C:\dir\sub`},
		{name: "blank", arg: "a b", want: `"a b"`},
		{name: "trailing backslash outside quotes", arg: `a b\`, want: `"a b"\`},
		{name: "embedded quote suspends quoting", arg: `a"b`, want: `"a"\^""b"`},
		{name: "backslashes before quote double", arg: `a\"b`, want: `"a\\"\^""b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteArg(tt.arg, platform.Windows); got != tt.want {
				t.Errorf("QuoteArg(%q) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}

// Quoting then splitting must reproduce the original argument exactly, on
// both grammars. The Windows path goes through the cmd interpretation layer
// because quoting may emit circumflex escapes.
func TestQuoteSplitRoundTrip(t *testing.T) {
	argSets := [][]string{
		{"simple"},
		{"two words", "three more words"},
		{""},
		{"a b", "", "c"},
		{`back\slash`, `trailing\`},
		{`trailing spaced \`},
		{`quote"inside`},
		{`"`},
		{`mixed "quotes" and\ slashes\`},
		{"dollar $VAR and `backtick`"},
		{"single'quote", "it's"},
		{"tab\there"},
	}

	for _, osType := range []platform.OsType{platform.Linux, platform.Windows} {
		opts := SplitOptions{}
		if osType == platform.Windows {
			opts.AbortOnMeta = true
			opts.Env = MapEnvironment{}
		}
		for _, argv := range argSets {
			joined := JoinArgs(argv, osType)
			words, status := Split(joined, osType, opts)
			if status != SplitOK {
				t.Errorf("%v: Split(%q) status = %v, want ok", osType, joined, status)
				continue
			}
			if diff := cmp.Diff(argv, words); diff != "" {
				t.Errorf("%v: round trip of %q via %q mismatch (-want +got):\n%s",
					osType, argv, joined, diff)
			}
		}
	}
}

// Quoting an already-quoted-then-decoded argument is stable.
func TestQuoteIdempotence(t *testing.T) {
	inputs := []string{"plain", "a b", `tricky "arg" \`, "it's"}

	for _, osType := range []platform.OsType{platform.Linux, platform.Windows} {
		opts := SplitOptions{}
		if osType == platform.Windows {
			opts.AbortOnMeta = true
			opts.Env = MapEnvironment{}
		}
		for _, arg := range inputs {
			quoted := QuoteArg(arg, osType)
			words, status := Split(quoted, osType, opts)
			if status != SplitOK || len(words) != 1 {
				t.Fatalf("%v: Split(%q) = %q, %v", osType, quoted, words, status)
			}
			if again := QuoteArg(words[0], osType); again != quoted {
				t.Errorf("%v: QuoteArg not idempotent: %q then %q", osType, quoted, again)
			}
		}
	}
}
