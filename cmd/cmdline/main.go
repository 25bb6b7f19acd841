package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/aledsdavies/cmdline/core/platform"
	"github.com/aledsdavies/cmdline/runtime/args"
	"github.com/aledsdavies/cmdline/runtime/proc"
)

// Exit code constants
const (
	ExitSuccess          = 0
	ExitInvalidArguments = 1
	ExitBadInput         = 2
	ExitRunFailed        = 3
)

// config holds file-based defaults; flags override it.
type config struct {
	Dialect  string `yaml:"dialect"`
	TimeoutS int    `yaml:"timeoutS"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	explicit := path != ""
	if !explicit {
		path = ".cmdline.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func dialectOsType(dialect string) (platform.OsType, error) {
	switch dialect {
	case "", "host":
		return platform.HostOs(), nil
	case "unix":
		return platform.Linux, nil
	case "windows":
		return platform.Windows, nil
	default:
		return platform.Other, fmt.Errorf("unknown dialect %q (want host, unix or windows)", dialect)
	}
}

func parseKeyValues(pairs []string, what string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		idx := strings.IndexByte(kv, '=')
		if idx <= 0 {
			return nil, fmt.Errorf("%s %q is not KEY=VALUE", what, kv)
		}
		m[kv[:idx]] = kv[idx+1:]
	}
	return m, nil
}

// macroFinder locates %{name} tokens with a known name.
func macroFinder(values map[string]string) args.MacroFinder {
	return func(text string, from int) (int, int, string, bool) {
		for i := from; i+1 < len(text); i++ {
			if text[i] != '%' || text[i+1] != '{' {
				continue
			}
			end := strings.IndexByte(text[i+2:], '}')
			if end < 0 {
				return 0, 0, "", false
			}
			if value, ok := values[text[i+2:i+2+end]]; ok {
				return i, end + 3, value, true
			}
		}
		return 0, 0, "", false
	}
}

func main() {
	var (
		configPath string
		dialect    string
	)

	rootCmd := &cobra.Command{
		Use:           "cmdline",
		Short:         "Cross-platform command-line splitting, quoting, macro expansion and execution",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file with defaults")
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "", "command-line grammar: host, unix or windows")

	osTypeFor := func() (platform.OsType, int, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return platform.Other, 0, err
		}
		if dialect == "" {
			dialect = cfg.Dialect
		}
		osType, err := dialectOsType(dialect)
		return osType, cfg.TimeoutS, err
	}

	var (
		abortOnMeta bool
		envPairs    []string
		pwd         string
	)
	splitCmd := &cobra.Command{
		Use:   "split <commandline>",
		Short: "Split a command line into arguments, one per output line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			osType, _, err := osTypeFor()
			if err != nil {
				return err
			}
			opts := args.SplitOptions{AbortOnMeta: abortOnMeta, Pwd: pwd}
			if len(envPairs) > 0 {
				env, err := parseKeyValues(envPairs, "env entry")
				if err != nil {
					return err
				}
				if osType == platform.Windows {
					opts.Env = args.NewCmdEnvironment(env)
				} else {
					opts.Env = args.MapEnvironment(env)
				}
			}
			words, status := args.Split(argv[0], osType, opts)
			if status != args.SplitOK {
				fmt.Fprintf(os.Stderr, "cannot split: %s\n", status)
				os.Exit(ExitBadInput)
			}
			for _, word := range words {
				fmt.Println(word)
			}
			return nil
		},
	}
	splitCmd.Flags().BoolVar(&abortOnMeta, "abort-on-meta", false, "fail on shell constructs outside the supported subset")
	splitCmd.Flags().StringArrayVar(&envPairs, "env", nil, "KEY=VALUE environment entry for variable expansion (repeatable)")
	splitCmd.Flags().StringVar(&pwd, "pwd", "", "value for PWD/%CD% expansion")

	quoteCmd := &cobra.Command{
		Use:   "quote <arg>...",
		Short: "Quote arguments for the selected grammar, one per output line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			osType, _, err := osTypeFor()
			if err != nil {
				return err
			}
			for _, arg := range argv {
				fmt.Println(args.QuoteArg(arg, osType))
			}
			return nil
		},
	}

	joinCmd := &cobra.Command{
		Use:   "join <arg>...",
		Short: "Join arguments into a single quoted command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			osType, _, err := osTypeFor()
			if err != nil {
				return err
			}
			fmt.Println(args.JoinArgs(argv, osType))
			return nil
		},
	}

	var macroPairs []string
	expandCmd := &cobra.Command{
		Use:   "expand <commandline>",
		Short: "Expand %{name} macros inside a command line, quoting-aware",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			osType, _, err := osTypeFor()
			if err != nil {
				return err
			}
			macros, err := parseKeyValues(macroPairs, "macro")
			if err != nil {
				return err
			}
			expanded, ok := args.ExpandMacros(argv[0], macroFinder(macros), osType)
			if !ok {
				fmt.Fprintln(os.Stderr, "cannot expand: substitution site cannot be quoted safely")
				os.Exit(ExitBadInput)
			}
			fmt.Println(expanded)
			return nil
		},
	}
	expandCmd.Flags().StringArrayVar(&macroPairs, "macro", nil, "NAME=VALUE macro definition (repeatable)")

	var (
		timeoutS    int
		interactive bool
		workDir     string
	)
	runCmd := &cobra.Command{
		Use:   "run <commandline>",
		Short: "Run a command line synchronously, with hang detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			osType, cfgTimeout, err := osTypeFor()
			if err != nil {
				return err
			}
			if timeoutS == 0 {
				timeoutS = cfgTimeout
			}

			// Peel the program name off the front; the remainder goes
			// through PrepareCommand so shell constructs fall back to a
			// real shell transparently.
			it := args.NewArgIterator(argv[0], osType)
			if !it.Next() || !it.Simple() {
				fmt.Fprintln(os.Stderr, "cannot run: no plain program name at the start of the command line")
				os.Exit(ExitBadInput)
			}
			program := it.Value()
			it.DeleteArg()
			rest := strings.TrimLeft(it.Text(), " \t")

			var env args.Environment = args.SystemEnvironment()
			if osType == platform.Windows {
				env = args.NewCmdEnvironment(args.SystemEnvironment())
			}
			binary, arguments, ok := args.PrepareCommand(program, rest, osType, args.SplitOptions{Env: env})
			if !ok {
				fmt.Fprintln(os.Stderr, "cannot run: bad quoting in command line")
				os.Exit(ExitBadInput)
			}

			runner := proc.NewRunner()
			runner.SetTimeoutS(timeoutS)
			runner.SetWorkingDirectory(workDir)

			var response proc.Response
			if interactive {
				runner.SetStdOutCallback(func(lines string) { fmt.Print(lines) })
				runner.SetStdErrCallback(func(lines string) { fmt.Fprint(os.Stderr, lines) })
				if term.IsTerminal(int(os.Stdin.Fd())) {
					runner.SetAskToKill(askToKill)
				}
				response = runner.Run(binary, arguments)
			} else {
				response = runner.RunBlocking(binary, arguments)
				fmt.Print(response.StdOut())
				fmt.Fprint(os.Stderr, response.StdErr())
			}

			if response.Result != proc.Finished {
				fmt.Fprintln(os.Stderr, response.ExitMessage(binary, timeoutS))
				os.Exit(ExitRunFailed)
			}
			return nil
		},
	}
	runCmd.Flags().IntVar(&timeoutS, "timeout", 0, "seconds without output before a hang is declared (0: config default)")
	runCmd.Flags().BoolVar(&interactive, "interactive", false, "stream output lines as they arrive and prompt before killing a hung process")
	runCmd.Flags().StringVar(&workDir, "dir", "", "working directory for the child process")

	rootCmd.AddCommand(splitCmd, quoteCmd, joinCmd, expandCmd, runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitInvalidArguments)
	}
	os.Exit(ExitSuccess)
}

func askToKill(command string) bool {
	fmt.Fprintf(os.Stderr, "The process %q is not responding. Kill it? [Y/n] ", command)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return true
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer != "n" && answer != "no"
}
