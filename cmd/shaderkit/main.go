package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shaderkit/internal/logging"
	"shaderkit/internal/prof"
	"shaderkit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "shaderkit",
	Short: "Shader variant toolkit",
	Long: `shaderkit loads a shader library described by shaderkit.toml, checks its
directives, resolves feature-mask variants and compiles them to SPIR-V.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelFlag, err := cmd.Root().PersistentFlags().GetString("log-level")
		if err != nil {
			return err
		}
		level, silent, err := logging.ParseLevel(levelFlag)
		if err != nil {
			return err
		}
		if !silent {
			logging.SetLogger(logging.NewText(os.Stderr, level))
		}
		return startProfiling(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return stopProfiling()
	},
}

var activeProfile *prof.Session

func startProfiling(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	var paths prof.Paths
	paths.CPU, _ = flags.GetString("cpu-profile")
	paths.Mem, _ = flags.GetString("mem-profile")
	paths.Trace, _ = flags.GetString("trace")
	s, err := prof.Start(paths)
	if err != nil {
		return err
	}
	activeProfile = s
	return nil
}

// stopProfiling is safe to call more than once; main calls it again after a
// failed command, when the post-run hook was skipped.
func stopProfiling() error {
	s := activeProfile
	activeProfile = nil
	return s.Stop()
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(prewarmCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("manifest", "", "path to shaderkit.toml (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("log-level", "off", "log level (off|debug|info|warn|error)")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
	rootCmd.PersistentFlags().String("trace", "", "write a runtime trace to this file")
}

func main() {
	rootCmd.Version = version.Version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if perr := stopProfiling(); perr != nil {
		fmt.Fprintln(os.Stderr, perr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func useColor(cmd *cobra.Command, f *os.File) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto", "":
		return isTerminal(f), nil
	}
	return false, errInvalidFlag("--color", mode, "auto|on|off")
}
