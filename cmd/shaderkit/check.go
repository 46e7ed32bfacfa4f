package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shaderkit/internal/diag"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check directives and references of the shader library",
	Long: `check loads the manifest, parses every shader, block, snippet and module and
reports malformed directives, references to unregistered blocks, snippets or
include modules, and block dependency cycles.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json|short)")
	checkCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	checkCmd.Flags().Bool("warnings-as-errors", false, "treat warnings as errors")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	withNotes, _ := cmd.Flags().GetBool("with-notes")
	strict, _ := cmd.Flags().GetBool("warnings-as-errors")

	s, loadErr := openSession(cmd)
	if s == nil {
		return loadErr
	}
	if loadErr == nil {
		done := s.timer.Track("check")
		s.reg.Check(diag.BagReporter{Bag: s.bag})
		done("")
	}

	out := cmd.OutOrStdout()
	if format == "pretty" {
		// цвет решается по stdout, а не по stderr
		if s.color, err = useColor(cmd, os.Stdout); err != nil {
			return err
		}
	}
	if err := s.printDiagnostics(out, format, withNotes); err != nil {
		return err
	}
	s.finish(os.Stderr)

	if loadErr != nil {
		return loadErr
	}
	errs, warns := s.bag.Counts()
	if errs > 0 || (strict && warns > 0) {
		return fmt.Errorf("%w: %d error(s), %d warning(s)", errCheckFailed, errs, warns)
	}
	if format == "pretty" {
		fmt.Fprintf(out, "%s: %d blocks, %d shaders, %d warning(s)\n",
			s.manifest.Library.Name, len(s.reg.Blocks()), len(s.reg.Shaders()), warns)
	}
	return nil
}

var errCheckFailed = errors.New("check failed")
