package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
	"shaderkit/internal/variant"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the resolved source of one shader variant",
	Long: `resolve expands every directive of a shader for a render mode and feature
mask and prints the text that would be handed to the compiler.`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	addVariantFlags(resolveCmd)
	resolveCmd.Flags().String("stage", "both", "stage to print (vertex|fragment|both)")
	resolveCmd.Flags().Bool("no-prologue", false, "omit the generated #define prologue")
}

func runResolve(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		_ = s.printDiagnostics(os.Stderr, "pretty", true)
		return err
	}
	sel, err := readVariantFlags(cmd, s)
	if err != nil {
		return err
	}
	stageFlag, _ := cmd.Flags().GetString("stage")
	stages, err := readStages(stageFlag)
	if err != nil {
		return err
	}
	noPrologue, _ := cmd.Flags().GetBool("no-prologue")

	fe := variant.NewFrontend(s.reg, sel.code, nil, variant.WithReporter(diag.BagReporter{Bag: s.bag}))
	defer fe.Close()
	fe.Init(s.manifest.Defines())

	done := s.timer.Track("resolve")
	src, err := fe.Resolve(sel.mode, sel.mask)
	done(maskLabel(s.reg, sel.mask))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, st := range stages {
		if len(stages) > 1 {
			fmt.Fprintf(out, "// ---- %s (mode %s, mask %s: %s) ----\n", st, src.Modes[st], sel.mask, maskLabel(s.reg, sel.mask))
		}
		if noPrologue {
			fmt.Fprint(out, src.Body[st])
		} else {
			fmt.Fprint(out, src.Stage(st))
		}
	}

	if err := s.printDiagnostics(os.Stderr, "pretty", false); err != nil {
		return err
	}
	for _, inc := range pendingIncludes(src) {
		fmt.Fprintf(os.Stderr, "include %q is not loaded; the variant is incomplete\n", inc)
	}
	s.finish(os.Stderr)
	return nil
}

func pendingIncludes(src *variant.Sources) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range src.Missing {
		if m.Kind == shader.DirectiveInclude && !seen[m.Name] {
			seen[m.Name] = true
			out = append(out, m.Name)
		}
	}
	return out
}
