package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shaderkit/internal/diag"
	"shaderkit/internal/gpu"
	"shaderkit/internal/shader"
	"shaderkit/internal/variant"
)

var errCompileFailed = errors.New("variant failed to compile")

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile one shader variant to SPIR-V",
	Args:  cobra.NoArgs,
	RunE:  runCompile,
}

func init() {
	addVariantFlags(compileCmd)
	addCompilerFlags(compileCmd)
	compileCmd.Flags().String("emit", "", "write SPIR-V of both stages into this directory")
}

func runCompile(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		_ = s.printDiagnostics(os.Stderr, "pretty", true)
		return err
	}
	sel, err := readVariantFlags(cmd, s)
	if err != nil {
		return err
	}
	emitDir, _ := cmd.Flags().GetString("emit")

	compiler, cleanup, err := openCompiler(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	fe := variant.NewFrontend(s.reg, sel.code, compiler,
		variant.WithDiagnostics(variant.NewDiagnostics(printSink{w: os.Stderr, color: s.color})),
		variant.WithReporter(diag.BagReporter{Bag: s.bag}))
	defer fe.Close()
	fe.Init(s.manifest.Defines())

	done := s.timer.Track("compile")
	prog := fe.GetProgram(sel.mode, sel.mask)
	done(maskLabel(s.reg, sel.mask))
	if err := s.printDiagnostics(os.Stderr, "pretty", false); err != nil {
		return err
	}
	s.finish(os.Stderr)
	if prog == nil {
		return fmt.Errorf("%w: %s/%s %s", errCompileFailed, sel.code.Name, sel.mode, maskLabel(s.reg, sel.mask))
	}

	out := cmd.OutOrStdout()
	np, ok := prog.(*gpu.NagaProgram)
	if !ok {
		fmt.Fprintln(out, "compiled")
		return nil
	}
	for _, st := range shader.Stages {
		fmt.Fprintf(out, "%-8s %6d words", st, len(np.SPIRV(st)))
		if np.Module(st) != nil {
			fmt.Fprint(out, "  module created")
		}
		fmt.Fprintln(out)
	}
	if emitDir != "" {
		paths, err := writeSPIRV(emitDir, np, sel)
		if err != nil {
			return fmt.Errorf("emit: %w", err)
		}
		for _, p := range paths {
			fmt.Fprintf(out, "wrote %s\n", p)
		}
	}
	return nil
}
