package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
	"shaderkit/internal/ui"
	"shaderkit/internal/variant"
)

var prewarmCmd = &cobra.Command{
	Use:   "prewarm",
	Short: "Compile a set of variants ahead of time",
	Long: `prewarm compiles every requested variant of one shader and render mode.
--all-subsets a,b,c compiles every combination of the listed blocks;
--masks 0x1,0x3 compiles exactly the listed masks.`,
	Args: cobra.NoArgs,
	RunE: runPrewarm,
}

func init() {
	prewarmCmd.Flags().String("shader", "", "shader name (default: [library].default_shader)")
	prewarmCmd.Flags().String("mode", "", "render mode (default: [library].default_mode or \"default\")")
	prewarmCmd.Flags().String("all-subsets", "", "comma-separated blocks; every subset is compiled")
	prewarmCmd.Flags().String("masks", "", "comma-separated feature masks")
	prewarmCmd.Flags().String("ui", "auto", "progress UI mode (auto|on|off)")
	addCompilerFlags(prewarmCmd)
}

func runPrewarm(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		_ = s.printDiagnostics(os.Stderr, "pretty", true)
		return err
	}
	name, _ := cmd.Flags().GetString("shader")
	modeFlag, _ := cmd.Flags().GetString("mode")
	subsets, _ := cmd.Flags().GetString("all-subsets")
	masksFlag, _ := cmd.Flags().GetString("masks")
	uiFlag, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	code, err := s.shader(name)
	if err != nil {
		return err
	}
	masks, err := prewarmMasks(s, subsets, masksFlag)
	if err != nil {
		return err
	}
	labels := make([]string, len(masks))
	for i, m := range masks {
		labels[i] = fmt.Sprintf("%s %s", m, maskLabel(s.reg, m))
	}

	compiler, cleanup, err := openCompiler(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	fe := variant.NewFrontend(s.reg, code, compiler,
		variant.WithDiagnostics(variant.NewDiagnostics(printSink{w: os.Stderr, color: s.color})),
		variant.WithReporter(diag.NewDedupReporter(diag.BagReporter{Bag: s.bag})))
	defer fe.Close()
	fe.Init(s.manifest.Defines())

	renderMode := s.mode(modeFlag)
	title := fmt.Sprintf("%s/%s", code.Name, renderMode)
	done := s.timer.Track("prewarm")
	var res variant.PrewarmResult
	if shouldUseTUI(mode) {
		res, err = prewarmWithUI(cmd.Context(), fe, title, renderMode, masks, labels)
	} else {
		res, err = fe.Prewarm(cmd.Context(), renderMode, masks, ui.PlainProgress(cmd.OutOrStdout(), labels))
	}
	done(fmt.Sprintf("%d variants", len(masks)))
	if err != nil {
		return err
	}

	st := fe.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d compiled, %d cached, %d failed (%d not reported) in %s\n",
		title, res.Compiled, res.Cached, res.Failed, st.Suppressed, res.Elapsed)
	if err := s.printDiagnostics(os.Stderr, "pretty", false); err != nil {
		return err
	}
	s.finish(os.Stderr)
	if res.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", errCompileFailed, res.Failed, len(masks))
	}
	return nil
}

func prewarmMasks(s *session, subsets, list string) ([]shader.FeatureMask, error) {
	switch {
	case subsets != "" && list != "":
		return nil, fmt.Errorf("--all-subsets and --masks are mutually exclusive")
	case subsets != "":
		all, err := s.reg.MaskOf(splitList(subsets)...)
		if err != nil {
			return nil, fmt.Errorf("--all-subsets: %w", err)
		}
		return all.Subsets(), nil
	case list != "":
		var out []shader.FeatureMask
		for _, item := range splitList(list) {
			m, err := shader.ParseFeatureMask(item)
			if err != nil {
				return nil, fmt.Errorf("--masks: %w", err)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return []shader.FeatureMask{0}, nil
}

type prewarmOutcome struct {
	res variant.PrewarmResult
	err error
}

// prewarmWithUI drives the frontend from one goroutine while bubbletea renders
// progress on the terminal.
func prewarmWithUI(ctx context.Context, fe *variant.Frontend, title, mode string, masks []shader.FeatureMask, labels []string) (variant.PrewarmResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan variant.Progress, 64)
	outcomeCh := make(chan prewarmOutcome, 1)

	go func() {
		res, err := fe.Prewarm(ctx, mode, masks, func(p variant.Progress) { events <- p })
		outcomeCh <- prewarmOutcome{res: res, err: err}
		close(events)
	}()

	program := tea.NewProgram(ui.NewPrewarmModel(title, labels, events), tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// ctrl+c в UI останавливает прогрев
	cancel()
	for range events {
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.res, uiErr
	}
	return outcome.res, outcome.err
}
