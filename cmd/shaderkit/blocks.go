package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"shaderkit/internal/library"
	"shaderkit/internal/shader"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List shading blocks with their flag ids and masks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			_ = s.printDiagnostics(cmd.ErrOrStderr(), "pretty", false)
			return err
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "BLOCK", "MASK", "STAGES", "EVENTS", "MACROS")
		for _, b := range s.reg.Blocks() {
			t.Row(fmt.Sprint(b.ID()), b.Name(), b.Mask().String(), blockStages(b), strings.Join(b.Events(), ","), blockMacros(b))
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d flags used\n", len(s.reg.Blocks()), shader.MaxBlocks)
		s.finish(cmd.ErrOrStderr())
		return nil
	},
}

// blockStages lists the stages with non-empty code, e.g. "vertex,fragment*";
// a star marks a stage that also has disabled-branch code.
func blockStages(b *library.Block) string {
	var out []string
	for _, st := range shader.Stages {
		sc := b.Stage(st)
		if strings.TrimSpace(sc.Enabled.Raw()) == "" && strings.TrimSpace(sc.Disabled.Raw()) == "" {
			continue
		}
		name := st.String()
		if strings.TrimSpace(sc.Disabled.Raw()) != "" {
			name += "*"
		}
		out = append(out, name)
	}
	return strings.Join(out, ",")
}

func blockMacros(b *library.Block) string {
	merged := make(map[string]string)
	for _, st := range shader.Stages {
		maps.Copy(merged, b.Stage(st).Macros)
	}
	var out []string
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		out = append(out, k+"="+merged[k])
	}
	return strings.Join(out, " ")
}
