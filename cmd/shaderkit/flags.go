package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"shaderkit/internal/library"
	"shaderkit/internal/shader"
)

func errInvalidFlag(name, value, expected string) error {
	return fmt.Errorf("invalid %s value %q (expected %s)", name, value, expected)
}

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", errInvalidFlag("--ui", value, "auto|on|off")
	}
}

func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

// addVariantFlags registers --shader, --mode, --blocks and --mask.
func addVariantFlags(cmd *cobra.Command) {
	cmd.Flags().String("shader", "", "shader name (default: [library].default_shader)")
	cmd.Flags().String("mode", "", "render mode (default: [library].default_mode or \"default\")")
	cmd.Flags().String("blocks", "", "comma-separated shading blocks to enable")
	cmd.Flags().String("mask", "", "feature mask (0x.., 0b.. or decimal); overrides --blocks")
}

type variantSel struct {
	code *library.ShaderCode
	mode string
	mask shader.FeatureMask
}

func readVariantFlags(cmd *cobra.Command, s *session) (variantSel, error) {
	var sel variantSel
	name, _ := cmd.Flags().GetString("shader")
	mode, _ := cmd.Flags().GetString("mode")
	blocks, _ := cmd.Flags().GetString("blocks")
	maskStr, _ := cmd.Flags().GetString("mask")

	code, err := s.shader(name)
	if err != nil {
		return sel, err
	}
	sel.code = code
	sel.mode = s.mode(mode)

	switch {
	case maskStr != "":
		sel.mask, err = shader.ParseFeatureMask(maskStr)
		if err != nil {
			return sel, fmt.Errorf("--mask: %w", err)
		}
	case blocks != "":
		sel.mask, err = s.reg.MaskOf(splitList(blocks)...)
		if err != nil {
			return sel, fmt.Errorf("--blocks: %w", err)
		}
	}
	return sel, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readStages(value string) ([]shader.Stage, error) {
	if v := strings.TrimSpace(value); v == "" || v == "both" || v == "all" {
		return shader.Stages[:], nil
	}
	st, ok := shader.ParseStage(value)
	if !ok {
		return nil, errInvalidFlag("--stage", value, "vertex|fragment|both")
	}
	return []shader.Stage{st}, nil
}

// maskLabel names a mask by its blocks, "base" for the empty mask.
func maskLabel(reg *library.Registry, mask shader.FeatureMask) string {
	if mask == 0 {
		return "base"
	}
	names := reg.Names(mask)
	if len(names) == 0 {
		return mask.String()
	}
	return strings.Join(names, "+")
}
