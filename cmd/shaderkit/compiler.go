package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shaderkit/internal/dcache"
	"shaderkit/internal/gpu"
	"shaderkit/internal/shader"
	"shaderkit/internal/variant"
)

func addCompilerFlags(cmd *cobra.Command) {
	cmd.Flags().String("device", "none", "create shader modules on a HAL device (none|noop)")
	cmd.Flags().Bool("disk-cache", false, "reuse SPIR-V from the on-disk cache")
	cmd.Flags().Bool("debug-info", false, "emit SPIR-V debug names")
}

// openCompiler builds the naga compiler described by the compiler flags. The
// returned func releases the device, if any.
func openCompiler(cmd *cobra.Command) (*gpu.NagaCompiler, func(), error) {
	deviceFlag, _ := cmd.Flags().GetString("device")
	useCache, _ := cmd.Flags().GetBool("disk-cache")
	debugInfo, _ := cmd.Flags().GetBool("debug-info")

	opts := []gpu.NagaOption{gpu.WithDebugInfo(debugInfo)}
	cleanup := func() {}
	switch strings.ToLower(deviceFlag) {
	case "none", "":
	case "noop":
		dev, err := gpu.OpenNoopDevice()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, gpu.WithDevice(dev.Device))
		cleanup = dev.Close
	default:
		return nil, nil, errInvalidFlag("--device", deviceFlag, "none|noop")
	}
	if useCache {
		dc, err := dcache.Open("shaderkit")
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open disk cache: %w", err)
		}
		opts = append(opts, gpu.WithDiskCache(dc))
	}
	return gpu.NewNagaCompiler(opts...), cleanup, nil
}

// printSink prints the first failure of a run with the annotated source of both
// stages.
type printSink struct {
	w     io.Writer
	color bool
}

func (p printSink) Report(r *variant.FailureReport) {
	head := color.New(color.FgRed, color.Bold)
	if p.color {
		head.EnableColor()
	} else {
		head.DisableColor()
	}
	fmt.Fprintf(p.w, "%s %s\n", head.Sprint("compile failed:"), r.Summary())
	if len(r.Blocks) > 0 {
		fmt.Fprintf(p.w, "  blocks: %s\n", strings.Join(r.Blocks, ", "))
	}
	if o := r.Origin; o != nil && o.HasFile {
		fmt.Fprintf(p.w, "  defined at file line %d\n", o.FileLine)
	}
	r.WriteListing(p.w, p.color)
}

// writeSPIRV stores each stage as <dir>/<shader>.<mode>.<mask>.<vs|fs>.spv.
func writeSPIRV(dir string, p *gpu.NagaProgram, sel variantSel) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, st := range shader.Stages {
		words := p.SPIRV(st)
		buf := make([]byte, 0, 4*len(words))
		for _, w := range words {
			buf = binary.LittleEndian.AppendUint32(buf, w)
		}
		name := fmt.Sprintf("%s.%s.%x.%s.spv", sel.code.Name, sel.mode, uint64(sel.mask), st.Suffix())
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
