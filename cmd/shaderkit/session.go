package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"shaderkit/internal/diag"
	"shaderkit/internal/diagfmt"
	"shaderkit/internal/library"
	"shaderkit/internal/manifest"
	"shaderkit/internal/observ"
	"shaderkit/internal/source"
)

const defaultMode = "default"

// session is a loaded library: manifest, registry and the diagnostics
// collected while loading it.
type session struct {
	manifest *manifest.Manifest
	reg      *library.Registry
	files    *source.FileSet
	bag      *diag.Bag
	timer    *observ.Timer
	color    bool
}

func openSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("manifest")
	maxDiags, _ := flags.GetInt("max-diagnostics")
	timings, _ := flags.GetBool("timings")
	color, err := useColor(cmd, os.Stderr)
	if err != nil {
		return nil, err
	}

	s := &session{
		files: source.NewFileSet(),
		bag:   diag.NewBag(maxDiags),
		color: color,
	}
	if timings {
		s.timer = observ.NewTimer()
	}

	if path == "" {
		found, ok, err := manifest.Find(".")
		if err != nil {
			return s, err
		}
		if !ok {
			return s, fmt.Errorf("no %s found\nplease pass --manifest path/to/%s", manifest.FileName, manifest.FileName)
		}
		path = found
	}
	s.files.SetBaseDir(filepath.Dir(path))
	reporter := diag.BagReporter{Bag: s.bag}

	done := s.timer.Track("manifest")
	m, err := manifest.Load(path, manifest.Options{Files: s.files, Reporter: reporter})
	done(path)
	if err != nil {
		return s, err
	}
	s.manifest = m

	s.reg = library.New(library.WithFileSet(s.files), library.WithReporter(reporter))
	done = s.timer.Track("register")
	sum, err := m.Apply(cmd.Context(), s.reg, 0)
	done(fmt.Sprintf("%d blocks, %d shaders, %d files", sum.Blocks, sum.Shaders, sum.Files))
	if err != nil {
		return s, err
	}
	return s, nil
}

// shader looks up name, falling back to [library].default_shader and then to
// the only registered shader.
func (s *session) shader(name string) (*library.ShaderCode, error) {
	if name == "" {
		name = s.manifest.Library.DefaultShader
	}
	if name == "" {
		all := s.reg.Shaders()
		if len(all) != 1 {
			return nil, errors.New("--shader is required when the library has more than one shader")
		}
		name = all[0]
	}
	code, ok := s.reg.Shader(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", library.ErrUnknownShader, name)
	}
	return code, nil
}

func (s *session) mode(mode string) string {
	if mode != "" {
		return mode
	}
	if m := s.manifest.Library.DefaultMode; m != "" {
		return m
	}
	return defaultMode
}

// printDiagnostics writes the collected diagnostics in the given format
// (pretty, json or short).
func (s *session) printDiagnostics(w io.Writer, format string, withNotes bool) error {
	if s == nil || (s.bag.Len() == 0 && format != "json") {
		return nil
	}
	s.bag.Sort()
	switch format {
	case "pretty", "":
		diagfmt.Pretty(w, s.bag, s.files, diagfmt.PrettyOpts{
			Color:     s.color,
			Context:   1,
			PathMode:  diagfmt.PathModeRelative,
			ShowNotes: withNotes,
		})
	case "json":
		return diagfmt.JSON(w, s.bag, s.files, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeRelative,
			IncludeNotes:     withNotes,
		})
	case "short":
		_, err := io.WriteString(w, diag.FormatShortDiagnostics(s.bag.Items(), s.files, withNotes))
		return err
	default:
		return errInvalidFlag("--format", format, "pretty|json|short")
	}
	return nil
}

// finish prints timings when --timings is set.
func (s *session) finish(w io.Writer) {
	if s != nil && s.timer != nil {
		fmt.Fprint(w, s.timer.Summary())
	}
}
