// Package manifest loads a shaderkit.toml describing a shader library and
// registers its contents in a library.Registry.
package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"shaderkit/internal/diag"
	"shaderkit/internal/logging"
	"shaderkit/internal/shader"
	"shaderkit/internal/source"
)

// FileName is the manifest file looked up by Find.
const FileName = "shaderkit.toml"

var (
	ErrInvalid = errors.New("invalid manifest")
	ErrRead    = errors.New("cannot read library source")
)

// Manifest is a decoded shaderkit.toml.
type Manifest struct {
	Path string `toml:"-"` // absolute path of the manifest
	Root string `toml:"-"` // directory relative file paths are resolved against

	Library  LibraryConfig  `toml:"library"`
	Prologue map[string]any `toml:"prologue"`
	Modules  []SourceEntry  `toml:"module"`
	Snippets []SourceEntry  `toml:"snippet"`
	Blocks   []BlockEntry   `toml:"block"`
	Shaders  []SourceEntry  `toml:"shader"`

	files    *source.FileSet
	file     source.FileID
	reporter diag.Reporter
	log      *slog.Logger
}

type LibraryConfig struct {
	Name          string `toml:"name"`
	DefaultShader string `toml:"default_shader"`
	DefaultMode   string `toml:"default_mode"`
}

// SourceEntry is a module, snippet or shader: inline Code or a File.
type SourceEntry struct {
	Name string `toml:"name"`
	File string `toml:"file"`
	Code string `toml:"code"`
}

type StageEntry struct {
	Enabled      string            `toml:"enabled"`
	EnabledFile  string            `toml:"enabled_file"`
	Disabled     string            `toml:"disabled"`
	DisabledFile string            `toml:"disabled_file"`
	Macros       map[string]string `toml:"macros"`
}

type BlockEntry struct {
	Name     string            `toml:"name"`
	Vertex   StageEntry        `toml:"vertex"`
	Fragment StageEntry        `toml:"fragment"`
	Events   map[string]string `toml:"events"`
}

// Options configure Load.
type Options struct {
	// Files receives the manifest text so diagnostics can point into it.
	Files    *source.FileSet
	Reporter diag.Reporter
	Log      *slog.Logger
}

// Find walks up from startDir to locate shaderkit.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes and validates the manifest at path. Every problem is reported
// as a CFG diagnostic; the returned error wraps ErrInvalid when any was an error.
func Load(path string, opts Options) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	m := &Manifest{
		Path:     abs,
		Root:     filepath.Dir(abs),
		files:    opts.Files,
		reporter: opts.Reporter,
		log:      logging.Or(opts.Log),
	}
	if m.files == nil {
		m.files = source.NewFileSet()
	}
	if m.reporter == nil {
		m.reporter = diag.NopReporter{}
	}

	m.file, err = m.files.Load(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	text := string(m.files.Get(m.file).Content)

	meta, err := toml.Decode(text, m)
	if err != nil {
		sp := m.wholeFile()
		var perr toml.ParseError
		if errors.As(err, &perr) {
			sp = m.lineSpan(perr.Position.Line)
		}
		diag.ReportError(m.reporter, diag.CfgDecode, sp, err.Error()).Emit()
		return nil, fmt.Errorf("%s: failed to parse TOML: %w: %w", path, ErrInvalid, err)
	}

	v := validator{m: m}
	v.check(meta)
	if v.errors > 0 {
		return nil, fmt.Errorf("%s: %w: %d problem(s)", path, ErrInvalid, v.errors)
	}
	m.log.Debug("manifest loaded", "path", abs,
		"modules", len(m.Modules), "snippets", len(m.Snippets), "blocks", len(m.Blocks), "shaders", len(m.Shaders))
	return m, nil
}

// Files returns the FileSet holding the manifest text.
func (m *Manifest) Files() *source.FileSet { return m.files }

// Defines returns the [prologue] table as preprocessor defines. Booleans
// become 1 or 0.
func (m *Manifest) Defines() map[string]string {
	out := make(map[string]string, len(m.Prologue))
	for k, val := range m.Prologue {
		switch v := val.(type) {
		case string:
			out[k] = v
		case bool:
			out[k] = "0"
			if v {
				out[k] = "1"
			}
		case int64:
			out[k] = strconv.FormatInt(v, 10)
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// Resolve makes a manifest-relative path absolute.
func (m *Manifest) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.Root, filepath.FromSlash(rel))
}

func (m *Manifest) wholeFile() source.Span {
	f := m.files.Get(m.file)
	return source.Span{File: m.file, End: uint32(len(f.Content))} // #nosec G115 -- checked by FileSet.Add
}

func (m *Manifest) lineSpan(line int) source.Span {
	if line > 0 {
		if sp, ok := m.files.Get(m.file).LineSpan(uint32(line)); ok { // #nosec G115 -- line > 0
			return sp
		}
	}
	return m.wholeFile()
}

// entrySpan points at the first `name = "..."` line for name, or the whole file.
func (m *Manifest) entrySpan(name string) source.Span {
	return m.entrySpans(name)[0]
}

// entrySpans returns every `name = "..."` line for name in file order; never empty.
func (m *Manifest) entrySpans(name string) []source.Span {
	var out []source.Span
	if name != "" {
		f := m.files.Get(m.file)
		quoted := strconv.Quote(name)
		for n := uint32(1); n <= f.LineCount(); n++ {
			key, val, ok := strings.Cut(strings.TrimSpace(f.GetLine(n)), "=")
			if ok && strings.TrimSpace(key) == "name" && strings.TrimSpace(val) == quoted {
				sp, _ := f.LineSpan(n)
				out = append(out, sp)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, m.wholeFile())
	}
	return out
}

// Stage returns the entry for st.
func (b BlockEntry) Stage(st shader.Stage) StageEntry {
	if st == shader.StageVertex {
		return b.Vertex
	}
	return b.Fragment
}
