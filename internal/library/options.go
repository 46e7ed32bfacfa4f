package library

import (
	"log/slog"

	"shaderkit/internal/diag"
	"shaderkit/internal/source"
)

type Option func(*Registry)

// WithLogger sets the logger; the shared logging.Logger() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithReporter receives parse and registration diagnostics.
func WithReporter(rep diag.Reporter) Option {
	return func(r *Registry) { r.reporter = rep }
}

// WithFileSet shares a FileSet so diagnostics from several registries render together.
func WithFileSet(fs *source.FileSet) Option {
	return func(r *Registry) { r.files = fs }
}

// SourceOption describes where registered text came from.
type SourceOption func(*sourceInfo)

type sourceInfo struct {
	label string
	span  source.Span
}

// FromFile labels text with the file it was read from.
func FromFile(path string) SourceOption {
	return func(s *sourceInfo) { s.label = path }
}

// DeclaredAt points registration diagnostics at a span, e.g. a manifest entry.
func DeclaredAt(sp source.Span) SourceOption {
	return func(s *sourceInfo) { s.span = sp }
}
