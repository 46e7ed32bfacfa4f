// Package diag defines the diagnostic model shared by the shader pipeline.
//
// Producers are the directive parser (DIR codes), the variant resolver (RES),
// the block registry (REG), the compile front-end (CMP) and the manifest
// loader (CFG, IO). They emit through a Reporter so that emission is decoupled
// from storage; BagReporter collects into a Bag, which supports limits,
// sorting and deduplication. Rendering lives in internal/diagfmt.
//
// Diagnostic is the central record:
//
//   - Severity – Info, Warning or Error.
//   - Code – numeric identifier with a stable string form (ID, Title).
//   - Message – short, actionable text.
//   - Primary – span of the offending directive or declaration.
//   - Notes – optional secondary spans, e.g. "block registered here".
//
// Directive problems are warnings: the offending line is dropped and the rest
// of the unit still resolves. Errors are reserved for failures that stop a
// variant from being produced.
package diag
