// Package document defines the form document model: typed fields grouped
// into sections, the per-field response state, documentation blocks, notes,
// and the identifier index that every cross-reference resolves through.
//
// The model carries invariants only. Parsing lives in internal/tag,
// validation in internal/validate, and mutation in pkg/patch.
package document
