// Package ref parses and resolves scope references: textual addresses of
// fields, options, columns, and table cells.
//
// Resolution is split in two phases on purpose. Phase one is a pure
// pattern match that never touches the schema, so `a.b` stays ambiguous
// (option or column) and malformed input fails with a format error.
// Phase two consults the document schema to disambiguate, and reports
// every independent failure of a cell reference rather than the first.
package ref

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// TargetKind classifies what a resolved reference points at.
type TargetKind string

const (
	TargetField  TargetKind = "field"
	TargetOption TargetKind = "option"
	TargetColumn TargetKind = "column"
	TargetCell   TargetKind = "cell"
)

// Parsed is the phase-one result: a syntactic shape with no schema
// meaning attached. A non-empty Qualifier with Row < 0 is ambiguous
// until resolved.
type Parsed struct {
	Field     string
	Qualifier string
	// Row is the cell row index, or -1 when the reference has none.
	Row int
}

// Cell reports whether the reference has cell shape (`field.qual[row]`).
func (p Parsed) Cell() bool { return p.Row >= 0 }

// Qualified reports whether the reference carries a qualifier.
func (p Parsed) Qualified() bool { return p.Qualifier != "" }

// String renders the reference back to its textual form.
func (p Parsed) String() string {
	switch {
	case p.Cell():
		return fmt.Sprintf("%s.%s[%d]", p.Field, p.Qualifier, p.Row)
	case p.Qualified():
		return p.Field + "." + p.Qualifier
	default:
		return p.Field
	}
}

// Target is the phase-two result: an unambiguous address into the
// schema.
type Target struct {
	Kind      TargetKind
	Field     string
	Qualifier string
	// Row is meaningful only for cell targets.
	Row int
}

// String renders the target as a reference string.
func (t Target) String() string {
	switch t.Kind {
	case TargetCell:
		return fmt.Sprintf("%s.%s[%d]", t.Field, t.Qualifier, t.Row)
	case TargetOption, TargetColumn:
		return t.Field + "." + t.Qualifier
	default:
		return t.Field
	}
}

var (
	plainPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*)$`)
	qualPattern  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*)\.([A-Za-z_][A-Za-z0-9_-]*)$`)
	cellPattern  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*)\.([A-Za-z_][A-Za-z0-9_-]*)\[(\d+)\]$`)
)

// FormatError reports a reference that fails the syntactic phase. It is
// distinct from ResolveError: the schema was never consulted.
type FormatError struct {
	Ref    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("ref: malformed reference %q: %s", e.Ref, e.Reason)
}

// Parse performs the syntactic phase. It accepts exactly three shapes:
// `field`, `field.qualifier`, and `field.qualifier[row]` with a
// non-negative integer row.
func Parse(s string) (Parsed, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Parsed{}, &FormatError{Ref: s, Reason: "empty reference"}
	}
	if m := plainPattern.FindStringSubmatch(trimmed); m != nil {
		return Parsed{Field: m[1], Row: -1}, nil
	}
	if m := qualPattern.FindStringSubmatch(trimmed); m != nil {
		return Parsed{Field: m[1], Qualifier: m[2], Row: -1}, nil
	}
	if m := cellPattern.FindStringSubmatch(trimmed); m != nil {
		row, err := strconv.Atoi(m[3])
		if err != nil {
			return Parsed{}, &FormatError{Ref: s, Reason: "row index is not an integer"}
		}
		return Parsed{Field: m[1], Qualifier: m[2], Row: row}, nil
	}
	return Parsed{}, &FormatError{Ref: s, Reason: "expected field, field.qualifier, or field.qualifier[row]"}
}

// ResolveError reports a reference that parsed but does not address the
// schema. Problems lists every independent failure; Valid carries the
// qualifiers that would have been accepted, when that hint applies.
type ResolveError struct {
	Ref      string
	Problems []string
	Valid    []string
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("ref: cannot resolve %q: %s", e.Ref, strings.Join(e.Problems, "; "))
	if len(e.Valid) > 0 {
		msg += fmt.Sprintf(" (valid: %s)", strings.Join(e.Valid, ", "))
	}
	return msg
}

// Resolve performs the schema-aware phase. rowCounts supplies the current
// row count per table field; pass nil to skip row-bounds checking, e.g.
// at schema-definition time.
func Resolve(p Parsed, form *document.Form, rowCounts map[string]int) (Target, error) {
	fld, ok := form.Field(p.Field)
	if !ok {
		return Target{}, &ResolveError{
			Ref:      p.String(),
			Problems: []string{fmt.Sprintf("unknown field %q", p.Field)},
		}
	}

	if p.Cell() {
		return resolveCell(p, fld, rowCounts)
	}

	if !p.Qualified() {
		return Target{Kind: TargetField, Field: fld.ID, Row: -1}, nil
	}

	switch {
	case fld.Kind.Selectable():
		if _, ok := fld.Option(p.Qualifier); ok {
			return Target{Kind: TargetOption, Field: fld.ID, Qualifier: p.Qualifier, Row: -1}, nil
		}
		return Target{}, &ResolveError{
			Ref:      p.String(),
			Problems: []string{fmt.Sprintf("field %q has no option %q", fld.ID, p.Qualifier)},
			Valid:    fld.OptionIDs(),
		}
	case fld.Kind == document.KindTable:
		if _, ok := fld.Column(p.Qualifier); ok {
			return Target{Kind: TargetColumn, Field: fld.ID, Qualifier: p.Qualifier, Row: -1}, nil
		}
		return Target{}, &ResolveError{
			Ref:      p.String(),
			Problems: []string{fmt.Sprintf("table %q has no column %q", fld.ID, p.Qualifier)},
			Valid:    fld.ColumnIDs(),
		}
	default:
		return Target{}, &ResolveError{
			Ref:      p.String(),
			Problems: []string{fmt.Sprintf("field %q is a %s and declares no options or columns", fld.ID, fld.Kind)},
		}
	}
}

// resolveCell checks kind, column, and row bounds independently so the
// caller sees every problem at once.
func resolveCell(p Parsed, fld *document.Field, rowCounts map[string]int) (Target, error) {
	var problems []string
	var valid []string

	if fld.Kind != document.KindTable {
		problems = append(problems, fmt.Sprintf("field %q is a %s, not a table; cell references require a table", fld.ID, fld.Kind))
	} else if _, ok := fld.Column(p.Qualifier); !ok {
		problems = append(problems, fmt.Sprintf("table %q has no column %q", fld.ID, p.Qualifier))
		valid = fld.ColumnIDs()
	}

	if fld.Kind == document.KindTable && rowCounts != nil {
		count, ok := rowCounts[fld.ID]
		if !ok {
			count = 0
		}
		if p.Row >= count {
			problems = append(problems, fmt.Sprintf("row %d out of bounds: table %q has %d rows", p.Row, fld.ID, count))
		}
	}

	if len(problems) > 0 {
		return Target{}, &ResolveError{Ref: p.String(), Problems: problems, Valid: valid}
	}
	return Target{Kind: TargetCell, Field: fld.ID, Qualifier: p.Qualifier, Row: p.Row}, nil
}

// ParseResolve combines both phases for callers holding a reference
// string.
func ParseResolve(s string, form *document.Form, rowCounts map[string]int) (Target, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Target{}, err
	}
	return Resolve(parsed, form, rowCounts)
}
